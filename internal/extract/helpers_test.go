package extract

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/artifact"
	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/hash/md5"
	"github.com/JakeFAU/topic-crawler/internal/progress"
	"github.com/JakeFAU/topic-crawler/internal/store"
)

type recordingSink struct {
	mu        sync.Mutex
	artifacts []artifact.Artifact
	err       error
}

func (s *recordingSink) Write(_ context.Context, a artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.artifacts = append(s.artifacts, a)
	return nil
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, a.Filename)
	}
	return out
}

func (s *recordingSink) byName(t *testing.T, name string) artifact.Artifact {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		if a.Filename == name {
			return a
		}
	}
	t.Fatalf("artifact %q not written; have %v", name, s.artifacts)
	return artifact.Artifact{}
}

type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]crawler.FetchResponse
	calls     []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	resp, ok := f.responses[rawURL]
	if !ok {
		return crawler.FetchResponse{URL: rawURL, StatusCode: 404}, nil
	}
	return resp, nil
}

func (f *stubFetcher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixture struct {
	sink   *recordingSink
	ledger *store.Ledger
	events *progress.Recorder
	opts   Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger, err := store.OpenLedger(afero.NewMemMapFs(), "/data/hashed_content.txt")
	require.NoError(t, err)
	f := &fixture{sink: &recordingSink{}, ledger: ledger, events: &progress.Recorder{}}
	f.opts = Options{
		Sink:          f.sink,
		Ledger:        ledger,
		Hasher:        md5.New(),
		MinImageBytes: 20480,
		Emitter:       f.events,
		Topic:         "franka",
	}
	return f
}

// pngBytes returns a PNG signature padded to size bytes, varied by seed.
func pngBytes(size int, seed byte) []byte {
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, size-8)...)
	data[len(data)-1] = seed
	return data
}
