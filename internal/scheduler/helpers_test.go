package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/hash/md5"
	"github.com/JakeFAU/topic-crawler/internal/progress"
	"github.com/JakeFAU/topic-crawler/internal/store"
)

// scriptedFetcher serves canned responses. A URL with several responses
// returns them in order and then repeats the last one.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses map[string][]crawler.FetchResponse
	errs      map[string]error
	calls     []string
	onFetch   func(url string)
}

func (f *scriptedFetcher) Fetch(_ context.Context, url string) (crawler.FetchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	hook := f.onFetch
	var (
		resp crawler.FetchResponse
		err  error
	)
	if e, ok := f.errs[url]; ok {
		err = e
	} else if seq := f.responses[url]; len(seq) > 0 {
		resp = seq[0]
		if len(seq) > 1 {
			f.responses[url] = seq[1:]
		}
	} else {
		resp = crawler.FetchResponse{URL: url, StatusCode: 404}
	}
	f.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return resp, err
}

func (f *scriptedFetcher) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func page(body string) []crawler.FetchResponse {
	return []crawler.FetchResponse{{StatusCode: 200, Body: []byte(body)}}
}

type recordingExtractor struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (e *recordingExtractor) Extract(_ context.Context, pageURL string, _ []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.urls = append(e.urls, pageURL)
	return e.err
}

func (e *recordingExtractor) seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.urls...)
}

// fakeClock records sleeps instead of blocking.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type harness struct {
	fs      afero.Fs
	fetcher *scriptedFetcher
	html    *recordingExtractor
	pdf     *recordingExtractor
	ledger  *store.Ledger
	clock   *fakeClock
	events  *progress.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	ledger, err := store.OpenLedger(fs, "/data/hashed_content.txt")
	require.NoError(t, err)
	return &harness{
		fs:      fs,
		fetcher: &scriptedFetcher{responses: map[string][]crawler.FetchResponse{}, errs: map[string]error{}},
		html:    &recordingExtractor{},
		pdf:     &recordingExtractor{},
		ledger:  ledger,
		clock:   &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		events:  &progress.Recorder{},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Fetcher: h.fetcher,
		HTML:    h.html,
		PDF:     h.pdf,
		Ledger:  h.ledger,
		Hasher:  md5.New(),
		Clock:   h.clock,
		Emitter: h.events,
	}
}

func (h *harness) run(t *testing.T, ctx context.Context, cfg crawler.Config) (Stats, error) {
	t.Helper()
	s, err := New(cfg, h.deps())
	require.NoError(t, err)
	return s.Run(ctx)
}

func testConfig(start ...string) crawler.Config {
	return crawler.Config{
		Topic:               "franka",
		StartURLs:           start,
		AllowedDomains:      []string{"good.org"},
		MaxDepth:            2,
		MaxPages:            10,
		RequestDelay:        time.Second,
		SoftBlockRetryDelay: time.Minute,
		SoftBlockPhrases:    crawler.DefaultSoftBlockPhrases,
		MaxSoftBlockRetries: crawler.DefaultMaxSoftBlockRetries,
		MinImageBytes:       crawler.DefaultMinImageBytes,
	}
}

var errConnRefused = errors.New("connection refused")
