package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

func TestFetcherReturnsBodyAndHeaders(t *testing.T) {
	t.Parallel()

	gotUA := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA <- r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{UserAgent: "topic-crawler-test", Timeout: time.Second})
	resp, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<html><body>hello</body></html>", string(resp.Body))
	require.Equal(t, "text/html", resp.Headers.Get("Content-Type"))
	require.Equal(t, srv.URL+"/page", resp.URL)
	require.Equal(t, "topic-crawler-test", <-gotUA)
}

func TestFetcherReturnsErrorStatusAsResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: time.Second})
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "missing", string(resp.Body))
}

func TestFetcherFlagsBodiesAtSizeLimit(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("x", 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	resp, err := New(Config{Timeout: time.Second, MaxBodyBytes: 32}).Fetch(context.Background(), srv.URL+"/big.pdf")
	require.NoError(t, err)
	require.Len(t, resp.Body, 32)
	require.True(t, resp.Truncated)

	resp, err = New(Config{Timeout: time.Second}).Fetch(context.Background(), srv.URL+"/big.pdf")
	require.NoError(t, err)
	require.Equal(t, body, string(resp.Body))
	require.False(t, resp.Truncated)
}

func TestFetcherAllowsRevisit(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: time.Second})
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), hits.Load())
}

func TestFetcherTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), target)
	require.Error(t, err)
}

func TestFetcherHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", RespectRobots: true, Timeout: time.Second, MaxBodyBytes: 1024})
	collector := f.buildCollector(time.Unix(0, 0), &crawler.FetchResponse{}, new(error))
	require.Equal(t, "coverage-agent", collector.UserAgent)
	require.False(t, collector.IgnoreRobotsTxt)
	require.True(t, collector.AllowURLRevisit)
	require.Equal(t, 1024, collector.MaxBodySize)
	require.IsType(t, &robotsTransport{}, f.transport)

	f = New(Config{})
	collector = f.buildCollector(time.Unix(0, 0), &crawler.FetchResponse{}, new(error))
	require.True(t, collector.IgnoreRobotsTxt)
	require.IsType(t, &http.Transport{}, f.transport)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	var result crawler.FetchResponse
	var fetchErr error
	hooks := &stubHooks{}
	configureCollectorHooks(hooks, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(&colly.Response{
		StatusCode: http.StatusServiceUnavailable,
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	}, errors.New("Service Unavailable"))
	require.NoError(t, fetchErr)
	require.Equal(t, http.StatusServiceUnavailable, result.StatusCode)

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
