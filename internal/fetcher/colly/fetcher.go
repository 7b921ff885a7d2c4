// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/metrics"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxBodyBytes caps the response body; zero keeps colly's default.
	MaxBodyBytes int
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.ParseHTTPErrorResponse = true
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = cfg.MaxBodyBytes
	}
	var transport http.RoundTripper = newHTTPTransport()
	if cfg.RespectRobots {
		transport = newRobotsTransport(transport)
	}
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Non-2xx statuses come back as responses
// so the caller can classify them; only transport failures are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(start, &result, &fetchErr)

	if err := runCollector(ctx, collector, rawURL, &result, &fetchErr); err != nil {
		return crawler.FetchResponse{}, err
	}
	metrics.ObserveFetchBytes(rawURL, len(result.Body))
	result.Truncated = atLimit(len(result.Body), collector.MaxBodySize)
	return result, nil
}

// atLimit reports whether a body of n bytes filled colly's MaxBodySize.
// Colly cuts longer bodies without an error, so a full body is treated as
// truncated.
func atLimit(n, limit int) bool {
	return limit > 0 && n >= limit
}

func (f *Fetcher) buildCollector(
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	collector.SetRequestTimeout(timeout)

	collector.WithTransport(f.transport)

	configureCollectorHooks(collector, start, result, fetchErr)
	return collector
}

func configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = responseFrom(r, start)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		// With ParseHTTPErrorResponse colly still reports non-2xx through
		// OnError; keep those as responses.
		if r != nil && r.StatusCode > 0 && r.Request != nil {
			*result = responseFrom(r, start)
			return
		}
		*fetchErr = err
	})
}

func responseFrom(r *colly.Response, start time.Time) crawler.FetchResponse {
	resp := crawler.FetchResponse{
		StatusCode: r.StatusCode,
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(start),
	}
	if r.Request != nil && r.Request.URL != nil {
		resp.URL = r.Request.URL.String()
	}
	if r.Headers != nil {
		resp.Headers = r.Headers.Clone()
	}
	return resp
}

func runCollector(
	ctx context.Context,
	collector *colly.Collector,
	url string,
	result *crawler.FetchResponse,
	fetchErr *error,
) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil && result.StatusCode == 0 {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if result.StatusCode == 0 {
			return errors.New("colly returned no response")
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
