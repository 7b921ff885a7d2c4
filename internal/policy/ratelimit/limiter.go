// Package ratelimit throttles requests per host with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

var waitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "crawler_rate_limit_wait_seconds",
	Help:    "Time spent waiting for a per-host rate limit token.",
	Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
}, []string{"host"})

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	RPS   float64
	Burst int
}

// Limiter manages one token bucket per host.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until a token is available for the host of rawURL.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := crawler.Hostname(rawURL)
	if host == "" {
		host = "unknown"
	}
	start := time.Now()
	if err := l.bucket(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		waitSeconds.WithLabelValues(host).Observe(waited.Seconds())
	}
	return nil
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.limiters[host]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = b
	}
	return b
}

// Fetcher wraps a crawler.Fetcher so every request first waits for its host's token.
type Fetcher struct {
	next    crawler.Fetcher
	limiter *Limiter
}

// NewFetcher returns a rate-limited view of next.
func NewFetcher(next crawler.Fetcher, limiter *Limiter) *Fetcher {
	return &Fetcher{next: next, limiter: limiter}
}

// Fetch implements crawler.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return crawler.FetchResponse{}, err
		}
	}
	resp, err := f.next.Fetch(ctx, rawURL)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("rate limited fetch: %w", err)
	}
	return resp, nil
}
