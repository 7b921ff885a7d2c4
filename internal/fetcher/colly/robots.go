package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const allowAllRobots = "User-agent: *\nAllow: /"

// defaultRobotsBackoff spaces the retries of a robots.txt request.
var defaultRobotsBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

var robotsFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "crawler_robots_fallback_total",
	Help: "Hosts whose robots.txt could not be fetched and were treated as allow-all.",
})

// robotsTransport answers the collector's robots.txt requests. Transient
// failures are retried; a host that keeps timing out is served an
// allow-all policy for the rest of the crawl so later pages skip the request.
type robotsTransport struct {
	base    http.RoundTripper
	backoff []time.Duration

	mu       sync.Mutex
	allowAll map[string]struct{}
}

func newRobotsTransport(base http.RoundTripper) *robotsTransport {
	return &robotsTransport{
		base:     base,
		backoff:  defaultRobotsBackoff,
		allowAll: make(map[string]struct{}),
	}
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots transport received nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		return t.base.RoundTrip(req)
	}
	host := strings.ToLower(req.URL.Host)
	if t.fellBack(host) {
		return allowAllResponse(req), nil
	}
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) {
			return nil, fmt.Errorf("robots.txt %s: %w", host, err)
		}
		if attempt == len(t.backoff) {
			t.markAllowAll(host)
			return allowAllResponse(req), nil
		}
		if err := pause(req.Context(), t.backoff[attempt]); err != nil {
			return nil, fmt.Errorf("robots.txt %s: %w", host, err)
		}
	}
}

func (t *robotsTransport) fellBack(host string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.allowAll[host]
	return ok
}

func (t *robotsTransport) markAllowAll(host string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.allowAll[host]; ok {
		return
	}
	t.allowAll[host] = struct{}{}
	robotsFallbacks.Inc()
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func allowAllResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        http.Header{"Content-Type": []string{"text/plain"}},
		Request:       req,
	}
}

// isTransient reports timeouts, including TLS handshake timeouts.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
