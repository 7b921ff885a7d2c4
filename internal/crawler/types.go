package crawler

import (
	"net/http"
	"time"
)

// FrontierEntry is a (url, depth) pair waiting to be fetched.
type FrontierEntry struct {
	URL   string
	Depth int
	// Attempt counts soft-block retries; zero for a freshly discovered URL.
	Attempt int
}

// IsRetry reports whether the entry was re-enqueued after a soft block.
func (e FrontierEntry) IsRetry() bool {
	return e.Attempt > 0
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	// Truncated is set when Body filled the fetcher's size limit and may
	// be cut short.
	Truncated bool
}

// Outcome classifies a single fetch attempt.
type Outcome int

// Fetch outcomes. Every attempt maps to exactly one of these.
const (
	OutcomeSuccess Outcome = iota
	OutcomeSoftBlock
	OutcomeHTTPError
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSoftBlock:
		return "soft_block"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Route names the extraction path for a fetched resource.
type Route string

// Supported extraction routes.
const (
	RouteHTML Route = "html"
	RoutePDF  Route = "pdf"
)
