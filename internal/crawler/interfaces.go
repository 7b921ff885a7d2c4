package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. HTTP error
// statuses are returned as responses; only transport failures are errors.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
}

// Extractor turns one fetched resource into artifacts. Errors describe
// whole-document failures; per-item failures are logged and skipped.
type Extractor interface {
	Extract(ctx context.Context, pageURL string, body []byte) error
}

// Hasher computes content digests for deduplication.
type Hasher interface {
	Hash(data []byte) string
}

// DedupLedger is the persisted set of content hashes.
type DedupLedger interface {
	Contains(hash string) bool
	// Add records hash and reports whether it was new.
	Add(hash string) bool
	Persist(ctx context.Context) error
}

// Clock returns the current time and performs cancellable sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
