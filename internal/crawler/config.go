package crawler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults applied by the configuration loader.
const (
	DefaultRequestDelay        = time.Second
	DefaultSoftBlockRetryDelay = 60 * time.Second
	DefaultMaxSoftBlockRetries = 3
	DefaultMinImageBytes       = 20 * 1024
	DefaultMaxDepth            = 2
	DefaultMaxPages            = 10
)

// DefaultSoftBlockPhrases are the interstitial markers treated as a soft block.
var DefaultSoftBlockPhrases = []string{"surge protection"}

// Config captures every knob that influences a single crawl run. It is
// built once by the configuration loader and never mutated afterwards.
type Config struct {
	Topic                string
	StartURLs            []string
	AllowedDomains       []string
	MaxDepth             int
	MaxPages             int
	NonContentPhrases    []string
	BlacklistedImageURLs []string
	RequestDelay         time.Duration
	SoftBlockRetryDelay  time.Duration
	SoftBlockPhrases     []string
	// MaxSoftBlockRetries caps re-enqueues per URL. Zero means unbounded.
	MaxSoftBlockRetries int
	MinImageBytes       int
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if len(c.StartURLs) == 0 {
		return errors.New("start_urls must include at least one URL")
	}
	for _, raw := range c.StartURLs {
		if _, err := Resolve("", raw); err != nil {
			return fmt.Errorf("start url %q: %w", raw, err)
		}
	}
	if len(NormalizePhrases(c.AllowedDomains)) == 0 {
		return errors.New("allowed_domains must include at least one domain")
	}
	if c.MaxDepth < 0 {
		return errors.New("max_depth must be >= 0")
	}
	if c.MaxPages <= 0 {
		return errors.New("max_pages must be > 0")
	}
	if c.RequestDelay < 0 {
		return errors.New("request_delay must be >= 0")
	}
	if c.SoftBlockRetryDelay < 0 {
		return errors.New("soft_block_retry_delay must be >= 0")
	}
	if c.MaxSoftBlockRetries < 0 {
		return errors.New("max_soft_block_retries must be >= 0")
	}
	if c.MinImageBytes < 0 {
		return errors.New("min_image_bytes must be >= 0")
	}
	return nil
}

// NormalizePhrases trims entries and drops blanks and duplicates, keeping order.
func NormalizePhrases(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
