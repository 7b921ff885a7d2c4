package crawler

import (
	"bytes"
	"net/http"
)

// SoftBlockDetector recognizes HTTP 200 responses whose body is a
// rate-limit interstitial rather than content.
type SoftBlockDetector struct {
	phrases [][]byte
}

// NewSoftBlockDetector builds a detector matching any of phrases, case-insensitively.
func NewSoftBlockDetector(phrases []string) *SoftBlockDetector {
	normalized := NormalizePhrases(phrases)
	lower := make([][]byte, 0, len(normalized))
	for _, p := range normalized {
		lower = append(lower, bytes.ToLower([]byte(p)))
	}
	return &SoftBlockDetector{phrases: lower}
}

// Blocked reports whether body contains a block-indicator phrase.
func (d *SoftBlockDetector) Blocked(body []byte) bool {
	if d == nil || len(body) == 0 || len(d.phrases) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, p := range d.phrases {
		if bytes.Contains(lowerBody, p) {
			return true
		}
	}
	return false
}

// Classify maps a fetch result onto exactly one Outcome.
func (d *SoftBlockDetector) Classify(resp FetchResponse, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeTransportError
	case resp.StatusCode != http.StatusOK:
		return OutcomeHTTPError
	case d.Blocked(resp.Body):
		return OutcomeSoftBlock
	default:
		return OutcomeSuccess
	}
}
