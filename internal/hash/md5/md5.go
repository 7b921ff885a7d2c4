// Package md5 provides the content digest used by the dedup ledger.
package md5

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
)

// Hasher implements crawler.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex MD5 digest of data.
func (h *Hasher) Hash(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // see import note
	return hex.EncodeToString(sum[:])
}
