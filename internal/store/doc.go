// Package store persists crawl state shared across runs: the provenance and
// context key-value stores and the content-hash dedup ledger. File-backed
// implementations write through afero with atomic temp-file replacement.
package store
