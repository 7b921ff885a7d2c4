package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// File names inside a topic directory.
const (
	DocumentsDirName  = "documents"
	URLMappingFile    = "url_mapping.yml"
	ContextFile       = "context_data.yaml"
	HashedContentFile = "hashed_content.txt"
)

// Layout resolves the on-disk locations of a topic's crawl state.
type Layout struct {
	Root string
}

// DocumentsDir is where artifacts are written.
func (l Layout) DocumentsDir() string { return filepath.Join(l.Root, DocumentsDirName) }

// URLMappingPath is the provenance store file.
func (l Layout) URLMappingPath() string { return filepath.Join(l.Root, URLMappingFile) }

// ContextPath is the context store file.
func (l Layout) ContextPath() string { return filepath.Join(l.Root, ContextFile) }

// LedgerPath is the dedup ledger file.
func (l Layout) LedgerPath() string { return filepath.Join(l.Root, HashedContentFile) }

// Ensure creates the documents directory.
func (l Layout) Ensure(afs afero.Fs) error {
	if err := afs.MkdirAll(l.DocumentsDir(), 0o750); err != nil {
		return fmt.Errorf("create documents dir: %w", err)
	}
	return nil
}

// Reset deletes the URL mapping, context file, ledger and documents
// directory, then recreates an empty documents directory.
func (l Layout) Reset(afs afero.Fs) error {
	for _, p := range []string{l.URLMappingPath(), l.ContextPath(), l.LedgerPath()} {
		if err := afs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	if err := afs.RemoveAll(l.DocumentsDir()); err != nil {
		return fmt.Errorf("remove documents dir: %w", err)
	}
	return l.Ensure(afs)
}
