package store

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Ledger is the persisted, append-only set of content hashes. Hashes are
// stored one per line in insertion order.
type Ledger struct {
	fs   afero.Fs
	path string

	mu     sync.RWMutex
	hashes map[string]struct{}
	order  []string
	dirty  bool
}

// OpenLedger loads the ledger at path; a missing file yields an empty ledger.
func OpenLedger(afs afero.Fs, path string) (*Ledger, error) {
	l := &Ledger{fs: afs, path: path, hashes: make(map[string]struct{})}
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		h := strings.TrimSpace(scanner.Text())
		if h == "" {
			continue
		}
		if _, ok := l.hashes[h]; ok {
			continue
		}
		l.hashes[h] = struct{}{}
		l.order = append(l.order, h)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger %s: %w", path, err)
	}
	return l, nil
}

// Contains reports whether hash has been recorded.
func (l *Ledger) Contains(hash string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.hashes[hash]
	return ok
}

// Add records hash and reports whether it was new.
func (l *Ledger) Add(hash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.hashes[hash]; ok {
		return false
	}
	l.hashes[hash] = struct{}{}
	l.order = append(l.order, hash)
	l.dirty = true
	return true
}

// Len returns the number of recorded hashes.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Persist atomically rewrites the ledger file if hashes were added.
func (l *Ledger) Persist(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return nil
	}
	var buf bytes.Buffer
	for _, h := range l.order {
		buf.WriteString(h)
		buf.WriteByte('\n')
	}
	if err := WriteFileAtomic(l.fs, l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	l.dirty = false
	return nil
}

// Reset forgets every hash and removes the ledger file.
func (l *Ledger) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hashes = make(map[string]struct{})
	l.order = nil
	l.dirty = false
	if err := l.fs.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove ledger: %w", err)
	}
	return nil
}
