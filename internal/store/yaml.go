package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// YAMLFile is a Store kept in memory and persisted as a single YAML document
// of the form `<root>: {key: value}`.
type YAMLFile[V any] struct {
	fs   afero.Fs
	path string
	root string

	mu      sync.RWMutex
	records map[string]V
	dirty   bool
}

// OpenYAMLFile loads path (when it exists) and returns the store.
func OpenYAMLFile[V any](afs afero.Fs, path, root string) (*YAMLFile[V], error) {
	if root == "" {
		return nil, errors.New("yaml root key is required")
	}
	s := &YAMLFile[V]{
		fs:      afs,
		path:    path,
		root:    root,
		records: make(map[string]V),
	}
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc map[string]map[string]V
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for k, v := range doc[root] {
		s.records[k] = v
	}
	return s, nil
}

// All returns a copy of every record.
func (s *YAMLFile[V]) All(_ context.Context) (map[string]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.records), nil
}

// Get returns the record stored under key.
func (s *YAMLFile[V]) Get(_ context.Context, key string) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return v, nil
}

// Upsert stores value under key. The change is in memory until Persist.
func (s *YAMLFile[V]) Upsert(_ context.Context, key string, value V) error {
	if key == "" {
		return errors.New("key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = value
	s.dirty = true
	return nil
}

// Persist rewrites the YAML file atomically when there are pending changes.
func (s *YAMLFile[V]) Persist(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	data, err := yaml.Marshal(map[string]map[string]V{s.root: s.records})
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := WriteFileAtomic(s.fs, s.path, data, 0o644); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Reset clears the records and removes the file.
func (s *YAMLFile[V]) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]V)
	s.dirty = false
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}
