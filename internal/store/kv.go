package store

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is a string-keyed record store with upsert semantics. Records are
// never deleted individually; Reset drops everything.
type Store[V any] interface {
	// All returns a snapshot of every record.
	All(ctx context.Context) (map[string]V, error)
	// Get returns the record for key or ErrNotFound.
	Get(ctx context.Context, key string) (V, error)
	// Upsert creates or overwrites the record for key.
	Upsert(ctx context.Context, key string, value V) error
	// Persist makes pending upserts durable.
	Persist(ctx context.Context) error
	// Reset removes every record and the backing storage.
	Reset(ctx context.Context) error
}

// ProvenanceRecord maps an artifact filename to its origin.
type ProvenanceRecord struct {
	URL  string `yaml:"url" json:"url"`
	Type string `yaml:"type" json:"type"`
}

// UnmarshalYAML also accepts the older url_mapping.yml layout, where each
// filename maps straight to its URL. Such records have no Type.
func (r *ProvenanceRecord) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		r.URL, r.Type = value.Value, ""
		return nil
	}
	type plain ProvenanceRecord
	var p plain
	if err := value.Decode(&p); err != nil {
		return fmt.Errorf("decode provenance record: %w", err)
	}
	*r = ProvenanceRecord(p)
	return nil
}

// ContextRecord holds the surroundings captured for an artifact.
type ContextRecord struct {
	URL     string `yaml:"url" json:"url"`
	Context string `yaml:"context" json:"context"`
	// BaseURL is the page an image was found on; empty for other artifacts.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Type    string `yaml:"type" json:"type"`
}

// Root keys used by the YAML files consumed downstream.
const (
	ProvenanceRootKey = "documents"
	ContextRootKey    = "files"
)
