// Package gcs mirrors artifacts into a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the bucket parameters.
type Config struct {
	Bucket string
}

type objectWriter interface {
	io.Writer
	Close() error
}

// BlobStore uploads artifacts to a configured GCS bucket.
type BlobStore struct {
	bucket    string
	newWriter func(ctx context.Context, object, contentType string) objectWriter
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	bucket := client.Bucket(cfg.Bucket)
	return &BlobStore{
		bucket: cfg.Bucket,
		newWriter: func(ctx context.Context, object, contentType string) objectWriter {
			w := bucket.Object(object).NewWriter(ctx)
			if contentType != "" {
				w.ContentType = contentType
			}
			return w
		},
	}, nil
}

// PutObject uploads r to path and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is required")
	}
	w := s.newWriter(ctx, path, contentType)
	if _, err := io.Copy(w, r); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
