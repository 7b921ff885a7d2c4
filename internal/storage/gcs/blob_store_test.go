package gcs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	buf      bytes.Buffer
	closed   bool
	closeErr error
}

func (w *fakeWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fakeWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	fw := &fakeWriter{}
	var gotObject, gotType string
	s := &BlobStore{
		bucket: "artifacts",
		newWriter: func(_ context.Context, object, contentType string) objectWriter {
			gotObject, gotType = object, contentType
			return fw
		},
	}

	uri, err := s.PutObject(context.Background(), "franka/a.csv", "text/csv", strings.NewReader("h\n1\n"))
	require.NoError(t, err)
	require.Equal(t, "gs://artifacts/franka/a.csv", uri)
	require.Equal(t, "franka/a.csv", gotObject)
	require.Equal(t, "text/csv", gotType)
	require.Equal(t, "h\n1\n", fw.buf.String())
	require.True(t, fw.closed)
}

func TestPutObjectCloseError(t *testing.T) {
	t.Parallel()

	s := &BlobStore{
		bucket: "artifacts",
		newWriter: func(context.Context, string, string) objectWriter {
			return &fakeWriter{closeErr: errors.New("quota")}
		},
	}
	_, err := s.PutObject(context.Background(), "a", "", strings.NewReader("x"))
	require.ErrorContains(t, err, "quota")
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()
	s := &BlobStore{bucket: "artifacts"}
	_, err := s.PutObject(context.Background(), " ", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
}
