package artifact

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-crawler/internal/progress"
	pubmemory "github.com/JakeFAU/topic-crawler/internal/publisher/memory"
	blobmemory "github.com/JakeFAU/topic-crawler/internal/storage/memory"
	"github.com/JakeFAU/topic-crawler/internal/store"
)

type writerFixture struct {
	fs        afero.Fs
	prov      *store.YAMLFile[store.ProvenanceRecord]
	ctxStore  *store.YAMLFile[store.ContextRecord]
	mirror    *blobmemory.BlobStore
	publisher *pubmemory.Publisher
	events    *progress.Recorder
	runID     uuid.UUID
	writer    *Writer
}

func newWriterFixture(t *testing.T) *writerFixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := store.Layout{Root: "/data/franka"}
	prov, err := store.OpenYAMLFile[store.ProvenanceRecord](fs, layout.URLMappingPath(), store.ProvenanceRootKey)
	require.NoError(t, err)
	ctxStore, err := store.OpenYAMLFile[store.ContextRecord](fs, layout.ContextPath(), store.ContextRootKey)
	require.NoError(t, err)

	f := &writerFixture{
		fs:        fs,
		prov:      prov,
		ctxStore:  ctxStore,
		mirror:    blobmemory.NewBlobStore(),
		publisher: pubmemory.New(),
		events:    &progress.Recorder{},
		runID:     uuid.MustParse("0190c6d2-8a1e-7b3c-9d4e-5f6a7b8c9d0e"),
	}
	f.writer, err = NewWriter(WriterConfig{
		FS:           fs,
		DocumentsDir: layout.DocumentsDir(),
		Provenance:   prov,
		Context:      ctxStore,
		Topic:        "franka",
		RunID:        f.runID,
		Mirror:       f.mirror,
		Publisher:    f.publisher,
		Emitter:      f.events,
		Now:          func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)
	return f
}

func TestWriterWritesFileAndRecords(t *testing.T) {
	t.Parallel()
	f := newWriterFixture(t)
	ctx := context.Background()

	err := f.writer.Write(ctx, Artifact{
		Filename:  "good_org_a_png.png",
		SourceURL: "https://good.org/a.png",
		Data:      []byte("PNGDATA"),
		Context:   "alt: arm",
		BaseURL:   "https://good.org/",
	})
	require.NoError(t, err)

	data, err := afero.ReadFile(f.fs, "/data/franka/documents/good_org_a_png.png")
	require.NoError(t, err)
	require.Equal(t, "PNGDATA", string(data))

	reopened, err := store.OpenYAMLFile[store.ProvenanceRecord](f.fs, "/data/franka/url_mapping.yml", store.ProvenanceRootKey)
	require.NoError(t, err)
	prov, err := reopened.Get(ctx, "good_org_a_png.png")
	require.NoError(t, err)
	require.Equal(t, store.ProvenanceRecord{URL: "https://good.org/a.png", Type: "image"}, prov)

	ctxRec, err := f.ctxStore.Get(ctx, "good_org_a_png.png")
	require.NoError(t, err)
	require.Equal(t, "https://good.org/", ctxRec.BaseURL)
	require.Equal(t, "image", ctxRec.Type)

	obj, ok := f.mirror.Get("franka/good_org_a_png.png")
	require.True(t, ok)
	require.Equal(t, "image/png", obj.ContentType)

	msgs := f.publisher.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "franka", msgs[0].Topic)
	var note Notification
	require.NoError(t, msgs[0].Decode(&note))
	require.Equal(t, Notification{
		Filename: "good_org_a_png.png",
		URL:      "https://good.org/a.png",
		Type:     KindImage,
		Topic:    "franka",
		RunID:    f.runID.String(),
	}, note)

	evts := f.events.ByStage(progress.StageArtifact)
	require.Len(t, evts, 1)
	require.Equal(t, "image", evts[0].Kind)
	require.Equal(t, map[Kind]int{KindImage: 1}, f.writer.Written())
}

func TestWriterSkipsContextWhenEmpty(t *testing.T) {
	t.Parallel()
	f := newWriterFixture(t)
	ctx := context.Background()

	require.NoError(t, f.writer.Write(ctx, Artifact{
		Filename:  "good_org.txt",
		SourceURL: "https://good.org/",
		Data:      []byte(CodeDocument("a.go", "main", "x")),
	}))
	_, err := f.ctxStore.Get(ctx, "good_org.txt")
	require.ErrorIs(t, err, store.ErrNotFound)

	prov, err := f.prov.Get(ctx, "good_org.txt")
	require.NoError(t, err)
	require.Equal(t, "code", prov.Type)
}

func TestWriterRejectsBadFilenames(t *testing.T) {
	t.Parallel()
	f := newWriterFixture(t)
	for _, name := range []string{"", "  ", "../escape.txt", `a\b.txt`} {
		require.Error(t, f.writer.Write(context.Background(), Artifact{Filename: name}), name)
	}
}

type failingMirror struct{}

func (failingMirror) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestWriterMirrorFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	prov, err := store.OpenYAMLFile[store.ProvenanceRecord](fs, "/m.yml", store.ProvenanceRootKey)
	require.NoError(t, err)
	ctxStore, err := store.OpenYAMLFile[store.ContextRecord](fs, "/c.yaml", store.ContextRootKey)
	require.NoError(t, err)
	w, err := NewWriter(WriterConfig{
		FS: fs, DocumentsDir: "/docs", Provenance: prov, Context: ctxStore, Mirror: failingMirror{},
	})
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), Artifact{Filename: "a.txt", Data: []byte("x")}))
	exists, err := afero.Exists(fs, "/docs/a.txt")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestNewWriterValidates(t *testing.T) {
	t.Parallel()
	_, err := NewWriter(WriterConfig{})
	require.Error(t, err)
	_, err = NewWriter(WriterConfig{FS: afero.NewMemMapFs(), DocumentsDir: "/docs"})
	require.Error(t, err)
}
