package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/logging"
	"github.com/JakeFAU/topic-crawler/internal/progress"
	"github.com/JakeFAU/topic-crawler/internal/store"
)

// Artifact is one extracted unit of content.
type Artifact struct {
	Filename  string
	SourceURL string
	// Kind is derived with Classify when empty.
	Kind    Kind
	Data    []byte
	Context string
	// BaseURL is the page an image was found on.
	BaseURL string
}

// Mirror receives a copy of every artifact (for example a GCS bucket).
type Mirror interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher announces written artifacts.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Notification is the payload published for each written artifact.
type Notification struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Type     Kind   `json:"type"`
	Topic    string `json:"topic"`
	RunID    string `json:"run_id"`
}

// Sink persists artifacts. Writer is the production implementation.
type Sink interface {
	Write(ctx context.Context, a Artifact) error
}

// WriterConfig wires a Writer.
type WriterConfig struct {
	FS           afero.Fs
	DocumentsDir string
	Provenance   store.Store[store.ProvenanceRecord]
	Context      store.Store[store.ContextRecord]
	Topic        string
	RunID        uuid.UUID
	// Optional collaborators.
	Mirror    Mirror
	Publisher Publisher
	// PublishTopic is passed to Publisher; defaults to Topic.
	PublishTopic string
	Emitter      progress.Emitter
	Logger       *zap.Logger
	Now          func() time.Time
}

// Writer writes artifact files atomically into the documents directory and
// records provenance and context for each one. Each artifact is its own
// unit: file, then provenance, then context.
type Writer struct {
	cfg    WriterConfig
	logger *zap.Logger
	emit   progress.Emitter

	mu      sync.Mutex
	written map[Kind]int
}

// NewWriter validates cfg and returns a Writer.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.FS == nil {
		return nil, errors.New("filesystem is required")
	}
	if strings.TrimSpace(cfg.DocumentsDir) == "" {
		return nil, errors.New("documents dir is required")
	}
	if cfg.Provenance == nil || cfg.Context == nil {
		return nil, errors.New("provenance and context stores are required")
	}
	if cfg.PublishTopic == "" {
		cfg.PublishTopic = cfg.Topic
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Writer{
		cfg:     cfg,
		logger:  logging.OrNop(cfg.Logger),
		emit:    progress.OrDiscard(cfg.Emitter),
		written: make(map[Kind]int),
	}, nil
}

// Write persists a. Mirror and publish failures are logged, not returned.
func (w *Writer) Write(ctx context.Context, a Artifact) error {
	if err := validateFilename(a.Filename); err != nil {
		return err
	}
	if a.Kind == "" {
		a.Kind = Classify(a.Filename, a.Data)
	}
	target := filepath.Join(w.cfg.DocumentsDir, a.Filename)
	if err := store.WriteFileAtomic(w.cfg.FS, target, a.Data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", a.Filename, err)
	}
	prov := store.ProvenanceRecord{URL: a.SourceURL, Type: string(a.Kind)}
	if err := w.cfg.Provenance.Upsert(ctx, a.Filename, prov); err != nil {
		return fmt.Errorf("record provenance for %s: %w", a.Filename, err)
	}
	if err := w.cfg.Provenance.Persist(ctx); err != nil {
		return fmt.Errorf("persist provenance: %w", err)
	}
	if a.Context != "" {
		rec := store.ContextRecord{URL: a.SourceURL, Context: a.Context, BaseURL: a.BaseURL, Type: string(a.Kind)}
		if err := w.cfg.Context.Upsert(ctx, a.Filename, rec); err != nil {
			return fmt.Errorf("record context for %s: %w", a.Filename, err)
		}
		if err := w.cfg.Context.Persist(ctx); err != nil {
			return fmt.Errorf("persist context: %w", err)
		}
	}

	w.mirror(ctx, a)
	w.publish(ctx, a)

	w.mu.Lock()
	w.written[a.Kind]++
	w.mu.Unlock()

	w.logger.Debug("artifact written",
		zap.String("filename", a.Filename),
		zap.String("kind", string(a.Kind)),
		zap.String("url", a.SourceURL),
		zap.Int("bytes", len(a.Data)))
	w.emit.Emit(progress.Event{
		RunID:    progress.UUIDToBytes(w.cfg.RunID),
		TS:       w.cfg.Now(),
		Stage:    progress.StageArtifact,
		Topic:    w.cfg.Topic,
		URL:      a.SourceURL,
		Kind:     string(a.Kind),
		Filename: a.Filename,
		Bytes:    int64(len(a.Data)),
	})
	return nil
}

// Written returns how many artifacts of each kind this Writer has written.
func (w *Writer) Written() map[Kind]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[Kind]int, len(w.written))
	for k, v := range w.written {
		out[k] = v
	}
	return out
}

func (w *Writer) mirror(ctx context.Context, a Artifact) {
	if w.cfg.Mirror == nil {
		return
	}
	object := path.Join(w.cfg.Topic, a.Filename)
	uri, err := w.cfg.Mirror.PutObject(ctx, object, contentType(a.Filename), bytes.NewReader(a.Data))
	if err != nil {
		w.logger.Warn("artifact mirror failed", zap.String("filename", a.Filename), zap.Error(err))
		return
	}
	w.logger.Debug("artifact mirrored", zap.String("uri", uri))
}

func (w *Writer) publish(ctx context.Context, a Artifact) {
	if w.cfg.Publisher == nil {
		return
	}
	msg := Notification{
		Filename: a.Filename,
		URL:      a.SourceURL,
		Type:     a.Kind,
		Topic:    w.cfg.Topic,
		RunID:    w.cfg.RunID.String(),
	}
	if _, err := w.cfg.Publisher.Publish(ctx, w.cfg.PublishTopic, msg); err != nil {
		w.logger.Warn("artifact notification failed", zap.String("filename", a.Filename), zap.Error(err))
	}
}

func validateFilename(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("artifact filename is required")
	case strings.ContainsAny(name, `/\`), name == "..":
		return fmt.Errorf("artifact filename %q must not contain path separators", name)
	}
	return nil
}

func contentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
