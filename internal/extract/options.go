package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/artifact"
	"github.com/JakeFAU/topic-crawler/internal/crawler"
	"github.com/JakeFAU/topic-crawler/internal/logging"
	"github.com/JakeFAU/topic-crawler/internal/progress"
)

// Options carries the collaborators shared by both extractors.
type Options struct {
	Sink   artifact.Sink
	Ledger crawler.DedupLedger
	Hasher crawler.Hasher
	// MinImageBytes is the exclusive lower size bound for kept images.
	MinImageBytes int
	Logger        *zap.Logger
	Emitter       progress.Emitter
	RunID         uuid.UUID
	Topic         string
	Now           func() time.Time
}

func (o Options) validate() error {
	if o.Sink == nil {
		return errors.New("artifact sink is required")
	}
	if o.Ledger == nil || o.Hasher == nil {
		return errors.New("ledger and hasher are required")
	}
	if o.MinImageBytes < 0 {
		return errors.New("min image bytes must be >= 0")
	}
	return nil
}

func (o Options) withDefaults() Options {
	o.Logger = logging.OrNop(o.Logger)
	o.Emitter = progress.OrDiscard(o.Emitter)
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// image is a candidate image artifact.
type image struct {
	data      []byte
	sourceURL string
	// name builds the filename once the format is known.
	name    func(format string) string
	context string
	baseURL string
}

// writeImage dedups img through the ledger, sniffs its format and writes it.
// It reports whether an artifact was written.
func (o Options) writeImage(ctx context.Context, img image) (bool, error) {
	h := o.Hasher.Hash(img.data)
	if o.Ledger.Contains(h) {
		crawler.DuplicateContent.WithLabelValues("image").Inc()
		o.Logger.Debug("skipping duplicate image", zap.String("url", img.sourceURL))
		o.Emitter.Emit(progress.Event{
			RunID: progress.UUIDToBytes(o.RunID),
			TS:    o.Now(),
			Stage: progress.StageDuplicate,
			Topic: o.Topic,
			URL:   img.sourceURL,
			Kind:  "image",
		})
		return false, nil
	}
	format := ImageFormat(img.data)
	err := o.Sink.Write(ctx, artifact.Artifact{
		Filename:  img.name(format),
		SourceURL: img.sourceURL,
		Kind:      artifact.KindImage,
		Data:      img.data,
		Context:   img.context,
		BaseURL:   img.baseURL,
	})
	if err != nil {
		return false, fmt.Errorf("write image: %w", err)
	}
	o.Ledger.Add(h)
	return true, nil
}

// ImageFormat sniffs the image format from its bytes and returns a file
// extension without the dot. Anything not recognized as an image is
// reported as "svg", since vector data is not detectable this way.
func ImageFormat(data []byte) string {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "svg"
	}
	ext := strings.TrimPrefix(mt.Extension(), ".")
	if ext == "" {
		return "svg"
	}
	return ext
}
