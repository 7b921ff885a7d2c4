package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-crawler/internal/artifact"
)

// Glyph is a positioned run of text on a PDF page. Y grows upwards.
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// PDFPage is the text layer of one page. Number is 1-based.
type PDFPage struct {
	Number int
	Text   string
	Glyphs []Glyph
	Rules  []Rect
}

// PDFImage is an embedded image. Page is 1-based.
type PDFImage struct {
	Page int
	Data []byte
}

// PDFTextSource reads the text layer of a PDF.
type PDFTextSource interface {
	Pages(data []byte) ([]PDFPage, error)
}

// PDFImageSource reads the embedded images of a PDF in page order. Pages
// or images that cannot be read are reported in the error while the rest
// are still returned.
type PDFImageSource interface {
	Images(data []byte) ([]PDFImage, error)
}

// PDFExtractor writes the text, images and tables of a PDF document.
type PDFExtractor struct {
	opts   Options
	text   PDFTextSource
	images PDFImageSource
}

// NewPDFExtractor builds a PDFExtractor. Nil sources fall back to the
// ledongthuc text reader and the pdfcpu image reader.
func NewPDFExtractor(opts Options, text PDFTextSource, images PDFImageSource) (*PDFExtractor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if text == nil {
		text = LedongthucText{}
	}
	if images == nil {
		images = PdfcpuImages{}
	}
	return &PDFExtractor{opts: opts.withDefaults(), text: text, images: images}, nil
}

// Extract implements crawler.Extractor.
func (e *PDFExtractor) Extract(ctx context.Context, pageURL string, body []byte) error {
	pages, err := e.text.Pages(body)
	if err != nil {
		return fmt.Errorf("read pdf text: %w", err)
	}
	log := e.opts.Logger.With(zap.String("url", pageURL))

	pageText := make(map[int]string, len(pages))
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		pageText[p.Number] = p.Text
		parts = append(parts, p.Text)
	}
	if text := strings.Join(parts, "\n"); strings.TrimSpace(text) != "" {
		err := e.opts.Sink.Write(ctx, artifact.Artifact{
			Filename:  artifact.Name(pageURL, "", "txt"),
			SourceURL: pageURL,
			Kind:      artifact.KindText,
			Data:      []byte(text),
		})
		if err != nil {
			log.Warn("writing pdf text failed", zap.Error(err))
		}
	}

	e.extractImages(ctx, pageURL, body, pageText, log)

	for _, p := range pages {
		if ctx.Err() != nil {
			return nil
		}
		for t, rows := range DetectTables(p.Glyphs, p.Rules) {
			tlog := log.With(zap.Int("page", p.Number), zap.Int("table", t+1))
			data, err := tableCSV(rows)
			if err != nil {
				tlog.Warn("skipping pdf table", zap.Error(err))
				continue
			}
			err = e.opts.Sink.Write(ctx, artifact.Artifact{
				Filename:  artifact.Name(pageURL, artifact.PageSuffix(p.Number, "table", t+1), "csv"),
				SourceURL: pageURL,
				Kind:      artifact.KindTable,
				Data:      data,
				Context:   p.Text,
			})
			if err != nil {
				tlog.Warn("writing pdf table failed", zap.Error(err))
			}
		}
	}
	return nil
}

func (e *PDFExtractor) extractImages(ctx context.Context, pageURL string, body []byte, pageText map[int]string, log *zap.Logger) {
	imgs, err := e.images.Images(body)
	if err != nil {
		log.Warn("reading pdf images failed", zap.Int("readable", len(imgs)), zap.Error(err))
	}
	perPage := make(map[int]int)
	for _, img := range imgs {
		if ctx.Err() != nil {
			return
		}
		perPage[img.Page]++
		suffix := artifact.PageSuffix(img.Page, "image", perPage[img.Page])
		if len(img.Data) <= e.opts.MinImageBytes {
			log.Debug("skipping small pdf image", zap.String("image", suffix), zap.Int("bytes", len(img.Data)))
			continue
		}
		_, err := e.opts.writeImage(ctx, image{
			data:      img.Data,
			sourceURL: pageURL,
			name:      func(format string) string { return artifact.Name(pageURL, suffix, format) },
			context:   pageText[img.Page],
		})
		if err != nil {
			log.Warn("pdf image write failed", zap.String("image", suffix), zap.Error(err))
		}
	}
}

// errPDFPanic wraps panics raised by the PDF libraries on malformed input.
var errPDFPanic = errors.New("pdf parser panicked")

func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", errPDFPanic, r)
	}
}
