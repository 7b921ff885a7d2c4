package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PdfcpuImages extracts embedded images with pdfcpu.
type PdfcpuImages struct{}

// Images implements PDFImageSource. Images are ordered by page, then by
// object number within a page. The document is parsed once and each page
// is read on its own, so one broken page or image stream only loses its
// own images.
func (PdfcpuImages) Images(data []byte) (out []PDFImage, err error) {
	defer guard(&err)
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.EXTRACTIMAGES
	doc, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return eachPage(doc.PageCount, func(page int) ([]PDFImage, error) {
		return pageImages(doc, page)
	})
}

// eachPage reads pages 1..n, keeping the images of every page that reads
// and joining the errors of those that do not.
func eachPage(n int, read func(page int) ([]PDFImage, error)) ([]PDFImage, error) {
	var (
		out  []PDFImage
		errs []error
	)
	for page := 1; page <= n; page++ {
		imgs, err := readGuarded(page, read)
		out = append(out, imgs...)
		if err != nil {
			errs = append(errs, fmt.Errorf("page %d: %w", page, err))
		}
	}
	return out, errors.Join(errs...)
}

func readGuarded(page int, read func(int) ([]PDFImage, error)) (imgs []PDFImage, err error) {
	defer guard(&err)
	return read(page)
}

func pageImages(doc *model.Context, page int) ([]PDFImage, error) {
	byObj, err := pdfcpu.ExtractPageImages(doc, page, false)
	if err != nil {
		return nil, err
	}
	objs := make([]int, 0, len(byObj))
	for nr := range byObj {
		objs = append(objs, nr)
	}
	sort.Ints(objs)

	var (
		out  []PDFImage
		errs []error
	)
	for _, nr := range objs {
		img := byObj[nr]
		if img.Reader == nil {
			continue
		}
		b, err := io.ReadAll(img)
		if err != nil {
			errs = append(errs, fmt.Errorf("image object %d: %w", nr, err))
			continue
		}
		out = append(out, PDFImage{Page: page, Data: b})
	}
	return out, errors.Join(errs...)
}
