package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// LedongthucText reads page text and glyph positions with ledongthuc/pdf.
type LedongthucText struct{}

// Pages implements PDFTextSource. Pages that fail to decode are returned
// without text rather than failing the document.
func (LedongthucText) Pages(data []byte) (pages []PDFPage, err error) {
	defer guard(&err)
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	n := r.NumPage()
	pages = make([]PDFPage, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, readPage(r, i))
	}
	return pages, nil
}

func readPage(r *pdf.Reader, num int) (page PDFPage) {
	page.Number = num
	defer func() {
		if recover() != nil {
			page = PDFPage{Number: num}
		}
	}()
	p := r.Page(num)
	if p.V.IsNull() {
		return page
	}
	if text, err := p.GetPlainText(nil); err == nil {
		page.Text = text
	}
	content := p.Content()
	for _, t := range content.Text {
		page.Glyphs = append(page.Glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	for _, r := range content.Rect {
		page.Rules = append(page.Rules, Rect{MinX: r.Min.X, MinY: r.Min.Y, MaxX: r.Max.X, MaxY: r.Max.Y})
	}
	return page
}
