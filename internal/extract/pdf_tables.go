package extract

import (
	"math"
	"sort"
	"strings"
)

const (
	// cellGapFactor is the horizontal gap, in font sizes, that separates
	// two table cells on the same line.
	cellGapFactor = 1.5
	// wordGapFactor is the smallest gap, in font sizes, read as a space
	// between two glyphs of the same cell.
	wordGapFactor = 0.2
	// maxCellWords bounds the mean words per cell of an unruled table.
	// Runs above it are column prose.
	maxCellWords = 4
)

// defaultFontSize is used for glyphs without a usable font size.
const defaultFontSize = 10

// Rect is a filled or stroked rectangle drawn on a PDF page. Table rules
// are usually drawn as thin rectangles.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

type cell struct {
	x, end float64
	text   string
}

type layoutRow struct {
	y, size float64
	cells   []cell
}

// DetectTables finds tables in the glyph layout of one page. A line is
// split into cells wherever the gap between glyphs exceeds cellGapFactor
// font sizes. A table is a run of at least two consecutive lines with the
// same number of cells (at least two), each column overlapping the one
// above it. Runs whose cells average more than maxCellWords words are
// kept only when a rule from rules crosses them. Rows are returned
// top-down, header first.
func DetectTables(glyphs []Glyph, rules []Rect) [][][]string {
	var tables [][][]string
	var run []layoutRow
	flush := func() {
		if len(run) >= 2 && (ruled(run, rules) || !prose(run)) {
			table := make([][]string, 0, len(run))
			for _, r := range run {
				texts := make([]string, 0, len(r.cells))
				for _, c := range r.cells {
					texts = append(texts, c.text)
				}
				table = append(table, texts)
			}
			tables = append(tables, table)
		}
		run = nil
	}
	for _, line := range layoutLines(glyphs) {
		row := layoutRow{y: line[0].Y, size: fontSize(line[0]), cells: splitCells(line)}
		if len(row.cells) < 2 {
			flush()
			continue
		}
		if len(run) > 0 && !aligned(run[len(run)-1], row) {
			flush()
		}
		run = append(run, row)
	}
	flush()
	return tables
}

// aligned reports whether every cell of next overlaps the cell of prev in
// the same column, allowing one font size of slack.
func aligned(prev, next layoutRow) bool {
	if len(prev.cells) != len(next.cells) {
		return false
	}
	slack := math.Max(prev.size, next.size)
	for i, c := range next.cells {
		p := prev.cells[i]
		if c.x > p.end+slack || c.end < p.x-slack {
			return false
		}
	}
	return true
}

func prose(run []layoutRow) bool {
	var words, cells int
	for _, r := range run {
		for _, c := range r.cells {
			words += len(strings.Fields(c.text))
			cells++
		}
	}
	return float64(words)/float64(cells) > maxCellWords
}

// ruled reports whether a drawn rectangle spans the columns of run and
// touches its vertical band.
func ruled(run []layoutRow, rules []Rect) bool {
	first, last := run[0], run[len(run)-1]
	left := first.cells[0].x
	right := first.cells[len(first.cells)-1].x
	top := first.y + first.size
	bottom := last.y - last.size
	for _, r := range rules {
		if r.MinX <= left+first.size && r.MaxX >= right && r.MinY <= top && r.MaxY >= bottom {
			return true
		}
	}
	return false
}

// layoutLines groups glyphs by rounded baseline, top line first, each line
// sorted left to right.
func layoutLines(glyphs []Glyph) [][]Glyph {
	byY := make(map[float64][]Glyph)
	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			continue
		}
		y := math.Round(g.Y)
		byY[y] = append(byY[y], g)
	}
	ys := make([]float64, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

	lines := make([][]Glyph, 0, len(ys))
	for _, y := range ys {
		line := byY[y]
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		lines = append(lines, line)
	}
	return lines
}

func fontSize(g Glyph) float64 {
	if g.FontSize <= 0 {
		return defaultFontSize
	}
	return g.FontSize
}

func splitCells(line []Glyph) []cell {
	var (
		cells []cell
		text  strings.Builder
		cur   cell
	)
	closeCell := func() {
		cur.text = strings.TrimSpace(text.String())
		cells = append(cells, cur)
		text.Reset()
	}
	for i, g := range line {
		size := fontSize(g)
		gap := g.X - cur.end
		switch {
		case i == 0:
			cur = cell{x: g.X}
		case gap > cellGapFactor*size:
			closeCell()
			cur = cell{x: g.X}
		case gap > wordGapFactor*size:
			text.WriteByte(' ')
		}
		text.WriteString(g.S)
		cur.end = math.Max(cur.end, g.X+g.W)
	}
	if text.Len() > 0 {
		closeCell()
	}
	return cells
}
