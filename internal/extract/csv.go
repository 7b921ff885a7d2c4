package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
)

// ErrEmptyTable is returned for tables without any cell content.
var ErrEmptyTable = errors.New("table has no rows")

// tableCSV renders rows as CSV with the first row as the header. Rows are
// padded to the widest row.
func tableCSV(rows [][]string) ([]byte, error) {
	width := 0
	nonEmpty := false
	for _, r := range rows {
		width = max(width, len(r))
		for _, c := range r {
			if c != "" {
				nonEmpty = true
			}
		}
	}
	if len(rows) == 0 || width == 0 || !nonEmpty {
		return nil, ErrEmptyTable
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		padded := make([]string, width)
		copy(padded, r)
		if err := w.Write(padded); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
