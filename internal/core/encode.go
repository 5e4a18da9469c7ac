package core

import (
	"bytes"
	"encoding/csv"
)

// EncodeCSV renders a header row and data rows as comma-delimited text.
// Cells containing a delimiter, quote, newline or leading space are quoted
// and embedded quotes are doubled, so Parse(EncodeCSV(h, rows)) returns the
// same cells.
func EncodeCSV(headers []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return "", err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RowCells returns the cells of a parsed row in header order. Missing cells
// are empty strings.
func RowCells(headers []string, row RawRow) []string {
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i], _ = row.Get(h)
	}
	return cells
}
