// Package export renders tabular data as CSV or PDF documents.
package export

import "fmt"

// Table is an ordered, rectangular export body.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Footer lines are printed under the table in PDF output only.
	Footer []string
}

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table requires at least one header")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Headers))
		}
	}
	return nil
}
