package models

import "time"

// ExportFormat is a supported history export format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult points at a rendered history export.
type ExportResult struct {
	ID        string       `json:"id"`
	Format    ExportFormat `json:"format"`
	Filename  string       `json:"filename"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Rows      int          `json:"rows"`
}
