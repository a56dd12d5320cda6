package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
	"github.com/noah-isme/sma-attendance-agent/pkg/export"
	"github.com/noah-isme/sma-attendance-agent/pkg/storage"
)

type historyProvider interface {
	Summary(ctx context.Context) (*models.StudentSummary, bool, error)
	History(ctx context.Context) ([]models.AttendanceRecord, bool, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Sign(id, relPath string) (string, time.Time, error)
	Verify(token string) (string, string, error)
}

type tableRenderer interface {
	Render(t export.Table) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Retention time.Duration
	Location  *time.Location
}

// ExportService renders the attendance history to CSV or PDF files and hands
// out signed download tokens.
type ExportService struct {
	history historyProvider
	storage fileStorage
	signer  downloadSigner
	csv     tableRenderer
	pdf     tableRenderer
	logger  *zap.Logger
	now     func() time.Time
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers default to the
// stock CSV and PDF renderers.
func NewExportService(history historyProvider, store fileStorage, signer downloadSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf tableRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if csv == nil {
		csv = export.NewCSVRenderer()
	}
	if pdf == nil {
		pdf = export.NewPDFRenderer()
	}
	return &ExportService{history: history, storage: store, signer: signer, csv: csv, pdf: pdf, logger: logger, now: time.Now, cfg: cfg}
}

// ExportHistory renders the history in the requested format.
func (s *ExportService) ExportHistory(ctx context.Context, format models.ExportFormat) (*models.ExportResult, error) {
	var renderer tableRenderer
	switch format {
	case models.ExportFormatCSV:
		renderer = s.csv
	case models.ExportFormatPDF:
		renderer = s.pdf
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	records, _, err := s.history.History(ctx)
	if err != nil {
		return nil, err
	}
	summary, _, err := s.history.Summary(ctx)
	if err != nil {
		s.logger.Warn("export without summary", zap.Error(err))
		summary = nil
	}

	payload, err := renderer.Render(s.historyTable(records, summary))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	name := fmt.Sprintf("history/%s_%s.%s", s.now().UTC().Format("20060102_150405"), id, format)
	relPath, err := s.storage.Save(name, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Sign(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	s.logger.Info("history exported", zap.String("export_id", id), zap.String("format", string(format)), zap.Int("rows", len(records)))
	return &models.ExportResult{
		ID:        id,
		Format:    format,
		Filename:  "attendance-history." + string(format),
		Token:     token,
		ExpiresAt: expiresAt,
		Rows:      len(records),
	}, nil
}

// Open resolves a download token to the stored file and a download name.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "download link is invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	ext := relPath[strings.LastIndex(relPath, ".")+1:]
	return file, "attendance-history." + ext, nil
}

// Cleanup removes exports older than the retention window.
func (s *ExportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.Retention)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
}

var historyHeaders = []string{"Date", "Course", "Lecture", "Status", "Method", "Face Verified"}

func (s *ExportService) historyTable(records []models.AttendanceRecord, summary *models.StudentSummary) export.Table {
	table := export.Table{
		Title:   "Attendance History",
		Headers: historyHeaders,
		Rows:    make([][]string, 0, len(records)),
	}
	if summary != nil {
		table.Title = fmt.Sprintf("Attendance History - %s (%s)", summary.Name, summary.StudentID)
		table.Footer = []string{fmt.Sprintf("Attended %d of %d lectures (%.1f%%)", summary.Attendance.Attended, summary.Attendance.Total, summary.Attendance.Percentage)}
	}
	table.Footer = append(table.Footer, "Generated "+s.now().In(s.cfg.Location).Format("2006-01-02 15:04"))

	for _, r := range records {
		face := "No"
		if r.FaceVerified {
			face = "Yes"
		}
		table.Rows = append(table.Rows, []string{s.formatTimestamp(r.Timestamp), r.CourseCode, r.LectureID, r.Status, r.ValidationMethod, face})
	}
	return table
}

// formatTimestamp renders backend timestamps in local time; unparseable
// values are passed through.
func (s *ExportService) formatTimestamp(raw string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(s.cfg.Location).Format("2006-01-02 15:04")
		}
	}
	return raw
}

var _ downloadSigner = (*storage.DownloadSigner)(nil)
