package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

type studentDataSource interface {
	Dashboard(ctx context.Context) (*models.StudentSummary, error)
	History(ctx context.Context) ([]models.AttendanceRecord, error)
}

// DashboardServiceConfig tunes dashboard caching.
type DashboardServiceConfig struct {
	SummaryTTL time.Duration
}

// DashboardService serves the student's summary and history, cached.
type DashboardService struct {
	source studentDataSource
	cache  *CacheService
	logger *zap.Logger
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(source studentDataSource, cache *CacheService, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 5 * time.Minute
	}
	return &DashboardService{source: source, cache: cache, logger: logger, cfg: cfg}
}

// Summary returns the attendance summary and whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*models.StudentSummary, bool, error) {
	var cached models.StudentSummary
	if s.cache.Get(ctx, cacheKeySummary, &cached) {
		return &cached, true, nil
	}
	summary, err := s.source.Dashboard(ctx)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKeySummary, summary, s.cfg.SummaryTTL)
	return summary, false, nil
}

// RefreshSummary drops cached summary and history, then reloads the summary.
// Called after every accepted attendance record.
func (s *DashboardService) RefreshSummary(ctx context.Context) (*models.StudentSummary, error) {
	s.cache.Delete(ctx, cacheKeySummary, cacheKeyHistory)
	summary, err := s.source.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cacheKeySummary, summary, s.cfg.SummaryTTL)
	s.logger.Info("student summary refreshed",
		zap.Float64("percentage", summary.Attendance.Percentage),
		zap.Int("attended", summary.Attendance.Attended),
		zap.Int("total", summary.Attendance.Total),
	)
	return summary, nil
}

// History returns the attendance history and whether it came from cache.
func (s *DashboardService) History(ctx context.Context) ([]models.AttendanceRecord, bool, error) {
	var cached []models.AttendanceRecord
	if s.cache.Get(ctx, cacheKeyHistory, &cached) {
		return cached, true, nil
	}
	records, err := s.source.History(ctx)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, cacheKeyHistory, records, s.cfg.SummaryTTL)
	return records, false, nil
}
