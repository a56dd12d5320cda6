package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

type timetableFetcher interface {
	Timetable(ctx context.Context) (models.Timetable, error)
}

// TimetableService fetches the weekly timetable. Fetch always goes to the
// backend; Cached is for display paths that tolerate a recent copy.
type TimetableService struct {
	backend timetableFetcher
	cache   *CacheService
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTimetableService constructs a TimetableService.
func NewTimetableService(backend timetableFetcher, cache *CacheService, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{backend: backend, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

// Fetch queries the backend and refreshes the cached copy.
func (s *TimetableService) Fetch(ctx context.Context) (models.Timetable, error) {
	start := time.Now()
	tt, err := s.backend.Timetable(ctx)
	s.metrics.ObserveStep(StepTimetable, err, time.Since(start))
	if err != nil {
		s.logger.Warn("timetable fetch failed", zap.Error(err))
		return nil, err
	}
	s.cache.Set(ctx, cacheKeyTimetable, tt, s.ttl)
	return tt, nil
}

// Cached returns the cached timetable when present, otherwise fetches it.
// The second result reports a cache hit.
func (s *TimetableService) Cached(ctx context.Context) (models.Timetable, bool, error) {
	var tt models.Timetable
	if s.cache.Get(ctx, cacheKeyTimetable, &tt) {
		return tt, true, nil
	}
	tt, err := s.Fetch(ctx)
	return tt, false, err
}
