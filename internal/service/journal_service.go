package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
	"github.com/noah-isme/sma-attendance-agent/pkg/jobs"
)

const journalJobKind = "attempt"

type attemptRepository interface {
	Create(ctx context.Context, attempt *models.Attempt) error
	List(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, error)
}

// JournalConfig tunes the journal writer.
type JournalConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// JournalService records finished attempts asynchronously so a slow database
// never delays the session.
type JournalService struct {
	repo    attemptRepository
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewJournalService constructs a journal. A nil repo disables it.
func NewJournalService(repo attemptRepository, cfg JournalConfig, metrics *MetricsService, logger *zap.Logger) *JournalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &JournalService{repo: repo, metrics: metrics, logger: logger}
	if repo != nil {
		s.queue = jobs.NewQueue("attempt-journal", s.handle, jobs.QueueConfig{
			Workers:    cfg.Workers,
			MaxRetries: cfg.Retries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
		})
	}
	return s
}

// Enabled reports whether attempts are persisted.
func (s *JournalService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Start launches the writer.
func (s *JournalService) Start(ctx context.Context) {
	if s.Enabled() {
		s.queue.Start(ctx)
	}
}

// Stop flushes buffered attempts and stops the writer.
func (s *JournalService) Stop() {
	if s.Enabled() {
		s.queue.Stop()
	}
}

// Record queues an attempt for persistence. It never blocks.
func (s *JournalService) Record(ctx context.Context, attempt models.Attempt) {
	if !s.Enabled() {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: attempt.ID, Kind: journalJobKind, Payload: attempt}); err != nil {
		s.logger.Warn("attempt not journaled", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
}

// List returns recent attempts.
func (s *JournalService) List(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "attempt journal is disabled")
	}
	start := time.Now()
	attempts, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("list_attempts", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attempts")
	}
	return attempts, nil
}

func (s *JournalService) handle(ctx context.Context, job jobs.Job) error {
	attempt, ok := job.Payload.(models.Attempt)
	if !ok {
		return fmt.Errorf("unexpected journal payload %T", job.Payload)
	}
	start := time.Now()
	err := s.repo.Create(ctx, &attempt)
	s.metrics.ObserveDBQuery("create_attempt", time.Since(start))
	return err
}
