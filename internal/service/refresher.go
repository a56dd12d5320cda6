package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

type refreshable interface {
	State() models.SessionState
	Refresh(ctx context.Context) (models.SessionSnapshot, error)
}

// Refresher periodically re-evaluates the active lecture while the session
// is idle in Initial. Ticks during an attempt are skipped.
type Refresher struct {
	session  refreshable
	interval time.Duration
	logger   *zap.Logger
}

// NewRefresher constructs a Refresher.
func NewRefresher(session refreshable, interval time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{session: session, interval: interval, logger: logger}
}

// Run blocks until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs a single refresh if the session is in Initial. It reports
// whether a refresh ran.
func (r *Refresher) Tick(ctx context.Context) bool {
	if state := r.session.State(); state != models.StateInitial {
		r.logger.Debug("refresh skipped", zap.String("state", string(state)))
		return false
	}
	if _, err := r.session.Refresh(ctx); err != nil {
		r.logger.Warn("periodic refresh failed", zap.Error(err))
	}
	return true
}
