package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

const (
	defaultAttemptLimit = 50
	maxAttemptLimit     = 500
)

// AttemptRepository persists the local journal of attendance attempts.
type AttemptRepository struct {
	db *sqlx.DB
}

// NewAttemptRepository constructs the repository.
func NewAttemptRepository(db *sqlx.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create inserts an attempt. Re-inserting the same id is a no-op so queue
// retries stay idempotent.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	if attempt.FinishedAt.IsZero() {
		attempt.FinishedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_attempts (id, lecture_id, course_code, outcome, failure_code, message, provider, wifi_verified, beacon_verified, face_verified, started_at, finished_at)
VALUES (:id, :lecture_id, :course_code, :outcome, :failure_code, :message, :provider, :wifi_verified, :beacon_verified, :face_verified, :started_at, :finished_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("create attendance attempt: %w", err)
	}
	return nil
}

// List returns attempts newest first.
func (r *AttemptRepository) List(ctx context.Context, filter models.AttemptFilter) ([]models.Attempt, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)

	if filter.LectureID != "" {
		args = append(args, filter.LectureID)
		conditions = append(conditions, fmt.Sprintf("lecture_id = $%d", len(args)))
	}
	if filter.Outcome != nil {
		args = append(args, *filter.Outcome)
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("started_at >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAttemptLimit
	}
	if limit > maxAttemptLimit {
		limit = maxAttemptLimit
	}
	args = append(args, limit)

	var b strings.Builder
	b.WriteString(`SELECT id, lecture_id, course_code, outcome, failure_code, message, provider, wifi_verified, beacon_verified, face_verified, started_at, finished_at FROM attendance_attempts`)
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY started_at DESC LIMIT $%d", len(args))

	attempts := []models.Attempt{}
	if err := r.db.SelectContext(ctx, &attempts, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list attendance attempts: %w", err)
	}
	return attempts, nil
}
