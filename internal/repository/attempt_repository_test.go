package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

var attemptColumns = []string{"id", "lecture_id", "course_code", "outcome", "failure_code", "message", "provider", "wifi_verified", "beacon_verified", "face_verified", "started_at", "finished_at"}

func newAttemptRepoMock(t *testing.T) (*AttemptRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewAttemptRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestAttemptRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	code := "IDENTITY_MISMATCH"
	started := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	attempt := &models.Attempt{
		ID:          "a-1",
		LectureID:   "lec-1",
		CourseCode:  "CS101",
		Outcome:     models.AttemptFailed,
		FailureCode: &code,
		Message:     "Face verification failed",
		Provider:    "host",
		StartedAt:   started,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_attempts")).
		WithArgs("a-1", "lec-1", "CS101", "failed", "IDENTITY_MISMATCH", "Face verification failed", "host", false, false, false, started, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), attempt))
	assert.False(t, attempt.FinishedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryCreateError(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO attendance_attempts").WillReturnError(errors.New("disk full"))
	err := repo.Create(context.Background(), &models.Attempt{ID: "a-1"})
	assert.ErrorContains(t, err, "create attendance attempt")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryListWithFilters(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	outcome := models.AttemptSucceeded
	now := time.Now().UTC()

	rows := sqlmock.NewRows(attemptColumns).
		AddRow("a-2", "lec-1", "CS101", "succeeded", nil, "Attendance marked successfully!", "host", true, true, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_attempts WHERE lecture_id = $1 AND outcome = $2 AND started_at >= $3 ORDER BY started_at DESC LIMIT $4")).
		WithArgs("lec-1", "succeeded", since, 10).
		WillReturnRows(rows)

	attempts, err := repo.List(context.Background(), models.AttemptFilter{LectureID: "lec-1", Outcome: &outcome, Since: &since, Limit: 10})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "a-2", attempts[0].ID)
	assert.Nil(t, attempts[0].FailureCode)
	assert.True(t, attempts[0].FaceVerified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttemptRepositoryListDefaultsLimit(t *testing.T) {
	repo, mock, cleanup := newAttemptRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_attempts ORDER BY started_at DESC LIMIT $1")).
		WithArgs(defaultAttemptLimit).
		WillReturnRows(sqlmock.NewRows(attemptColumns))

	attempts, err := repo.List(context.Background(), models.AttemptFilter{})
	require.NoError(t, err)
	assert.Empty(t, attempts)
	assert.NotNil(t, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}
