package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// journalSchema creates the attempt journal table if missing.
const journalSchema = `
CREATE TABLE IF NOT EXISTS attendance_attempts (
	id              UUID PRIMARY KEY,
	lecture_id      TEXT NOT NULL,
	course_code     TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	failure_code    TEXT NULL,
	message         TEXT NOT NULL DEFAULT '',
	provider        TEXT NOT NULL DEFAULT '',
	wifi_verified   BOOLEAN NOT NULL DEFAULT FALSE,
	beacon_verified BOOLEAN NOT NULL DEFAULT FALSE,
	face_verified   BOOLEAN NOT NULL DEFAULT FALSE,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attendance_attempts_started_at ON attendance_attempts (started_at DESC);
`

// EnsureJournalSchema applies the journal DDL.
func EnsureJournalSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, journalSchema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}
