package models

import "time"

// AttemptOutcome is the terminal result of one attendance attempt.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
)

// Attempt is the journal row for one attendance attempt. Scan data itself is
// not recorded, only which checks passed.
type Attempt struct {
	ID             string         `db:"id" json:"id"`
	LectureID      string         `db:"lecture_id" json:"lectureId"`
	CourseCode     string         `db:"course_code" json:"courseCode"`
	Outcome        AttemptOutcome `db:"outcome" json:"outcome"`
	FailureCode    *string        `db:"failure_code" json:"failureCode,omitempty"`
	Message        string         `db:"message" json:"message"`
	Provider       string         `db:"provider" json:"provider"`
	WifiVerified   bool           `db:"wifi_verified" json:"wifiVerified"`
	BeaconVerified bool           `db:"beacon_verified" json:"beaconVerified"`
	FaceVerified   bool           `db:"face_verified" json:"faceVerified"`
	StartedAt      time.Time      `db:"started_at" json:"startedAt"`
	FinishedAt     time.Time      `db:"finished_at" json:"finishedAt"`
}

// AttemptFilter scopes journal listings.
type AttemptFilter struct {
	LectureID string
	Outcome   *AttemptOutcome
	Since     *time.Time
	Limit     int
}
