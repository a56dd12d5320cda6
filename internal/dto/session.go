package dto

import "github.com/noah-isme/sma-attendance-agent/internal/models"

// SessionResponse is returned by every session endpoint.
type SessionResponse struct {
	View     models.ViewModel       `json:"view"`
	Snapshot models.SessionSnapshot `json:"snapshot"`
}

// ScheduleResponse lists today's lectures.
type ScheduleResponse struct {
	Day     string                 `json:"day"`
	Date    string                 `json:"date"`
	Entries []models.ScheduleEntry `json:"entries"`
}
