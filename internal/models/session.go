package models

import "time"

// SessionState is a state of the attendance session controller.
type SessionState string

const (
	StateInitial       SessionState = "initial"
	StateLocationScan  SessionState = "location-scan"
	StateIdentityCheck SessionState = "identity-check"
	StateProcessing    SessionState = "processing"
	StateSuccess       SessionState = "success"
)

// Failure describes why the last attempt returned to Initial.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionSnapshot is a copy of the controller state at one instant.
type SessionSnapshot struct {
	State                SessionState `json:"state"`
	ActiveLecture        *LectureSlot `json:"activeLecture,omitempty"`
	AttemptID            string       `json:"attemptId,omitempty"`
	WifiStatus           CheckStatus  `json:"wifiStatus"`
	BeaconStatus         CheckStatus  `json:"beaconStatus"`
	Provider             string       `json:"provider"`
	Failure              *Failure     `json:"failure,omitempty"`
	SuccessMessage       string       `json:"successMessage,omitempty"`
	TimetableUnavailable bool         `json:"timetableUnavailable"`
	Busy                 bool         `json:"busy"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// VerificationStep renders one check in the verification list.
type VerificationStep struct {
	Name   string      `json:"name"`
	Text   string      `json:"text"`
	Status CheckStatus `json:"status"`
}

// ViewModel is everything a UI needs to draw the attendance marker card.
type ViewModel struct {
	Panel          SessionState       `json:"panel"`
	Header         string             `json:"header"`
	HeaderPill     string             `json:"headerPill,omitempty"`
	HeaderSubtitle string             `json:"headerSubtitle"`
	Title          string             `json:"title"`
	Subtitle       string             `json:"subtitle"`
	StartEnabled   bool               `json:"startEnabled"`
	Steps          []VerificationStep `json:"steps"`
	Lecture        *LectureSlot       `json:"lecture,omitempty"`
	Error          *Failure           `json:"error,omitempty"`
}
