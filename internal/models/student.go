package models

// AttendanceStats summarises attended lectures.
type AttendanceStats struct {
	Percentage float64 `json:"percentage"`
	Attended   int     `json:"attended"`
	Total      int     `json:"total"`
}

// StudentSummary is the backend's dashboard payload for the signed-in student.
type StudentSummary struct {
	Name       string          `json:"name"`
	StudentID  string          `json:"studentId"`
	Attendance AttendanceStats `json:"attendance"`
}

// AttendanceRecord is one entry of the student's attendance history.
type AttendanceRecord struct {
	ID                string `json:"id"`
	LectureID         string `json:"lectureId"`
	CourseCode        string `json:"courseCode"`
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	ValidationMethod  string `json:"validationMethod,omitempty"`
	ValidatedLocation string `json:"validatedLocation,omitempty"`
	ValidatedWifi     string `json:"validatedWifi,omitempty"`
	ValidatedTeacher  string `json:"validatedTeacher,omitempty"`
	FaceVerified      bool   `json:"faceVerified"`
}

// MarkAttendanceRequest is the combined record submitted after identity check.
type MarkAttendanceRequest struct {
	LectureID         string  `json:"lectureId" validate:"required"`
	Latitude          float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude         float64 `json:"longitude" validate:"gte=-180,lte=180"`
	BSSID             *string `json:"bssid"`
	BluetoothDeviceID *string `json:"bluetoothDeviceId"`
	FaceVerified      bool    `json:"faceVerified"`
}

// MarkAttendanceResult is the backend's success payload.
type MarkAttendanceResult struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// FaceVerification is the backend's verify-face payload.
type FaceVerification struct {
	Match     bool     `json:"match"`
	Message   string   `json:"message,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}
