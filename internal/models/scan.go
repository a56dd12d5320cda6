package models

// Location is a one-shot position fix.
type Location struct {
	Latitude  float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// CheckStatus is the outcome of a single verification check.
type CheckStatus string

const (
	CheckPending     CheckStatus = "pending"
	CheckProcessing  CheckStatus = "processing"
	CheckVerified    CheckStatus = "verified"
	CheckNotFound    CheckStatus = "not_found"
	CheckUnavailable CheckStatus = "unavailable"
	CheckFailed      CheckStatus = "failed"
)

// ScanResult is gathered once per attendance attempt and never persisted.
type ScanResult struct {
	Location         *Location   `json:"location"`
	WifiIdentifier   *string     `json:"wifiIdentifier"`
	DeviceIdentifier *string     `json:"deviceIdentifier"`
	WifiStatus       CheckStatus `json:"wifiStatus"`
	BeaconStatus     CheckStatus `json:"beaconStatus"`
	Provider         string      `json:"provider"`
	NetworksSeen     int         `json:"networksSeen"`
	DevicesSeen      int         `json:"devicesSeen"`
}
