package service

import (
	"fmt"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

// Verification step names.
const (
	StepNameWifi   = "wifi"
	StepNameBeacon = "bluetooth"
	StepNameFace   = "face"
)

// RenderView maps a snapshot to what the attendance card shows. It performs
// no I/O and depends on nothing but its argument.
func RenderView(snap models.SessionSnapshot) models.ViewModel {
	vm := models.ViewModel{
		Panel:   snap.State,
		Lecture: snap.ActiveLecture,
		Error:   snap.Failure,
	}

	if snap.ActiveLecture != nil {
		vm.Header = snap.ActiveLecture.CourseCode
		vm.HeaderPill = "ACTIVE"
		vm.HeaderSubtitle = fmt.Sprintf("Room %s • %s - %s", snap.ActiveLecture.RoomNumber, snap.ActiveLecture.StartTime, snap.ActiveLecture.EndTime)
	} else {
		vm.Header = "No Active Lecture"
		vm.HeaderSubtitle = "Check your schedule for the next class."
	}

	switch snap.State {
	case models.StateInitial:
		renderInitial(&vm, snap)
	case models.StateLocationScan:
		vm.Title = "Verifying your location"
		vm.Subtitle = "Hold on while we confirm you are in the classroom."
	case models.StateIdentityCheck:
		vm.Title = "Face Verification"
		vm.Subtitle = "Please look at the camera for identity verification"
	case models.StateProcessing:
		vm.Title = "Marking attendance"
		vm.Subtitle = "Submitting your attendance record..."
	case models.StateSuccess:
		vm.Title = "Attendance Marked"
		vm.Subtitle = snap.SuccessMessage
		if vm.Subtitle == "" {
			vm.Subtitle = DefaultSuccessMessage
		}
	}

	vm.Steps = renderSteps(snap)
	return vm
}

func renderInitial(vm *models.ViewModel, snap models.SessionSnapshot) {
	switch {
	case snap.Failure != nil:
		vm.Title = "Check Failed"
		if snap.Failure.Code == appErrors.ErrServerRejected.Code {
			vm.Title = "Attendance Failed"
		}
		vm.Subtitle = snap.Failure.Message
		vm.StartEnabled = snap.ActiveLecture != nil && !snap.Busy
	case snap.TimetableUnavailable:
		vm.Title = "Error Loading Data"
		vm.Subtitle = "Could not load your timetable. Please try again later."
	case snap.ActiveLecture == nil:
		vm.Title = "No lecture right now"
		vm.Subtitle = "Come back when your next class starts."
	default:
		vm.Title = "Ready to mark attendance"
		vm.Subtitle = "Start the check when you are seated in class."
		vm.StartEnabled = !snap.Busy
	}
}

func renderSteps(snap models.SessionSnapshot) []models.VerificationStep {
	if snap.State == models.StateInitial {
		return []models.VerificationStep{
			{Name: StepNameWifi, Text: "Checking Campus Wi-Fi...", Status: models.CheckPending},
			{Name: StepNameBeacon, Text: "Scanning for Classroom Beacon...", Status: models.CheckPending},
			{Name: StepNameFace, Text: "Face verification", Status: models.CheckPending},
		}
	}

	face := models.CheckPending
	switch snap.State {
	case models.StateIdentityCheck:
		face = models.CheckProcessing
	case models.StateProcessing, models.StateSuccess:
		face = models.CheckVerified
	}

	return []models.VerificationStep{
		{Name: StepNameWifi, Text: wifiText(snap.WifiStatus), Status: snap.WifiStatus},
		{Name: StepNameBeacon, Text: beaconText(snap.BeaconStatus), Status: snap.BeaconStatus},
		{Name: StepNameFace, Text: faceText(face), Status: face},
	}
}

func wifiText(status models.CheckStatus) string {
	switch status {
	case models.CheckProcessing:
		return "Scanning WiFi networks..."
	case models.CheckVerified:
		return "WiFi Verified!"
	case models.CheckNotFound:
		return "No WiFi networks found"
	case models.CheckUnavailable:
		return "WiFi scan requires desktop app"
	case models.CheckFailed:
		return "Scan failed"
	}
	return "Checking Campus Wi-Fi..."
}

func beaconText(status models.CheckStatus) string {
	switch status {
	case models.CheckProcessing:
		return "Scanning for teacher devices..."
	case models.CheckVerified:
		return "Teacher device detected!"
	case models.CheckNotFound:
		return "No teacher device found"
	case models.CheckUnavailable:
		return "Bluetooth scan requires desktop app"
	case models.CheckFailed:
		return "Scan failed"
	}
	return "Scanning for Classroom Beacon..."
}

func faceText(status models.CheckStatus) string {
	switch status {
	case models.CheckProcessing:
		return "Look at the camera..."
	case models.CheckVerified:
		return "Face verified"
	}
	return "Face verification"
}
