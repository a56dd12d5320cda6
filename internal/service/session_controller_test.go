package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-agent/internal/camera"
	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

type fakeTimetables struct {
	mu      sync.Mutex
	tt      models.Timetable
	err     error
	calls   int
	onFetch func()
}

func (f *fakeTimetables) Fetch(ctx context.Context) (models.Timetable, error) {
	f.mu.Lock()
	f.calls++
	hook := f.onFetch
	tt, err := f.tt, f.err
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return tt, err
}

type fakeBackend struct {
	mu           sync.Mutex
	verification *models.FaceVerification
	verifyErr    error
	verifyCalls  int
	dataURL      string
	result       *models.MarkAttendanceResult
	markErr      error
	markCalls    int
	lastReq      models.MarkAttendanceRequest
	onMark       func(ctx context.Context) error
}

func (f *fakeBackend) VerifyFace(ctx context.Context, dataURL string) (*models.FaceVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.dataURL = dataURL
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.verification == nil {
		return &models.FaceVerification{Match: true}, nil
	}
	return f.verification, nil
}

func (f *fakeBackend) MarkAttendance(ctx context.Context, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	f.mu.Lock()
	f.markCalls++
	f.lastReq = req
	hook := f.onMark
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if f.markErr != nil {
		return nil, f.markErr
	}
	return f.result, nil
}

func (f *fakeBackend) marks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markCalls
}

type fakeScanner struct {
	name    string
	result  models.ScanResult
	err     error
	calls   int
	observe func()
}

func (f *fakeScanner) Name() string { return f.name }

func (f *fakeScanner) Scan(ctx context.Context) (models.ScanResult, error) {
	f.calls++
	if f.observe != nil {
		f.observe()
	}
	return f.result, f.err
}

type fakeCameraStream struct {
	device *fakeCamera
}

func (s *fakeCameraStream) Frame(ctx context.Context) ([]byte, error) {
	return []byte("frame"), s.device.frameErr
}

func (s *fakeCameraStream) Close() error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.device.released++
	return nil
}

type fakeCamera struct {
	mu       sync.Mutex
	opened   int
	released int
	openErr  error
	frameErr error
	observe  func()
	stall    bool
}

func (f *fakeCamera) Open(ctx context.Context) (camera.Stream, error) {
	if f.observe != nil {
		f.observe()
	}
	f.mu.Lock()
	stall := f.stall
	f.mu.Unlock()
	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	return &fakeCameraStream{device: f}, nil
}

type fakeJournal struct {
	mu       sync.Mutex
	attempts []models.Attempt
}

func (f *fakeJournal) Record(ctx context.Context, attempt models.Attempt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
}

type fakeSummary struct {
	calls int
}

func (f *fakeSummary) RefreshSummary(ctx context.Context) (*models.StudentSummary, error) {
	f.calls++
	return &models.StudentSummary{Name: "Asha"}, nil
}

type controllerFixture struct {
	controller *SessionController
	timetables *fakeTimetables
	backend    *fakeBackend
	scanner    *fakeScanner
	camera     *fakeCamera
	journal    *fakeJournal
	summary    *fakeSummary
}

func strPtr(s string) *string { return &s }

func newControllerFixture(t *testing.T, now time.Time) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		timetables: &fakeTimetables{tt: mondayTimetable(map[string]*models.LectureSlot{
			"1": lecture("lec-1", "CS101", "09:00", "10:00"),
			"2": lecture("brk", "BREAK", "10:00", "10:15"),
		})},
		backend: &fakeBackend{result: &models.MarkAttendanceResult{Message: "Attendance marked for CS101"}},
		scanner: &fakeScanner{name: "host", result: models.ScanResult{
			Location:         &models.Location{Latitude: 12.97, Longitude: 77.59},
			WifiIdentifier:   strPtr("AA:BB:CC:DD:EE:FF"),
			DeviceIdentifier: strPtr("01:02:03:04:05:06"),
			WifiStatus:       models.CheckVerified,
			BeaconStatus:     models.CheckVerified,
			Provider:         "host",
		}},
		camera:  &fakeCamera{},
		journal: &fakeJournal{},
		summary: &fakeSummary{},
	}
	f.controller = NewSessionController(SessionControllerParams{
		Timetables: f.timetables,
		Backend:    f.backend,
		Scanner:    f.scanner,
		Camera:     f.camera,
		Journal:    f.journal,
		Summary:    f.summary,
		Metrics:    NewMetricsService(),
		Config:     SessionControllerConfig{StabilizationDelay: 0, SubmitTimeout: time.Second, Location: time.UTC},
	})
	f.controller.now = func() time.Time { return now }
	return f
}

func TestRefreshSetsActiveLecture(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))

	snap, err := f.controller.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveLecture)
	assert.Equal(t, "CS101", snap.ActiveLecture.CourseCode)

	view := RenderView(snap)
	assert.True(t, view.StartEnabled)
	assert.Equal(t, "CS101", view.Header)
	assert.Equal(t, "ACTIVE", view.HeaderPill)
}

func TestRefreshWithoutActiveLectureDisablesStart(t *testing.T) {
	f := newControllerFixture(t, monday(10, 1))

	snap, err := f.controller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.ActiveLecture)

	view := RenderView(snap)
	assert.False(t, view.StartEnabled)
	assert.Equal(t, "No Active Lecture", view.Header)
	assert.Equal(t, "No lecture right now", view.Title)
}

func TestRefreshTimetableFailure(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	_, err := f.controller.Refresh(context.Background())
	require.NoError(t, err)

	f.timetables.err = appErrors.Clone(appErrors.ErrNetworkUnavailable, "Could not reach the attendance server.")
	snap, err := f.controller.Refresh(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrNetworkUnavailable)
	assert.Nil(t, snap.ActiveLecture)
	assert.True(t, snap.TimetableUnavailable)

	view := RenderView(snap)
	assert.Equal(t, "Error Loading Data", view.Title)
	assert.False(t, view.StartEnabled)
}

func TestStartWithoutActiveLecture(t *testing.T) {
	f := newControllerFixture(t, monday(10, 1))

	snap, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrNoActiveLecture)
	assert.Equal(t, models.StateInitial, snap.State)
	assert.Nil(t, snap.Failure)
	assert.Zero(t, f.scanner.calls)
	assert.Empty(t, f.journal.attempts)
}

func TestStartHappyPath(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))

	var seen []models.SessionState
	f.scanner.observe = func() { seen = append(seen, f.controller.State()) }
	f.camera.observe = func() { seen = append(seen, f.controller.State()) }
	f.backend.onMark = func(ctx context.Context) error {
		seen = append(seen, f.controller.State())
		return nil
	}

	snap, err := f.controller.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.SessionState{models.StateLocationScan, models.StateIdentityCheck, models.StateProcessing}, seen)
	assert.Equal(t, models.StateSuccess, snap.State)
	assert.Equal(t, "Attendance marked for CS101", snap.SuccessMessage)
	assert.NotEmpty(t, snap.AttemptID)

	req := f.backend.lastReq
	assert.Equal(t, "lec-1", req.LectureID)
	assert.Equal(t, 12.97, req.Latitude)
	assert.Equal(t, 77.59, req.Longitude)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", *req.BSSID)
	assert.Equal(t, "01:02:03:04:05:06", *req.BluetoothDeviceID)
	assert.True(t, req.FaceVerified)
	assert.Equal(t, camera.DataURLPrefix+"ZnJhbWU=", f.backend.dataURL)

	assert.Equal(t, 1, f.camera.opened)
	assert.Equal(t, 1, f.camera.released)
	assert.Equal(t, 1, f.summary.calls)

	require.Len(t, f.journal.attempts, 1)
	attempt := f.journal.attempts[0]
	assert.Equal(t, models.AttemptSucceeded, attempt.Outcome)
	assert.True(t, attempt.WifiVerified)
	assert.True(t, attempt.BeaconVerified)
	assert.True(t, attempt.FaceVerified)
	assert.Nil(t, attempt.FailureCode)

	view := RenderView(snap)
	assert.Equal(t, models.StateSuccess, view.Panel)
	assert.Equal(t, "Attendance marked for CS101", view.Subtitle)
	assert.False(t, view.StartEnabled)
}

func TestStartDefaultSuccessMessage(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.backend.result = &models.MarkAttendanceResult{}

	snap, err := f.controller.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSuccessMessage, snap.SuccessMessage)
}

func TestStartLocationPermissionDenied(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.scanner.err = appErrors.Clone(appErrors.ErrPermissionDenied, "Location error: permission denied. Allow location access and try again.")

	snap, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)
	assert.Equal(t, models.StateInitial, snap.State)
	require.NotNil(t, snap.Failure)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, snap.Failure.Code)
	assert.Contains(t, snap.Failure.Message, "permission denied")
	assert.Equal(t, f.camera.opened, f.camera.released)
	assert.Zero(t, f.backend.marks())

	view := RenderView(snap)
	assert.True(t, view.StartEnabled)
	assert.Equal(t, "Check Failed", view.Title)
}

func TestStartIdentityMismatchSkipsSubmission(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.backend.verification = &models.FaceVerification{Match: false, Message: "Face does not match registered student"}

	snap, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrIdentityMismatch)
	assert.Equal(t, models.StateInitial, snap.State)
	assert.Equal(t, "Face does not match registered student", snap.Failure.Message)
	assert.Zero(t, f.backend.marks())
	assert.Equal(t, 1, f.camera.released)

	require.Len(t, f.journal.attempts, 1)
	assert.Equal(t, models.AttemptFailed, f.journal.attempts[0].Outcome)
	assert.Equal(t, appErrors.ErrIdentityMismatch.Code, *f.journal.attempts[0].FailureCode)
}

func TestStartCameraFailureReleasesStream(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.camera.frameErr = errors.New("sensor busy")

	snap, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrCameraUnavailable)
	assert.Equal(t, models.StateInitial, snap.State)
	assert.Equal(t, 1, f.camera.opened)
	assert.Equal(t, 1, f.camera.released)
	assert.Zero(t, f.backend.verifyCalls)
}

func TestStartServerRejectionIsVerbatim(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.backend.markErr = appErrors.Clone(appErrors.ErrServerRejected, "You have already marked attendance for this lecture.")

	snap, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrServerRejected)
	assert.Equal(t, "You have already marked attendance for this lecture.", snap.Failure.Message)

	view := RenderView(snap)
	assert.Equal(t, "Attendance Failed", view.Title)
	assert.Equal(t, "You have already marked attendance for this lecture.", view.Subtitle)
	assert.True(t, view.StartEnabled)
}

func TestStartUnknownErrorSurfacesText(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.backend.markErr = errors.New("unexpected EOF")

	snap, err := f.controller.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrServerRejected.Code, snap.Failure.Code)
	assert.Equal(t, "unexpected EOF", snap.Failure.Message)
}

func TestStartSubmitTimeout(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.controller.cfg.SubmitTimeout = 20 * time.Millisecond
	f.backend.onMark = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	snap, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrTimeout)
	assert.Equal(t, models.StateInitial, snap.State)
	assert.Equal(t, appErrors.ErrTimeout.Code, snap.Failure.Code)
}

func TestStartRejectsConcurrentAttempt(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.onMark = func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.Start(context.Background())
		done <- err
	}()

	<-entered
	snap, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrAttemptInProgress)
	assert.Equal(t, models.StateProcessing, snap.State)

	_, err = f.controller.Reset(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrAttemptInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.backend.marks())
}

func TestStartAfterFailureRederivesLecture(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.scanner.err = appErrors.Clone(appErrors.ErrTimeout, "Location error: timed out waiting for a position fix.")

	first, err := f.controller.Start(context.Background())
	require.Error(t, err)
	callsAfterFirst := f.timetables.calls

	f.scanner.err = nil
	second, err := f.controller.Start(context.Background())
	require.NoError(t, err)

	fresh := newControllerFixture(t, monday(9, 30))
	freshSnap, err := fresh.controller.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, freshSnap.ActiveLecture, first.ActiveLecture)
	assert.Equal(t, freshSnap.ActiveLecture, second.ActiveLecture)
	assert.Greater(t, f.timetables.calls, callsAfterFirst, "timetable re-queried on retry")
}

func TestStartRejectedAfterSuccessUntilReset(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	_, err := f.controller.Start(context.Background())
	require.NoError(t, err)

	_, err = f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	snap, err := f.controller.Reset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateInitial, snap.State)
	assert.Empty(t, snap.SuccessMessage)
	assert.NotNil(t, snap.ActiveLecture)
	assert.True(t, RenderView(snap).StartEnabled)
}

func TestStartBrowserOnlyScan(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.scanner.name = "browser"
	f.scanner.result = models.ScanResult{
		Location:     &models.Location{Latitude: 1, Longitude: 2},
		WifiStatus:   models.CheckUnavailable,
		BeaconStatus: models.CheckUnavailable,
		Provider:     "browser",
	}

	snap, err := f.controller.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateSuccess, snap.State)
	assert.Nil(t, f.backend.lastReq.BSSID)
	assert.Nil(t, f.backend.lastReq.BluetoothDeviceID)
	assert.False(t, f.journal.attempts[0].WifiVerified)
}

func TestStartMissingLocationFails(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.scanner.result.Location = nil

	_, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrLocationUnavailable)
	assert.Zero(t, f.camera.opened)
}

func TestRefreshOutsideInitialKeepsAttemptLecture(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	_, err := f.controller.Start(context.Background())
	require.NoError(t, err)

	f.timetables.tt = models.Timetable{}
	snap, err := f.controller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateSuccess, snap.State)
	require.NotNil(t, snap.ActiveLecture)
	assert.Equal(t, "lec-1", snap.ActiveLecture.ID)
}

func TestStartCameraStallTimesOut(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.controller.cfg.CameraTimeout = 50 * time.Millisecond
	f.camera.stall = true

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	type outcome struct {
		snap models.SessionSnapshot
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		snap, err := f.controller.Start(ctx)
		done <- outcome{snap, err}
	}()

	var got outcome
	select {
	case got = <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("attempt still running, state=%s", f.controller.State())
	}

	assert.ErrorIs(t, got.err, appErrors.ErrTimeout)
	assert.Equal(t, models.StateInitial, got.snap.State)
	require.NotNil(t, got.snap.Failure)
	assert.Equal(t, appErrors.ErrTimeout.Code, got.snap.Failure.Code)
	assert.False(t, got.snap.Busy)
	assert.Zero(t, f.backend.verifyCalls)
	assert.Zero(t, f.backend.marks())

	f.camera.mu.Lock()
	f.camera.stall = false
	f.camera.mu.Unlock()

	snap, err := f.controller.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StateSuccess, snap.State)

	_, err = f.controller.Reset(context.Background())
	require.NoError(t, err)
}

func TestRefreshClearsFailureOnceLectureEnds(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.backend.verification = &models.FaceVerification{Match: false, Message: "Face does not match"}

	snap, err := f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrIdentityMismatch)
	view := RenderView(snap)
	assert.Equal(t, "Check Failed", view.Title)
	assert.Equal(t, "Face does not match", view.Subtitle)
	assert.True(t, view.StartEnabled)

	f.controller.now = func() time.Time { return monday(10, 1) }
	snap, err = f.controller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.ActiveLecture)
	assert.Nil(t, snap.Failure)
	view = RenderView(snap)
	assert.Equal(t, "No lecture right now", view.Title)
	assert.False(t, view.StartEnabled)

	snap, err = f.controller.Start(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrNoActiveLecture)
	assert.Equal(t, "No lecture right now", RenderView(snap).Title)
}

func TestStartFailureSurvivesRefreshOfSameLecture(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	f.backend.verification = &models.FaceVerification{Match: false, Message: "Face does not match"}

	_, err := f.controller.Start(context.Background())
	require.Error(t, err)

	f.controller.now = func() time.Time { return monday(9, 45) }
	snap, err := f.controller.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Failure)
	assert.Equal(t, "Face does not match", RenderView(snap).Subtitle)
}

func TestStartDisablesStartBeforeFirstTransition(t *testing.T) {
	f := newControllerFixture(t, monday(9, 30))
	_, err := f.controller.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, RenderView(f.controller.Snapshot()).StartEnabled)

	var during models.SessionSnapshot
	f.timetables.mu.Lock()
	f.timetables.onFetch = func() { during = f.controller.Snapshot() }
	f.timetables.mu.Unlock()

	snap, err := f.controller.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StateInitial, during.State)
	assert.True(t, during.Busy)
	assert.False(t, RenderView(during).StartEnabled)
	assert.False(t, snap.Busy)
	assert.False(t, f.controller.Snapshot().Busy)
}
