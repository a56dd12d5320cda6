package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/camera"
	"github.com/noah-isme/sma-attendance-agent/internal/models"
	"github.com/noah-isme/sma-attendance-agent/internal/scan"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

// DefaultSuccessMessage is shown when the backend accepts a record without a message.
const DefaultSuccessMessage = "Attendance marked successfully!"

type sessionTimetables interface {
	Fetch(ctx context.Context) (models.Timetable, error)
}

type attendanceBackend interface {
	VerifyFace(ctx context.Context, dataURL string) (*models.FaceVerification, error)
	MarkAttendance(ctx context.Context, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error)
}

type attemptRecorder interface {
	Record(ctx context.Context, attempt models.Attempt)
}

type summaryRefresher interface {
	RefreshSummary(ctx context.Context) (*models.StudentSummary, error)
}

// SessionControllerConfig tunes the attempt flow.
type SessionControllerConfig struct {
	StabilizationDelay time.Duration
	CameraTimeout      time.Duration
	SubmitTimeout      time.Duration
	Location           *time.Location
}

// SessionControllerParams groups constructor dependencies.
type SessionControllerParams struct {
	Timetables sessionTimetables
	Backend    attendanceBackend
	Scanner    scan.Provider
	Camera     camera.Device
	Journal    attemptRecorder
	Summary    summaryRefresher
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	Config     SessionControllerConfig
}

// SessionController drives one student's attendance session:
// Initial -> LocationScan -> IdentityCheck -> Processing -> Success, with every
// failure returning to Initial. Attempts never overlap.
type SessionController struct {
	timetables sessionTimetables
	backend    attendanceBackend
	scanner    scan.Provider
	camera     camera.Device
	journal    attemptRecorder
	summary    summaryRefresher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	cfg        SessionControllerConfig

	mu   sync.Mutex
	snap models.SessionSnapshot
}

// NewSessionController constructs a controller in the Initial state.
func NewSessionController(params SessionControllerParams) *SessionController {
	cfg := params.Config
	if cfg.StabilizationDelay < 0 {
		cfg.StabilizationDelay = 0
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 15 * time.Second
	}
	if cfg.CameraTimeout <= 0 {
		cfg.CameraTimeout = 10 * time.Second
	}
	if cfg.CameraTimeout <= cfg.StabilizationDelay {
		cfg.CameraTimeout = cfg.StabilizationDelay + 10*time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	provider := ""
	if params.Scanner != nil {
		provider = params.Scanner.Name()
	}
	c := &SessionController{
		timetables: params.Timetables,
		backend:    params.Backend,
		scanner:    params.Scanner,
		camera:     params.Camera,
		journal:    params.Journal,
		summary:    params.Summary,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
	c.snap = models.SessionSnapshot{
		State:        models.StateInitial,
		WifiStatus:   models.CheckPending,
		BeaconStatus: models.CheckPending,
		Provider:     provider,
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *SessionController) Snapshot() models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current state.
func (c *SessionController) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.State
}

// Refresh re-queries the timetable and recomputes the active lecture. Outside
// Initial the snapshot is left untouched so an attempt keeps its lecture.
func (c *SessionController) Refresh(ctx context.Context) (models.SessionSnapshot, error) {
	tt, err := c.timetables.Fetch(ctx)
	now := c.now().In(c.cfg.Location)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap.State != models.StateInitial {
		return c.snapshotLocked(), err
	}
	c.snap.UpdatedAt = now
	if err != nil {
		c.snap.ActiveLecture = nil
		c.snap.Failure = nil
		c.snap.TimetableUnavailable = true
		return c.snapshotLocked(), err
	}

	lecture, _ := FindActiveLecture(tt, now)
	if !sameLecture(c.snap.ActiveLecture, lecture) {
		c.logger.Info("active lecture changed", zap.String("lecture_id", lectureID(lecture)), zap.String("previous_lecture_id", lectureID(c.snap.ActiveLecture)))
		// A failure belongs to the lecture it was raised for.
		c.snap.Failure = nil
	}
	c.snap.ActiveLecture = lecture
	c.snap.TimetableUnavailable = false
	return c.snapshotLocked(), nil
}

// Start runs one attendance attempt to completion. It returns the final
// snapshot; the error is the reason the attempt returned to Initial.
func (c *SessionController) Start(ctx context.Context) (snap models.SessionSnapshot, err error) {
	c.mu.Lock()
	if c.snap.Busy {
		snap = c.snapshotLocked()
		c.mu.Unlock()
		return snap, appErrors.ErrAttemptInProgress
	}
	if c.snap.State == models.StateSuccess {
		snap = c.snapshotLocked()
		c.mu.Unlock()
		return snap, appErrors.Clone(appErrors.ErrConflict, "Attendance is already marked. Use mark another to start a new check.")
	}
	c.snap.Busy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.snap.Busy = false
		snap.Busy = false
		c.mu.Unlock()
	}()

	// Attempts run to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	refreshed, err := c.Refresh(ctx)
	if err != nil {
		return refreshed, err
	}
	if refreshed.ActiveLecture == nil {
		c.mu.Lock()
		c.snap.Failure = nil
		refreshed = c.snapshotLocked()
		c.mu.Unlock()
		return refreshed, appErrors.Clone(appErrors.ErrNoActiveLecture, "Error: No active lecture found.")
	}

	attempt := &models.Attempt{
		ID:         uuid.NewString(),
		LectureID:  refreshed.ActiveLecture.ID,
		CourseCode: refreshed.ActiveLecture.CourseCode,
		Provider:   c.providerName(),
		StartedAt:  c.now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("attendance attempt panicked", zap.String("attempt_id", attempt.ID), zap.Any("panic", r))
			snap, err = c.fail(ctx, attempt, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("Unexpected error: %v", r)))
		}
	}()

	return c.run(ctx, attempt, refreshed.ActiveLecture)
}

func (c *SessionController) run(ctx context.Context, attempt *models.Attempt, lecture *models.LectureSlot) (models.SessionSnapshot, error) {
	c.transition(attempt, models.StateLocationScan, func(s *models.SessionSnapshot) {
		s.AttemptID = attempt.ID
		s.Failure = nil
		s.SuccessMessage = ""
		s.WifiStatus = models.CheckProcessing
		s.BeaconStatus = models.CheckProcessing
		s.Provider = attempt.Provider
	})

	result, err := c.scan(ctx)
	if err != nil {
		return c.fail(ctx, attempt, err)
	}
	if result.Location == nil {
		return c.fail(ctx, attempt, appErrors.Clone(appErrors.ErrLocationUnavailable, "Location error: no position available."))
	}
	attempt.Provider = result.Provider
	attempt.WifiVerified = result.WifiStatus == models.CheckVerified
	attempt.BeaconVerified = result.BeaconStatus == models.CheckVerified

	c.transition(attempt, models.StateIdentityCheck, func(s *models.SessionSnapshot) {
		s.WifiStatus = result.WifiStatus
		s.BeaconStatus = result.BeaconStatus
		s.Provider = result.Provider
	})

	if err := c.verifyIdentity(ctx); err != nil {
		return c.fail(ctx, attempt, err)
	}
	attempt.FaceVerified = true

	c.transition(attempt, models.StateProcessing, nil)

	req := models.MarkAttendanceRequest{
		LectureID:         lecture.ID,
		Latitude:          result.Location.Latitude,
		Longitude:         result.Location.Longitude,
		BSSID:             result.WifiIdentifier,
		BluetoothDeviceID: result.DeviceIdentifier,
		FaceVerified:      true,
	}
	res, err := c.submit(ctx, req)
	if err != nil {
		return c.fail(ctx, attempt, err)
	}

	message := res.Message
	if message == "" {
		message = DefaultSuccessMessage
	}
	snap := c.transition(attempt, models.StateSuccess, func(s *models.SessionSnapshot) {
		s.SuccessMessage = message
	})

	attempt.Outcome = models.AttemptSucceeded
	attempt.Message = message
	c.finish(ctx, attempt)

	if c.summary != nil {
		if _, err := c.summary.RefreshSummary(ctx); err != nil {
			c.logger.Warn("summary refresh after attendance failed", zap.Error(err))
		}
	}
	return snap, nil
}

func (c *SessionController) scan(ctx context.Context) (models.ScanResult, error) {
	if c.scanner == nil {
		return models.ScanResult{}, appErrors.Clone(appErrors.ErrLocationUnavailable, "Location error: no scan provider is configured.")
	}
	start := time.Now()
	result, err := c.scanner.Scan(ctx)
	c.metrics.ObserveStep(StepScan, err, time.Since(start))
	return result, err
}

func (c *SessionController) verifyIdentity(ctx context.Context) error {
	captureCtx, cancel := context.WithTimeout(ctx, c.cfg.CameraTimeout)
	defer cancel()

	start := time.Now()
	dataURL, err := camera.CaptureStill(captureCtx, c.camera, c.cfg.StabilizationDelay)
	c.metrics.ObserveStep(StepCapture, err, time.Since(start))
	if err != nil && errors.Is(captureCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, appErrors.ErrTimeout) {
		err = appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "Camera error: timed out waiting for the camera.")
	}
	if err != nil {
		return err
	}

	start = time.Now()
	verification, err := c.backend.VerifyFace(ctx, dataURL)
	c.metrics.ObserveStep(StepVerify, err, time.Since(start))
	if err != nil {
		return err
	}
	if !verification.Match {
		msg := verification.Message
		if msg == "" {
			msg = "Face verification failed"
		}
		return appErrors.Clone(appErrors.ErrIdentityMismatch, msg)
	}
	return nil
}

func (c *SessionController) submit(ctx context.Context, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	if err := c.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Location error: the position fix is not valid.")
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.backend.MarkAttendance(submitCtx, req)
	c.metrics.ObserveStep(StepSubmit, err, time.Since(start))
	if err != nil {
		if errors.Is(submitCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, appErrors.ErrTimeout) {
			return nil, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "The server took too long to respond.")
		}
		return nil, err
	}
	if res == nil {
		res = &models.MarkAttendanceResult{}
	}
	return res, nil
}

// Reset returns to Initial after a success ("mark another") and refreshes.
func (c *SessionController) Reset(ctx context.Context) (models.SessionSnapshot, error) {
	c.mu.Lock()
	if c.snap.Busy {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, appErrors.ErrAttemptInProgress
	}
	from := c.snap.State
	c.snap.State = models.StateInitial
	c.snap.Failure = nil
	c.snap.SuccessMessage = ""
	c.snap.AttemptID = ""
	c.snap.WifiStatus = models.CheckPending
	c.snap.BeaconStatus = models.CheckPending
	c.snap.UpdatedAt = c.now().In(c.cfg.Location)
	c.mu.Unlock()

	c.logger.Info("session reset", zap.String("from", string(from)))
	return c.Refresh(ctx)
}

func (c *SessionController) transition(attempt *models.Attempt, to models.SessionState, mutate func(*models.SessionSnapshot)) models.SessionSnapshot {
	c.mu.Lock()
	from := c.snap.State
	c.snap.State = to
	if mutate != nil {
		mutate(&c.snap)
	}
	c.snap.UpdatedAt = c.now().In(c.cfg.Location)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("session transition",
		zap.String("attempt_id", attempt.ID),
		zap.String("lecture_id", attempt.LectureID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return snap
}

func (c *SessionController) fail(ctx context.Context, attempt *models.Attempt, err error) (models.SessionSnapshot, error) {
	failure := failureFrom(err)
	snap := c.transition(attempt, models.StateInitial, func(s *models.SessionSnapshot) {
		s.Failure = &failure
		s.SuccessMessage = ""
		s.WifiStatus = models.CheckPending
		s.BeaconStatus = models.CheckPending
	})

	c.logger.Warn("attendance attempt failed",
		zap.String("attempt_id", attempt.ID),
		zap.String("code", failure.Code),
		zap.String("message", failure.Message),
		zap.Error(err),
	)

	code := failure.Code
	attempt.Outcome = models.AttemptFailed
	attempt.FailureCode = &code
	attempt.Message = failure.Message
	c.finish(ctx, attempt)
	return snap, err
}

func (c *SessionController) finish(ctx context.Context, attempt *models.Attempt) {
	attempt.FinishedAt = c.now().UTC()
	code := ""
	if attempt.FailureCode != nil {
		code = *attempt.FailureCode
	}
	c.metrics.RecordAttempt(attempt.Outcome, code)
	if c.journal != nil {
		c.journal.Record(ctx, *attempt)
	}
}

func (c *SessionController) providerName() string {
	if c.scanner == nil {
		return ""
	}
	return c.scanner.Name()
}

func (c *SessionController) snapshotLocked() models.SessionSnapshot {
	snap := c.snap
	if c.snap.ActiveLecture != nil {
		lecture := *c.snap.ActiveLecture
		snap.ActiveLecture = &lecture
	}
	if c.snap.Failure != nil {
		failure := *c.snap.Failure
		snap.Failure = &failure
	}
	return snap
}

// failureFrom turns any error into the message shown to the student. Unknown
// errors keep their text and are reported as server rejections.
func failureFrom(err error) models.Failure {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return models.Failure{Code: appErr.Code, Message: appErr.Message}
	}
	return models.Failure{Code: appErrors.ErrServerRejected.Code, Message: err.Error()}
}

func sameLecture(a, b *models.LectureSlot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func lectureID(l *models.LectureSlot) string {
	if l == nil {
		return ""
	}
	return l.ID
}
