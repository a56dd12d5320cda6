package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
	"github.com/noah-isme/sma-attendance-agent/pkg/middleware/requestid"
)

const (
	loginPath          = "/api/login"
	timetablePath      = "/api/student/timetable"
	verifyFacePath     = "/api/student/verify-face"
	markAttendancePath = "/api/student/mark-attendance"
	dashboardPath      = "/api/student/dashboard"
	historyPath        = "/api/student/attendance-history"

	maxErrorBody = 64 << 10
)

// StudentClient talks to the attendance backend on behalf of one student.
// The backend authenticates with a session cookie, kept in the client's jar.
type StudentClient struct {
	base   string
	h      *http.Client
	logger *zap.Logger
}

// New constructs a client with its own cookie jar.
func New(base string, timeout time.Duration, logger *zap.Logger) (*StudentClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return NewWithHTTPClient(base, &http.Client{Timeout: timeout, Jar: jar}, logger), nil
}

// NewWithHTTPClient wraps a caller-provided HTTP client.
func NewWithHTTPClient(base string, h *http.Client, logger *zap.Logger) *StudentClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentClient{base: strings.TrimRight(base, "/"), h: h, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Role    string `json:"role"`
}

// Login opens a backend session for the student.
func (c *StudentClient) Login(ctx context.Context, email, password string) error {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, loginPath, loginRequest{Email: email, Password: password}, &out); err != nil {
		return err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "login failed"
		}
		return appErrors.Clone(appErrors.ErrServerRejected, msg)
	}
	c.logger.Info("backend session opened", zap.String("role", out.Role))
	return nil
}

// Timetable fetches the student's weekly timetable.
func (c *StudentClient) Timetable(ctx context.Context) (models.Timetable, error) {
	var out models.Timetable
	if err := c.do(ctx, http.MethodGet, timetablePath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type verifyFaceRequest struct {
	Image string `json:"image"`
}

// VerifyFace submits a captured frame for identity verification.
func (c *StudentClient) VerifyFace(ctx context.Context, dataURL string) (*models.FaceVerification, error) {
	var out models.FaceVerification
	if err := c.do(ctx, http.MethodPost, verifyFacePath, verifyFaceRequest{Image: dataURL}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkAttendance submits the combined attendance record.
func (c *StudentClient) MarkAttendance(ctx context.Context, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	var out models.MarkAttendanceResult
	if err := c.do(ctx, http.MethodPost, markAttendancePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dashboard fetches the student's summary.
func (c *StudentClient) Dashboard(ctx context.Context) (*models.StudentSummary, error) {
	var out models.StudentSummary
	if err := c.do(ctx, http.MethodGet, dashboardPath, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type historyResponse struct {
	History []models.AttendanceRecord `json:"attendance_history"`
}

// History fetches the student's attendance history, newest first.
func (c *StudentClient) History(ctx context.Context) ([]models.AttendanceRecord, error) {
	var out historyResponse
	if err := c.do(ctx, http.MethodGet, historyPath, nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *StudentClient) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	start := time.Now()
	resp, err := c.h.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rejection(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return classifyTransportError(ctx, ctxErr)
		}
		return appErrors.Wrap(err, appErrors.ErrServerRejected.Code, appErrors.ErrServerRejected.Status, "unexpected response from server")
	}
	return nil
}

// rejection turns a non-2xx response into ServerRejected carrying the
// server's own reason verbatim.
func rejection(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	reason := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		reason = body.Error
		if reason == "" {
			reason = body.Message
		}
	}
	if reason == "" {
		reason = fmt.Sprintf("Server returned status %d", resp.StatusCode)
	}
	status := appErrors.ErrServerRejected.Status
	if resp.StatusCode == http.StatusUnauthorized {
		return &appErrors.Error{Code: appErrors.ErrUnauthorized.Code, Status: appErrors.ErrUnauthorized.Status, Message: reason}
	}
	return &appErrors.Error{Code: appErrors.ErrServerRejected.Code, Status: status, Message: reason}
}

func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "The server took too long to respond.")
	case errors.As(err, &netErr) && netErr.Timeout():
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "The server took too long to respond.")
	case errors.Is(err, context.Canceled):
		return appErrors.Wrap(err, appErrors.ErrNetworkUnavailable.Code, appErrors.ErrNetworkUnavailable.Status, "Request cancelled.")
	default:
		return appErrors.Wrap(err, appErrors.ErrNetworkUnavailable.Code, appErrors.ErrNetworkUnavailable.Status, "Could not reach the attendance server.")
	}
}
