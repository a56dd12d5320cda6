package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed application error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wraps of a
// predefined error still match it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors. The first block mirrors the failure kinds of an
// attendance attempt; every one of them is recoverable.
var (
	ErrPermissionDenied    = New("PERMISSION_DENIED", http.StatusForbidden, "permission denied")
	ErrTimeout             = New("TIMEOUT", http.StatusGatewayTimeout, "operation timed out")
	ErrNoActiveLecture     = New("NO_ACTIVE_LECTURE", http.StatusConflict, "no active lecture found")
	ErrNetworkUnavailable  = New("NETWORK_UNAVAILABLE", http.StatusBadGateway, "network unavailable")
	ErrServerRejected      = New("SERVER_REJECTED", http.StatusUnprocessableEntity, "request rejected by server")
	ErrIdentityMismatch    = New("IDENTITY_MISMATCH", http.StatusUnprocessableEntity, "face verification failed")
	ErrLocationUnavailable = New("LOCATION_UNAVAILABLE", http.StatusServiceUnavailable, "location unavailable")
	ErrCameraUnavailable   = New("CAMERA_UNAVAILABLE", http.StatusServiceUnavailable, "camera unavailable")

	ErrAttemptInProgress = New("ATTEMPT_IN_PROGRESS", http.StatusConflict, "an attendance attempt is already in progress")
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden         = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized      = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict          = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss         = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrFeatureDisabled   = New("FEATURE_DISABLED", http.StatusNotFound, "feature disabled")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Message returns the text a user should see for err. Typed errors show their
// message only; anything else shows its full text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
