// Package camera acquires a single still frame for face verification.
package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

// Device opens exclusive camera streams.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open camera. Close stops every track and must be called
// exactly once.
type Stream interface {
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// DataURLPrefix is prepended to the base64 JPEG sent for verification.
const DataURLPrefix = "data:image/jpeg;base64,"

// CaptureStill opens the device, waits delay for exposure to settle, grabs a
// frame and releases the stream on every path out.
func CaptureStill(ctx context.Context, dev Device, delay time.Duration) (dataURL string, err error) {
	if dev == nil {
		return "", appErrors.Clone(appErrors.ErrCameraUnavailable, "Camera error: no camera is available on this device.")
	}

	stream, err := dev.Open(ctx)
	if err != nil {
		return "", classifyOpenError(err)
	}
	defer func() {
		closeErr := stream.Close()
		if closeErr != nil && err == nil {
			err = appErrors.Wrap(closeErr, appErrors.ErrCameraUnavailable.Code, appErrors.ErrCameraUnavailable.Status, "Camera error: the camera could not be released.")
			dataURL = ""
		}
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", contextError(ctx.Err())
		case <-timer.C:
		}
	}

	frame, err := stream.Frame(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", contextError(ctxErr)
		}
		return "", appErrors.Wrap(err, appErrors.ErrCameraUnavailable.Code, appErrors.ErrCameraUnavailable.Status, "Camera error: could not capture an image.")
	}
	if len(frame) == 0 {
		return "", appErrors.Clone(appErrors.ErrCameraUnavailable, "Camera error: the captured image was empty.")
	}

	return DataURLPrefix + base64.StdEncoding.EncodeToString(frame), nil
}

func classifyOpenError(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contextError(err)
	}
	return appErrors.Wrap(err, appErrors.ErrCameraUnavailable.Code, appErrors.ErrCameraUnavailable.Status, fmt.Sprintf("Camera error: %v", err))
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "Camera error: timed out waiting for the camera.")
	}
	return err
}
