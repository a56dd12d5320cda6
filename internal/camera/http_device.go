package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

// maxFrameBytes caps a single JPEG frame read from the bridge.
const maxFrameBytes = 8 << 20

// HTTPDevice drives the snapshot camera exposed by the host bridge.
type HTTPDevice struct {
	base   string
	h      *http.Client
	logger *zap.Logger
}

// NewHTTPDevice constructs an HTTPDevice rooted at the bridge base URL.
func NewHTTPDevice(base string, h *http.Client, logger *zap.Logger) *HTTPDevice {
	if h == nil {
		h = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPDevice{base: base, h: h, logger: logger}
}

// Open implements Device.
func (d *HTTPDevice) Open(ctx context.Context) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+"/camera/streams", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.h.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "Camera error: permission denied. Allow camera access and try again.")
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusServiceUnavailable:
		return nil, appErrors.Clone(appErrors.ErrCameraUnavailable, "Camera error: no camera is available on this device.")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, appErrors.Clone(appErrors.ErrCameraUnavailable, fmt.Sprintf("Camera error: could not open the camera (status %d).", resp.StatusCode))
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrCameraUnavailable, "Camera error: the camera returned no stream.")
	}

	d.logger.Debug("camera stream opened", zap.String("stream_id", payload.ID))
	return &httpStream{device: d, id: payload.ID}, nil
}

type httpStream struct {
	device *HTTPDevice
	id     string
}

func (s *httpStream) path() string {
	return s.device.base + "/camera/streams/" + url.PathEscape(s.id)
}

func (s *httpStream) Frame(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.path()+"/frame", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.device.h.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("frame request returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
}

// Close releases the stream. It uses its own context so a cancelled capture
// still stops the tracks.
func (s *httpStream) Close() error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, s.path(), nil)
	if err != nil {
		return err
	}
	resp, err := s.device.h.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("release returned status %d", resp.StatusCode)
	}
	s.device.logger.Debug("camera stream released", zap.String("stream_id", s.id))
	return nil
}
