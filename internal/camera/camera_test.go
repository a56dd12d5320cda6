package camera

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

type fakeStream struct {
	frame    []byte
	frameErr error
	closeErr error
	panicMsg string
	closed   int
}

func (s *fakeStream) Frame(ctx context.Context) ([]byte, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.frame, s.frameErr
}

func (s *fakeStream) Close() error {
	s.closed++
	return s.closeErr
}

type fakeDevice struct {
	stream  *fakeStream
	openErr error
}

func (d *fakeDevice) Open(ctx context.Context) (Stream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.stream, nil
}

func TestCaptureStillEncodesFrameAndReleases(t *testing.T) {
	stream := &fakeStream{frame: []byte{0xff, 0xd8, 0xff}}
	url, err := CaptureStill(context.Background(), &fakeDevice{stream: stream}, 0)
	require.NoError(t, err)
	assert.Equal(t, DataURLPrefix+"/9j/", url)
	assert.Equal(t, 1, stream.closed)
}

func TestCaptureStillReleasesOnFrameError(t *testing.T) {
	stream := &fakeStream{frameErr: errors.New("sensor busy")}
	_, err := CaptureStill(context.Background(), &fakeDevice{stream: stream}, 0)
	assert.ErrorIs(t, err, appErrors.ErrCameraUnavailable)
	assert.Equal(t, 1, stream.closed)
}

func TestCaptureStillReleasesOnCancellation(t *testing.T) {
	stream := &fakeStream{frame: []byte{1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CaptureStill(ctx, &fakeDevice{stream: stream}, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stream.closed)
}

func TestCaptureStillReleasesOnPanic(t *testing.T) {
	stream := &fakeStream{panicMsg: "driver crashed"}
	assert.Panics(t, func() {
		_, _ = CaptureStill(context.Background(), &fakeDevice{stream: stream}, 0)
	})
	assert.Equal(t, 1, stream.closed)
}

func TestCaptureStillReportsReleaseFailureOnlyAfterSuccess(t *testing.T) {
	stream := &fakeStream{frame: []byte{1}, closeErr: errors.New("busy")}
	url, err := CaptureStill(context.Background(), &fakeDevice{stream: stream}, 0)
	assert.ErrorIs(t, err, appErrors.ErrCameraUnavailable)
	assert.Empty(t, url)

	failing := &fakeStream{frameErr: errors.New("sensor"), closeErr: errors.New("busy")}
	_, err = CaptureStill(context.Background(), &fakeDevice{stream: failing}, 0)
	assert.Contains(t, appErrors.Message(err), "could not capture")
}

func TestCaptureStillOpenErrors(t *testing.T) {
	_, err := CaptureStill(context.Background(), &fakeDevice{openErr: appErrors.Clone(appErrors.ErrPermissionDenied, "denied")}, 0)
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)

	_, err = CaptureStill(context.Background(), &fakeDevice{openErr: errors.New("no device")}, 0)
	assert.ErrorIs(t, err, appErrors.ErrCameraUnavailable)

	_, err = CaptureStill(context.Background(), nil, 0)
	assert.ErrorIs(t, err, appErrors.ErrCameraUnavailable)
}

func TestHTTPDeviceLifecycle(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/camera/streams":
			_, _ = w.Write([]byte(`{"id":"s-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/camera/streams/s-1/frame":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg"))
		case r.Method == http.MethodDelete && r.URL.Path == "/camera/streams/s-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	url, err := CaptureStill(context.Background(), NewHTTPDevice(srv.URL, srv.Client(), nil), 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, DataURLPrefix))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /camera/streams",
		"GET /camera/streams/s-1/frame",
		"DELETE /camera/streams/s-1",
	}, calls)
}

func TestHTTPDevicePermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := CaptureStill(context.Background(), NewHTTPDevice(srv.URL, srv.Client(), nil), 0)
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)
}
