package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	"github.com/noah-isme/sma-attendance-agent/pkg/config"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

type blockingLocator struct{}

func (blockingLocator) Locate(ctx context.Context) (*models.Location, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBrowserProviderMarksRadiosUnavailable(t *testing.T) {
	p := NewBrowserProvider(NewStaticLocator(10, 20), time.Second)
	result, err := p.Scan(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Location)
	assert.Equal(t, 10.0, result.Location.Latitude)
	assert.Nil(t, result.WifiIdentifier)
	assert.Nil(t, result.DeviceIdentifier)
	assert.Equal(t, models.CheckUnavailable, result.WifiStatus)
	assert.Equal(t, models.CheckUnavailable, result.BeaconStatus)
	assert.Equal(t, BrowserProviderName, result.Provider)
}

func TestBrowserProviderLocationTimeout(t *testing.T) {
	p := NewBrowserProvider(blockingLocator{}, 20*time.Millisecond)
	_, err := p.Scan(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrTimeout)
}

func TestHostLocatorPermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/location", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHostLocator(srv.URL, srv.Client()).Locate(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrPermissionDenied)
}

func TestHostLocatorUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHostLocator(srv.URL, srv.Client()).Locate(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrLocationUnavailable)

	_, err = NewHostLocator("", http.DefaultClient).Locate(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrLocationUnavailable)
}

func TestHostLocatorDecodesFix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"latitude":48.85,"longitude":2.35,"accuracy":5}`))
	}))
	defer srv.Close()

	loc, err := NewHostLocator(srv.URL, srv.Client()).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 48.85, loc.Latitude)
	require.NotNil(t, loc.Accuracy)
	assert.Equal(t, 5.0, *loc.Accuracy)
}

func TestSelect(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	base := config.ScanConfig{LocationTimeout: time.Second, HostScanTimeout: time.Second, ProbeTimeout: 200 * time.Millisecond}

	tests := []struct {
		name string
		mode string
		url  string
		want string
	}{
		{name: "auto with healthy bridge", mode: config.ScanModeAuto, url: healthy.URL, want: HostProviderName},
		{name: "auto with unreachable bridge", mode: config.ScanModeAuto, url: downURL, want: BrowserProviderName},
		{name: "auto without bridge", mode: config.ScanModeAuto, url: "", want: BrowserProviderName},
		{name: "forced browser", mode: config.ScanModeBrowser, url: healthy.URL, want: BrowserProviderName},
		{name: "forced host", mode: config.ScanModeHost, url: downURL, want: HostProviderName},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			cfg.Mode = tc.mode
			cfg.HostBridgeURL = tc.url
			p := Select(context.Background(), cfg, &http.Client{}, nil)
			assert.Equal(t, tc.want, p.Name())
		})
	}
}

func TestNormalizeIdentifiers(t *testing.T) {
	assert.Equal(t, "AABBCCDDEEFF", NormalizeBluetoothAddress(" aa:bb-cc:dd-ee:ff "))
	assert.Equal(t, "AABBCCDDEEFF", NormalizeBSSID("aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, "", NormalizeBSSID(""))
}
