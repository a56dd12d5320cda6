package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, ScanModeAuto, cfg.Scan.Mode)
	assert.Equal(t, 10*time.Second, cfg.Scan.LocationTimeout)
	assert.Equal(t, time.Second, cfg.Session.StabilizationDelay)
	assert.Equal(t, 10*time.Second, cfg.Session.CameraTimeout)
	assert.Equal(t, 15*time.Second, cfg.Session.SubmitTimeout)
	assert.Equal(t, 30*time.Second, cfg.Session.RefreshInterval)
	assert.Nil(t, cfg.Scan.StaticLatitude)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://attendance.example.edu/")
	t.Setenv("SCAN_MODE", "BROWSER")
	t.Setenv("STATIC_LATITUDE", "18.503542")
	t.Setenv("STATIC_LONGITUDE", "73.810718")
	t.Setenv("SUBMIT_TIMEOUT", "5s")
	t.Setenv("REFRESH_INTERVAL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, ,http://127.0.0.1:3000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://attendance.example.edu", cfg.Backend.BaseURL)
	assert.Equal(t, ScanModeBrowser, cfg.Scan.Mode)
	require.NotNil(t, cfg.Scan.StaticLatitude)
	assert.InDelta(t, 18.503542, *cfg.Scan.StaticLatitude, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Session.SubmitTimeout)
	assert.Equal(t, 30*time.Second, cfg.Session.RefreshInterval)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	t.Setenv("SCAN_MODE", "bluetooth-only")
	_, err := Load()
	require.Error(t, err)
}

func TestValidateHostModeNeedsBridge(t *testing.T) {
	cfg := &Config{
		Env:     EnvDevelopment,
		Port:    8765,
		Backend: BackendConfig{BaseURL: "http://localhost:5000"},
		Scan:    ScanConfig{Mode: ScanModeHost},
		JWT:     JWTConfig{Secret: "secret"},
	}
	require.Error(t, Validate(cfg))

	cfg.Scan.HostBridgeURL = "http://127.0.0.1:8766"
	require.NoError(t, Validate(cfg))
}

func TestSessionLocation(t *testing.T) {
	assert.Equal(t, time.Local, SessionConfig{}.Location())
	assert.Equal(t, time.Local, SessionConfig{Timezone: "Mars/Olympus"}.Location())
	assert.Equal(t, "UTC", SessionConfig{Timezone: "UTC"}.Location().String())
}
