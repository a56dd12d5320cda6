package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

// HostProviderName identifies the enhanced-host provider.
const HostProviderName = "host"

type wifiNetwork struct {
	SSID  string `json:"ssid"`
	BSSID string `json:"bssid"`
}

type bluetoothDevice struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type hostScanResponse struct {
	Success          bool              `json:"success"`
	Location         *models.Location  `json:"location"`
	WifiNetworks     []wifiNetwork     `json:"wifi_networks"`
	WifiBSSID        string            `json:"wifi_bssid"`
	BluetoothDevices []bluetoothDevice `json:"bluetooth_devices"`
	MatchedBluetooth string            `json:"matched_bluetooth"`
	Error            string            `json:"error"`
}

// HostProvider runs location, WiFi and Bluetooth scans through the desktop
// host bridge: POST {bridge}/perform_scans.
type HostProvider struct {
	base     string
	h        *http.Client
	timeout  time.Duration
	fallback Provider
	logger   *zap.Logger
}

// NewHostProvider constructs a HostProvider. When the bridge cannot be
// reached at scan time the fallback provider is used instead.
func NewHostProvider(base string, h *http.Client, timeout time.Duration, fallback Provider, logger *zap.Logger) *HostProvider {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostProvider{base: base, h: h, timeout: timeout, fallback: fallback, logger: logger}
}

// Name implements Provider.
func (p *HostProvider) Name() string { return HostProviderName }

// Scan implements Provider.
func (p *HostProvider) Scan(ctx context.Context) (models.ScanResult, error) {
	scanCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := p.performScans(scanCtx)
	if err != nil {
		var unreachable *bridgeUnreachableError
		if errors.As(err, &unreachable) && p.fallback != nil && ctx.Err() == nil {
			p.logger.Warn("host bridge unreachable, degrading to location-only scan", zap.Error(err))
			return p.fallback.Scan(ctx)
		}
		return models.ScanResult{Provider: p.Name(), WifiStatus: models.CheckFailed, BeaconStatus: models.CheckFailed}, err
	}

	result := models.ScanResult{
		Location:     payload.Location,
		Provider:     p.Name(),
		WifiStatus:   models.CheckNotFound,
		BeaconStatus: models.CheckNotFound,
		NetworksSeen: len(payload.WifiNetworks),
		DevicesSeen:  len(payload.BluetoothDevices),
	}
	if bssid := firstBSSID(payload); bssid != "" {
		result.WifiIdentifier = &bssid
		result.WifiStatus = models.CheckVerified
	}
	if matched := strings.TrimSpace(payload.MatchedBluetooth); matched != "" {
		result.DeviceIdentifier = &matched
		result.BeaconStatus = models.CheckVerified
	}

	p.logger.Info("host scan completed",
		zap.Int("wifi_networks", result.NetworksSeen),
		zap.Int("bluetooth_devices", result.DevicesSeen),
		zap.String("bssid", NormalizeBSSID(deref(result.WifiIdentifier))),
		zap.String("teacher_device", NormalizeBluetoothAddress(deref(result.DeviceIdentifier))),
	)

	if result.Location == nil {
		return result, appErrors.Clone(appErrors.ErrLocationUnavailable, "Location error: the desktop scan returned no position.")
	}
	return result, nil
}

type bridgeUnreachableError struct{ err error }

func (e *bridgeUnreachableError) Error() string { return "host bridge unreachable: " + e.err.Error() }
func (e *bridgeUnreachableError) Unwrap() error { return e.err }

func (p *HostProvider) performScans(ctx context.Context) (*hostScanResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/perform_scans", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.h.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "Desktop scan timed out.")
		}
		return nil, &bridgeUnreachableError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "Desktop scan was denied access to location or radios.")
	}

	var payload hostScanResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrLocationUnavailable.Code, appErrors.ErrLocationUnavailable.Status, "Desktop scan returned a malformed result.")
	}
	if !payload.Success || resp.StatusCode >= 300 {
		msg := payload.Error
		if msg == "" {
			msg = fmt.Sprintf("Desktop scan failed (status %d)", resp.StatusCode)
		}
		return nil, appErrors.Clone(appErrors.ErrLocationUnavailable, msg)
	}
	return &payload, nil
}

func firstBSSID(payload *hostScanResponse) string {
	for _, n := range payload.WifiNetworks {
		if b := strings.TrimSpace(n.BSSID); b != "" {
			return b
		}
	}
	return strings.TrimSpace(payload.WifiBSSID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
