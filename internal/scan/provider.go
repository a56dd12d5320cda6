// Package scan gathers the location, network and beacon evidence submitted
// with an attendance record.
package scan

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	"github.com/noah-isme/sma-attendance-agent/pkg/config"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

// Provider produces one ScanResult per attendance attempt.
type Provider interface {
	Name() string
	Scan(ctx context.Context) (models.ScanResult, error)
}

// Locator acquires a one-shot position fix.
type Locator interface {
	Locate(ctx context.Context) (*models.Location, error)
}

// Select picks the provider once at startup. In auto mode the host bridge is
// probed and the browser-only provider is used when it does not answer.
func Select(ctx context.Context, cfg config.ScanConfig, h *http.Client, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if h == nil {
		h = &http.Client{}
	}

	browser := NewBrowserProvider(defaultLocator(cfg, h), cfg.LocationTimeout)

	switch cfg.Mode {
	case config.ScanModeBrowser:
		logger.Info("scan provider selected", zap.String("provider", browser.Name()), zap.String("reason", "forced"))
		return browser
	case config.ScanModeHost:
		host := NewHostProvider(cfg.HostBridgeURL, h, cfg.HostScanTimeout, browser, logger)
		logger.Info("scan provider selected", zap.String("provider", host.Name()), zap.String("reason", "forced"))
		return host
	}

	if cfg.HostBridgeURL != "" && Probe(ctx, h, cfg.HostBridgeURL, cfg.ProbeTimeout) {
		host := NewHostProvider(cfg.HostBridgeURL, h, cfg.HostScanTimeout, browser, logger)
		logger.Info("scan provider selected", zap.String("provider", host.Name()), zap.String("bridge", cfg.HostBridgeURL))
		return host
	}
	logger.Warn("host bridge not reachable, network and beacon checks unavailable", zap.String("provider", browser.Name()))
	return browser
}

// Probe reports whether the host bridge answers its health endpoint.
func Probe(ctx context.Context, h *http.Client, base string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := h.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func defaultLocator(cfg config.ScanConfig, h *http.Client) Locator {
	if cfg.StaticLatitude != nil && cfg.StaticLongitude != nil {
		return NewStaticLocator(*cfg.StaticLatitude, *cfg.StaticLongitude)
	}
	return NewHostLocator(cfg.HostBridgeURL, h)
}

// locateWithin bounds a locator call and maps deadline expiry to Timeout.
func locateWithin(ctx context.Context, l Locator, timeout time.Duration) (*models.Location, error) {
	if l == nil {
		return nil, appErrors.Clone(appErrors.ErrLocationUnavailable, "Location is not available on this device.")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	loc, err := l.Locate(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "Location error: timed out waiting for a position fix.")
		}
		return nil, err
	}
	if loc == nil {
		return nil, appErrors.Clone(appErrors.ErrLocationUnavailable, "Location error: no position returned.")
	}
	return loc, nil
}
