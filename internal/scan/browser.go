package scan

import (
	"context"
	"time"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
)

// BrowserProviderName identifies the location-only provider.
const BrowserProviderName = "browser"

// BrowserProvider only acquires a location fix. Network and beacon checks are
// reported unavailable rather than failed.
type BrowserProvider struct {
	locator Locator
	timeout time.Duration
}

// NewBrowserProvider constructs a BrowserProvider.
func NewBrowserProvider(locator Locator, timeout time.Duration) *BrowserProvider {
	return &BrowserProvider{locator: locator, timeout: timeout}
}

// Name implements Provider.
func (p *BrowserProvider) Name() string { return BrowserProviderName }

// Scan implements Provider.
func (p *BrowserProvider) Scan(ctx context.Context) (models.ScanResult, error) {
	result := models.ScanResult{
		WifiStatus:   models.CheckUnavailable,
		BeaconStatus: models.CheckUnavailable,
		Provider:     p.Name(),
	}
	loc, err := locateWithin(ctx, p.locator, p.timeout)
	if err != nil {
		return result, err
	}
	result.Location = loc
	return result, nil
}
