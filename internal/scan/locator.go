package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/sma-attendance-agent/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-agent/pkg/errors"
)

// StaticLocator returns a fixed position, for kiosk devices bolted to a room.
type StaticLocator struct {
	loc models.Location
}

// NewStaticLocator constructs a StaticLocator.
func NewStaticLocator(lat, lon float64) *StaticLocator {
	return &StaticLocator{loc: models.Location{Latitude: lat, Longitude: lon}}
}

// Locate returns a copy of the configured position.
func (s *StaticLocator) Locate(ctx context.Context) (*models.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loc := s.loc
	return &loc, nil
}

// HostLocator asks the host bridge for a position fix: GET {bridge}/location.
type HostLocator struct {
	base string
	h    *http.Client
}

// NewHostLocator constructs a HostLocator.
func NewHostLocator(base string, h *http.Client) *HostLocator {
	return &HostLocator{base: base, h: h}
}

// Locate fetches a fix. 401/403 from the bridge means the user refused
// location access.
func (l *HostLocator) Locate(ctx context.Context) (*models.Location, error) {
	if l.base == "" {
		return nil, appErrors.Clone(appErrors.ErrLocationUnavailable, "Location error: geolocation is not supported on this device.")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/location", nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.h.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrLocationUnavailable.Code, appErrors.ErrLocationUnavailable.Status, "Location error: position unavailable.")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "Location error: permission denied. Allow location access and try again.")
	case resp.StatusCode == http.StatusGatewayTimeout, resp.StatusCode == http.StatusRequestTimeout:
		return nil, appErrors.Clone(appErrors.ErrTimeout, "Location error: timed out waiting for a position fix.")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, appErrors.Clone(appErrors.ErrLocationUnavailable, fmt.Sprintf("Location error: position unavailable (status %d).", resp.StatusCode))
	}

	var loc models.Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrLocationUnavailable.Code, appErrors.ErrLocationUnavailable.Status, "Location error: malformed position.")
	}
	return &loc, nil
}
