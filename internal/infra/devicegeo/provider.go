// Package devicegeo adapts host device positioning to the resolver's
// DeviceLocator contract. Browsers acquire the fix themselves and commit
// coordinates through the API; these providers cover server-side hosts.
package devicegeo

import (
	"context"

	"github.com/sundialhq/sundial/internal/domain/location"
)

// Disabled reports position-unavailable on every request, for deployments
// where the host has no positioning hardware.
type Disabled struct{}

func (Disabled) CurrentPosition(context.Context) (location.Position, error) {
	return location.Position{}, location.ErrPositionUnavailable
}

// Static serves a fixed position, for kiosk or signage installations
// configured with their site coordinates.
type Static struct {
	Coordinates location.Coordinates
}

func (s Static) CurrentPosition(context.Context) (location.Position, error) {
	if !s.Coordinates.Valid() {
		return location.Position{}, location.ErrPositionUnavailable
	}
	return location.Position{Coordinates: s.Coordinates}, nil
}

var (
	_ location.DeviceLocator = Disabled{}
	_ location.DeviceLocator = Static{}
)
