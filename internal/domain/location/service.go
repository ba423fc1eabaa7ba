package location

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/sundialhq/sundial/pkg/errors"
	"github.com/sundialhq/sundial/pkg/util"
)

// ErrPermissionDenied is reported by a DeviceLocator when the platform
// refused access to the device position.
var ErrPermissionDenied = errors.New("device position permission denied")

// ErrPositionUnavailable is reported by a DeviceLocator when no position
// fix could be obtained.
var ErrPositionUnavailable = errors.New("device position unavailable")

// Position is a raw device fix before name enrichment.
type Position struct {
	Coordinates Coordinates
	Accuracy    *float64
}

// Geocoder resolves place names. ReverseGeocode never fails: on any
// provider problem it returns a coordinate-formatted place instead.
type Geocoder interface {
	SearchPlaces(ctx context.Context, query string) ([]Location, error)
	ReverseGeocode(ctx context.Context, coords Coordinates) Place
}

// IPLocator resolves an approximate location from the caller's network.
type IPLocator interface {
	Locate(ctx context.Context) (Location, error)
}

// DeviceLocator obtains a position fix from the hosting device.
type DeviceLocator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// Store persists the single "current location" slot.
type Store interface {
	Location(ctx context.Context) (Location, time.Time, bool, error)
	SetLocation(ctx context.Context, loc Location) error
}

// Config tunes the resolver.
type Config struct {
	// TTL after which a stored location must be re-acquired.
	TTL time.Duration
}

// Service orchestrates the three acquisition strategies into one
// normalized Location.
type Service interface {
	// Initialize returns the stored location if present and fresh. A
	// no_stored_location error is the expected signal that an acquisition
	// strategy must run followed by Commit.
	Initialize(ctx context.Context) (Location, error)
	// Commit validates, standardizes, name-enriches and persists a
	// location, returning the stored value.
	Commit(ctx context.Context, raw Location) (Location, error)
	AcquireViaDevice(ctx context.Context) (Location, error)
	AcquireViaIP(ctx context.Context) (Location, error)
	// Search returns candidates for a place-name query, nearest first when
	// an IP location is obtainable.
	Search(ctx context.Context, query string) ([]Location, error)
	// DeviceAvailable reports whether the device strategy may still be
	// offered this session.
	DeviceAvailable() bool
}

type service struct {
	cfg      Config
	geocoder Geocoder
	ip       IPLocator
	device   DeviceLocator
	store    Store
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	ipCached     *Location
	deviceDenied bool
}

// NewService wires up the location resolver.
func NewService(cfg Config, geocoder Geocoder, ip IPLocator, device DeviceLocator, store Store, logger *slog.Logger) Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	return &service{
		cfg:      cfg,
		geocoder: geocoder,
		ip:       ip,
		device:   device,
		store:    store,
		logger:   logger.With("component", "location.service"),
		now:      util.NowUTC,
	}
}

func (s *service) Initialize(ctx context.Context) (Location, error) {
	loc, storedAt, ok, err := s.store.Location(ctx)
	if err != nil {
		return Location{}, err
	}
	if !ok {
		return Location{}, apperrors.Wrap("no_stored_location", "no valid location stored", nil)
	}
	if s.now().Sub(storedAt) >= s.cfg.TTL {
		s.logger.Info("stored location expired", "storedAt", storedAt)
		return Location{}, apperrors.Wrap("no_stored_location", "stored location expired", nil)
	}
	return loc, nil
}

func (s *service) Commit(ctx context.Context, raw Location) (Location, error) {
	if !raw.Coordinates.Valid() {
		return Location{}, apperrors.Wrap("invalid_location", "location coordinates missing or out of range", nil)
	}

	loc := Standardize(raw)
	if loc.Place.Name == UnknownPlaceName {
		loc.Place = s.geocoder.ReverseGeocode(ctx, loc.Coordinates)
		if loc.Place.Name == "" {
			loc.Place.Name = FormatCoordinates(loc.Coordinates)
		}
		loc.Place.DisplayName = DisplayName(loc.Place)
	}
	loc.Provenance.ResolvedAt = s.now()

	if err := s.store.SetLocation(ctx, loc); err != nil {
		return Location{}, err
	}
	s.logger.Info("location committed", "display", loc.Place.DisplayName, "source", loc.Provenance.Source)
	return loc, nil
}

func (s *service) AcquireViaDevice(ctx context.Context) (Location, error) {
	s.mu.Lock()
	denied := s.deviceDenied
	s.mu.Unlock()
	if denied {
		return Location{}, apperrors.Wrap("permission_denied", "device location permission was denied", nil)
	}

	pos, err := s.device.CurrentPosition(ctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrPermissionDenied):
			s.mu.Lock()
			s.deviceDenied = true
			s.mu.Unlock()
			return Location{}, apperrors.Wrap("permission_denied", "device location permission was denied", err)
		case errors.Is(err, ErrPositionUnavailable):
			return Location{}, apperrors.Wrap("position_unavailable", "unable to determine device position", err)
		default:
			return Location{}, apperrors.Wrap("position_unavailable", "device position request failed", err)
		}
	}

	loc := Location{
		Coordinates: pos.Coordinates,
		Place:       s.geocoder.ReverseGeocode(ctx, pos.Coordinates),
		Provenance:  Provenance{Source: SourceDevice, Accuracy: pos.Accuracy},
	}
	return Standardize(loc), nil
}

func (s *service) AcquireViaIP(ctx context.Context) (Location, error) {
	s.mu.Lock()
	if s.ipCached != nil {
		cached := *s.ipCached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	loc, err := s.ip.Locate(ctx)
	if err != nil {
		return Location{}, apperrors.Wrap("ip_unavailable", "unable to determine location from network address", err)
	}
	loc.Provenance.Source = SourceIP
	loc = Standardize(loc)

	s.mu.Lock()
	s.ipCached = &loc
	s.mu.Unlock()
	return loc, nil
}

func (s *service) Search(ctx context.Context, query string) ([]Location, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Wrap("invalid_query", "please enter a valid location name", nil)
	}

	results, err := s.geocoder.SearchPlaces(ctx, query)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Provenance.Source = SourceSearch
		results[i] = Standardize(results[i])
	}

	// Proximity sorting is best effort; without an IP fix the provider
	// order stands.
	origin, err := s.AcquireViaIP(ctx)
	if err != nil {
		s.logger.Debug("ip location unavailable for proximity sorting", "error", err)
		return results, nil
	}
	sort.SliceStable(results, func(i, j int) bool {
		return Distance(origin.Coordinates, results[i].Coordinates) < Distance(origin.Coordinates, results[j].Coordinates)
	})
	return results, nil
}

func (s *service) DeviceAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.deviceDenied
}
