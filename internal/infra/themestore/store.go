package themestore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sundialhq/sundial/internal/domain/location"
	"github.com/sundialhq/sundial/internal/domain/theme"
	apperrors "github.com/sundialhq/sundial/pkg/errors"
	"github.com/sundialhq/sundial/pkg/util"
)

// Logical keys of the persistent key space. Values are opaque JSON blobs
// to the backing store.
const (
	KeyThemeMode = "theme-mode"
	KeyLocation  = "current-location"
	KeySunSeries = "sun-series"
)

// KV is the generic key-value backend the cache wraps.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Cache validates and persists the theme mode, the current location slot
// and the sun-event series. Writes reject invalid values; reads self-heal
// by treating missing or corrupt state as absent.
type Cache struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time
}

// NewCache wraps a KV backend.
func NewCache(kv KV, logger *slog.Logger) *Cache {
	return &Cache{
		kv:     kv,
		logger: logger.With("component", "themestore.cache"),
		now:    util.NowUTC,
	}
}

// storedLocation is the persisted envelope. Timestamp is the write
// instant used for staleness, distinct from Provenance.ResolvedAt.
type storedLocation struct {
	location.Location
	Timestamp time.Time `json:"timestamp"`
}

// Location returns the stored location and its write timestamp.
func (c *Cache) Location(ctx context.Context) (location.Location, time.Time, bool, error) {
	raw, ok, err := c.kv.Get(ctx, KeyLocation)
	if err != nil || !ok {
		return location.Location{}, time.Time{}, false, err
	}
	var stored storedLocation
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		c.logger.Warn("discarding corrupt stored location", "error", err)
		return location.Location{}, time.Time{}, false, nil
	}
	if !stored.Location.Valid() {
		c.logger.Warn("discarding invalid stored location")
		return location.Location{}, time.Time{}, false, nil
	}
	return stored.Location, stored.Timestamp, true, nil
}

// SetLocation persists the single current-location slot, stamping the
// write timestamp. Invalid locations are rejected without persisting.
func (c *Cache) SetLocation(ctx context.Context, loc location.Location) error {
	if !loc.Valid() {
		return apperrors.Wrap("invalid_location", "location failed validation", nil)
	}
	payload, err := json.Marshal(storedLocation{Location: loc, Timestamp: c.now()})
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, KeyLocation, string(payload))
}

// RemoveLocation clears the current-location slot.
func (c *Cache) RemoveLocation(ctx context.Context) error {
	return c.kv.Remove(ctx, KeyLocation)
}

// SunSeries returns the cached forecast, if present and valid.
func (c *Cache) SunSeries(ctx context.Context) (theme.SunSeries, bool, error) {
	raw, ok, err := c.kv.Get(ctx, KeySunSeries)
	if err != nil || !ok {
		return theme.SunSeries{}, false, err
	}
	var series theme.SunSeries
	if err := json.Unmarshal([]byte(raw), &series); err != nil {
		c.logger.Warn("discarding corrupt sun series", "error", err)
		return theme.SunSeries{}, false, nil
	}
	if !series.Valid() {
		c.logger.Warn("discarding invalid sun series")
		return theme.SunSeries{}, false, nil
	}
	return series, true, nil
}

// SetSunSeries persists the forecast wholesale, stamping FetchedAt when
// the caller left it unset. Invalid series are rejected.
func (c *Cache) SetSunSeries(ctx context.Context, series theme.SunSeries) error {
	if !series.Valid() {
		return apperrors.Wrap("no_data", "sun series failed validation", nil)
	}
	if series.FetchedAt.IsZero() {
		series.FetchedAt = c.now()
	}
	payload, err := json.Marshal(series)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, KeySunSeries, string(payload))
}

// RemoveSunSeries clears the cached forecast.
func (c *Cache) RemoveSunSeries(ctx context.Context) error {
	return c.kv.Remove(ctx, KeySunSeries)
}

// Mode returns the persisted theme mode.
func (c *Cache) Mode(ctx context.Context) (theme.Mode, bool, error) {
	raw, ok, err := c.kv.Get(ctx, KeyThemeMode)
	if err != nil || !ok {
		return "", false, err
	}
	mode, valid := theme.ParseMode(raw)
	if !valid {
		c.logger.Warn("discarding unknown stored mode", "value", raw)
		return "", false, nil
	}
	return mode, true, nil
}

// SetMode persists the selected theme mode.
func (c *Cache) SetMode(ctx context.Context, mode theme.Mode) error {
	if _, ok := theme.ParseMode(string(mode)); !ok {
		return apperrors.Wrap("invalid_input", "unknown theme mode", nil)
	}
	return c.kv.Set(ctx, KeyThemeMode, string(mode))
}

// Get is the raw passthrough for callers managing their own keys.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.kv.Get(ctx, key)
}

// Set is the raw passthrough counterpart of Get.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	return c.kv.Set(ctx, key, value)
}

// Remove deletes a key.
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.kv.Remove(ctx, key)
}

var (
	_ location.Store = (*Cache)(nil)
	_ theme.SunStore = (*Cache)(nil)
	_ theme.Store    = (*Cache)(nil)
)
