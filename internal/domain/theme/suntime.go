package theme

import (
	"time"

	apperrors "github.com/sundialhq/sundial/pkg/errors"
)

const dateLayout = "2006-01-02"

// ParseInstant parses an RFC3339 timestamp.
func ParseInstant(text string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return time.Time{}, apperrors.Wrap("parse_error", "invalid timestamp", err)
	}
	return ts, nil
}

// IsWithinInterval reports whether now falls inside [start, end], inclusive
// on both ends.
func IsWithinInterval(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}

// IsDaytime reports whether now is between sunrise and sunset.
func IsDaytime(now, sunrise, sunset time.Time) bool {
	return IsWithinInterval(now, sunrise, sunset)
}

// FindDayRecord returns the entry whose calendar date matches target.
// The comparison runs in the series' zone so a UTC clock still lands on
// the location's local calendar day.
func FindDayRecord(series SunSeries, target time.Time) (SunDay, bool) {
	want := target.In(series.Zone()).Format(dateLayout)
	for _, day := range series.Days {
		if day.Date.Format(dateLayout) == want {
			return day, true
		}
	}
	return SunDay{}, false
}

// Boundary holds the next sunrise and sunset instants around now.
type Boundary struct {
	NextSunrise time.Time
	NextSunset  time.Time
}

// NextBoundary computes the upcoming sunrise/sunset pair. Before today's
// sunrise it is today's pair; during daylight it is tomorrow's sunrise and
// today's sunset; after sunset it is tomorrow's pair. Tomorrow's record is
// expected at index 1 of the series.
func NextBoundary(now time.Time, series SunSeries) (Boundary, error) {
	today, ok := FindDayRecord(series, now)
	if !ok {
		return Boundary{}, apperrors.Wrap("insufficient_data", "no sun record for today", nil)
	}
	if len(series.Days) < 2 {
		return Boundary{}, apperrors.Wrap("insufficient_data", "no sun record for tomorrow", nil)
	}
	tomorrow := series.Days[1]
	if now.Before(today.Sunrise) {
		return Boundary{NextSunrise: today.Sunrise, NextSunset: today.Sunset}, nil
	}
	if now.Before(today.Sunset) {
		return Boundary{NextSunrise: tomorrow.Sunrise, NextSunset: today.Sunset}, nil
	}
	return Boundary{NextSunrise: tomorrow.Sunrise, NextSunset: tomorrow.Sunset}, nil
}

// UntilNextSwitch returns how long until the theme must flip: until sunset
// while it is daytime, until sunrise otherwise. The result can be negative
// on clock skew; callers must clamp before arming a timer.
func UntilNextSwitch(now time.Time, b Boundary) time.Duration {
	if IsDaytime(now, b.NextSunrise, b.NextSunset) {
		return b.NextSunset.Sub(now)
	}
	return b.NextSunrise.Sub(now)
}

// IsStale reports whether cached data fetched at lastFetch has outlived ttl.
func IsStale(lastFetch time.Time, ttl time.Duration, now time.Time) bool {
	if lastFetch.IsZero() {
		return true
	}
	return now.Sub(lastFetch) >= ttl
}

// ClockFallbackState derives a state from the wall clock alone, used when
// no sun data is available: daytime is 07:00 (inclusive) to 19:00.
func ClockFallbackState(now time.Time) State {
	hour := now.Hour()
	if hour >= 7 && hour < 19 {
		return StateLight
	}
	return StateDark
}
