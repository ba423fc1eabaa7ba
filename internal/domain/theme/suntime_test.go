package theme

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/sundialhq/sundial/pkg/errors"
)

func day(date string, sunrise, sunset string) SunDay {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	rise, err := time.Parse(time.RFC3339, sunrise)
	if err != nil {
		panic(err)
	}
	set, err := time.Parse(time.RFC3339, sunset)
	if err != nil {
		panic(err)
	}
	return SunDay{Date: d, Sunrise: rise, Sunset: set}
}

func summerSeries() SunSeries {
	return SunSeries{
		Days: []SunDay{
			day("2024-06-01", "2024-06-01T06:00:00Z", "2024-06-01T20:00:00Z"),
			day("2024-06-02", "2024-06-02T05:59:00Z", "2024-06-02T20:01:00Z"),
		},
		FetchedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tokyoSeries carries instants in a +09:00 fixed zone, the shape the
// forecast source produces for a Tokyo coordinate.
func tokyoSeries() SunSeries {
	tokyo := time.FixedZone("JST", 9*60*60)
	return SunSeries{
		UTCOffsetSeconds: 9 * 60 * 60,
		Days: []SunDay{
			{
				Date:    time.Date(2024, 6, 1, 0, 0, 0, 0, tokyo),
				Sunrise: time.Date(2024, 6, 1, 4, 30, 0, 0, tokyo),
				Sunset:  time.Date(2024, 6, 1, 19, 0, 0, 0, tokyo),
			},
			{
				Date:    time.Date(2024, 6, 2, 0, 0, 0, 0, tokyo),
				Sunrise: time.Date(2024, 6, 2, 4, 30, 0, 0, tokyo),
				Sunset:  time.Date(2024, 6, 2, 19, 0, 0, 0, tokyo),
			},
		},
		FetchedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseInstant(t *testing.T) {
	ts, err := ParseInstant("2024-06-01T06:00:00Z")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC), ts)

	_, err = ParseInstant("yesterday")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "parse_error"))
}

func TestIsDaytimeBoundsAreInclusive(t *testing.T) {
	sunrise := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	sunset := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

	require.True(t, IsDaytime(sunrise, sunrise, sunset))
	require.True(t, IsDaytime(sunset, sunrise, sunset))
	require.True(t, IsDaytime(sunrise.Add(4*time.Hour), sunrise, sunset))
	require.False(t, IsDaytime(sunrise.Add(-time.Second), sunrise, sunset))
	require.False(t, IsDaytime(sunset.Add(time.Second), sunrise, sunset))
}

func TestFindDayRecordMatchesCalendarDate(t *testing.T) {
	series := summerSeries()

	got, ok := FindDayRecord(series, time.Date(2024, 6, 2, 23, 30, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, "2024-06-02", got.Date.Format("2006-01-02"))

	_, ok = FindDayRecord(series, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	require.False(t, ok)
}

func TestFindDayRecordMatchesInSeriesZone(t *testing.T) {
	series := tokyoSeries()

	// 23:00 UTC on June 1 is already June 2 in Tokyo.
	got, ok := FindDayRecord(series, time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, "2024-06-02", got.Date.Format("2006-01-02"))

	// 16:00 UTC on June 1 is still June 1 in Tokyo.
	got, ok = FindDayRecord(series, time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, "2024-06-01", got.Date.Format("2006-01-02"))
}

func TestNextBoundaryDuringDaylight(t *testing.T) {
	series := summerSeries()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	b, err := NextBoundary(now, series)
	require.NoError(t, err)
	require.Equal(t, series.Days[1].Sunrise, b.NextSunrise)
	require.Equal(t, series.Days[0].Sunset, b.NextSunset)
	require.Equal(t, 10*time.Hour, UntilNextSwitch(now, b))
}

func TestNextBoundaryBeforeSunrise(t *testing.T) {
	series := summerSeries()
	now := time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)

	b, err := NextBoundary(now, series)
	require.NoError(t, err)
	require.Equal(t, series.Days[0].Sunrise, b.NextSunrise)
	require.Equal(t, series.Days[0].Sunset, b.NextSunset)
	require.Equal(t, time.Hour, UntilNextSwitch(now, b))
}

func TestNextBoundaryAfterSunset(t *testing.T) {
	series := summerSeries()
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, time.UTC)

	b, err := NextBoundary(now, series)
	require.NoError(t, err)
	require.Equal(t, series.Days[1].Sunrise, b.NextSunrise)
	require.Equal(t, series.Days[1].Sunset, b.NextSunset)
	require.Equal(t, series.Days[1].Sunrise.Sub(now), UntilNextSwitch(now, b))
}

func TestNextBoundaryRequiresTodayAndTomorrow(t *testing.T) {
	series := summerSeries()

	_, err := NextBoundary(time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC), series)
	require.True(t, apperrors.IsCode(err, "insufficient_data"))

	single := SunSeries{Days: series.Days[:1], FetchedAt: series.FetchedAt}
	_, err = NextBoundary(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), single)
	require.True(t, apperrors.IsCode(err, "insufficient_data"))
}

func TestIsStale(t *testing.T) {
	fetched := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	ttl := 24 * time.Hour

	require.True(t, IsStale(time.Time{}, ttl, fetched))
	require.False(t, IsStale(fetched, ttl, fetched.Add(ttl-time.Second)))
	require.True(t, IsStale(fetched, ttl, fetched.Add(ttl)))
}

func TestClockFallbackState(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, StateDark, ClockFallbackState(base.Add(6*time.Hour+59*time.Minute)))
	require.Equal(t, StateLight, ClockFallbackState(base.Add(7*time.Hour)))
	require.Equal(t, StateLight, ClockFallbackState(base.Add(18*time.Hour+59*time.Minute)))
	require.Equal(t, StateDark, ClockFallbackState(base.Add(19*time.Hour)))
}

func TestSunSeriesValidation(t *testing.T) {
	require.False(t, SunSeries{}.Valid())

	series := summerSeries()
	require.True(t, series.Valid())
	require.True(t, series.Usable())

	single := SunSeries{Days: series.Days[:1]}
	require.True(t, single.Valid())
	require.False(t, single.Usable())

	unordered := SunSeries{Days: []SunDay{series.Days[1], series.Days[0]}}
	require.False(t, unordered.Valid())

	missing := summerSeries()
	missing.Days[1].Sunset = time.Time{}
	require.False(t, missing.Valid())
}

func TestParseModeAcceptsKnownModes(t *testing.T) {
	for _, value := range []string{"light", "dark", "system", "natural"} {
		mode, ok := ParseMode(value)
		require.True(t, ok)
		require.Equal(t, Mode(value), mode)
	}

	_, ok := ParseMode("sepia")
	require.False(t, ok)
}
