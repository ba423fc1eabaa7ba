package theme

import "time"

// State is the derived light/dark rendering state. It is never persisted;
// only the selected Mode is.
type State string

const (
	StateLight State = "light"
	StateDark  State = "dark"
)

// Mode is the user-selected theme mode.
type Mode string

const (
	ModeLight   Mode = "light"
	ModeDark    Mode = "dark"
	ModeSystem  Mode = "system"
	ModeNatural Mode = "natural"
)

// ParseMode validates a mode string coming from clients or storage.
func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case ModeLight, ModeDark, ModeSystem, ModeNatural:
		return Mode(value), true
	}
	return "", false
}

// SunDay is a single day of sunrise/sunset instants, as provided by the
// forecast source with the timezone already resolved.
type SunDay struct {
	Date    time.Time `json:"date"`
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// SunSeries is a multi-day sunrise/sunset forecast. The first entry is
// "today" relative to fetch time and entries are ordered by date.
// UTCOffsetSeconds is the location's UTC offset as reported by the
// forecast source; calendar-date matching runs in that zone.
type SunSeries struct {
	Days             []SunDay  `json:"days"`
	FetchedAt        time.Time `json:"fetchedAt"`
	UTCOffsetSeconds int       `json:"utcOffsetSeconds,omitempty"`
}

// Zone returns the location's fixed-offset zone.
func (s SunSeries) Zone() *time.Location {
	if s.UTCOffsetSeconds == 0 {
		return time.UTC
	}
	return time.FixedZone("", s.UTCOffsetSeconds)
}

// Valid reports whether the series satisfies the structural invariants:
// non-empty, every instant present, dates strictly ascending.
func (s SunSeries) Valid() bool {
	if len(s.Days) == 0 {
		return false
	}
	for i, day := range s.Days {
		if day.Date.IsZero() || day.Sunrise.IsZero() || day.Sunset.IsZero() {
			return false
		}
		if i > 0 && !s.Days[i-1].Date.Before(day.Date) {
			return false
		}
	}
	return true
}

// Usable reports whether the series can drive scheduling. Tomorrow's entry
// is needed to compute the next sunrise once today's sunset has passed.
func (s SunSeries) Usable() bool {
	return s.Valid() && len(s.Days) >= 2
}
