package location

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Source identifies how a location was acquired.
type Source string

const (
	SourceDevice  Source = "device-geolocation"
	SourceIP      Source = "ip-lookup"
	SourceSearch  Source = "manual-search"
	SourceUnknown Source = "unknown"
)

// UnknownPlaceName is used when no human readable name could be resolved.
const UnknownPlaceName = "Unknown Location"

// Coordinates is a geographic point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates fall inside the WGS84 ranges.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Place carries the human readable naming of a location.
type Place struct {
	Name        string `json:"name"`
	Region      string `json:"region"`
	Country     string `json:"country"`
	DisplayName string `json:"displayName"`
}

// Provenance records how and when a location was resolved.
type Provenance struct {
	Source     Source    `json:"source"`
	ResolvedAt time.Time `json:"resolvedAt"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
}

// Location is a fully resolved geographic point.
type Location struct {
	Coordinates Coordinates `json:"coordinates"`
	Place       Place       `json:"place"`
	Provenance  Provenance  `json:"provenance"`
}

// Valid reports whether the location satisfies the structural invariants:
// numeric in-range coordinates and a non-empty place name.
func (l Location) Valid() bool {
	return l.Coordinates.Valid() && strings.TrimSpace(l.Place.Name) != ""
}

// Standardize normalizes a partially filled location into the full shape.
// It is idempotent: applying it twice yields the same value.
func Standardize(raw Location) Location {
	loc := raw
	if loc.Place.Name == "" {
		loc.Place.Name = UnknownPlaceName
	}
	loc.Place.DisplayName = DisplayName(loc.Place)
	if loc.Provenance.Source == "" {
		loc.Provenance.Source = SourceUnknown
	}
	return loc
}

// DisplayName joins the non-empty naming parts with commas. The unknown
// placeholder is dropped so a nameless place reads as its region/country.
func DisplayName(p Place) string {
	parts := make([]string, 0, 3)
	if p.Name != "" && p.Name != UnknownPlaceName {
		parts = append(parts, p.Name)
	}
	if p.Region != "" {
		parts = append(parts, p.Region)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	if len(parts) == 0 {
		return UnknownPlaceName
	}
	return strings.Join(parts, ", ")
}

// FormatCoordinates renders coordinates as a fallback place name.
func FormatCoordinates(c Coordinates) string {
	return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
}

const earthRadiusKm = 6371

// Distance returns the great-circle distance between two points in
// kilometers using the haversine formula.
func Distance(a, b Coordinates) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
