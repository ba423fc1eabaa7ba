package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sundialhq/sundial/internal/domain/location"
	"github.com/sundialhq/sundial/internal/domain/theme"
	apperrors "github.com/sundialhq/sundial/pkg/errors"
	"github.com/sundialhq/sundial/pkg/metrics"
	"github.com/sundialhq/sundial/pkg/util"
)

const (
	defaultGeocodingBaseURL = "https://geocoding-api.open-meteo.com/v1"
	defaultForecastBaseURL  = "https://api.open-meteo.com/v1"

	resultCount  = 5
	language     = "en"
	format       = "json"
	forecastDays = 7
)

// Client talks to the Open-Meteo geocoding and forecast APIs.
type Client struct {
	geocodingBaseURL string
	forecastBaseURL  string
	httpClient       *http.Client
	calls            *metrics.Calls
	logger           *slog.Logger
}

// NewClient builds an API client; empty base URLs select the public
// endpoints.
func NewClient(geocodingBaseURL, forecastBaseURL string, reg *metrics.Registry, logger *slog.Logger) *Client {
	geo := strings.TrimSpace(geocodingBaseURL)
	if geo == "" {
		geo = defaultGeocodingBaseURL
	}
	forecast := strings.TrimSpace(forecastBaseURL)
	if forecast == "" {
		forecast = defaultForecastBaseURL
	}
	return &Client{
		geocodingBaseURL: strings.TrimRight(geo, "/"),
		forecastBaseURL:  strings.TrimRight(forecast, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		calls:  reg.Counter("open-meteo"),
		logger: logger.With("component", "openmeteo.client"),
	}
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Name       string  `json:"name"`
	Country    string  `json:"country"`
	Admin1     string  `json:"admin1"`
	Timezone   string  `json:"timezone"`
	Population int64   `json:"population"`
	Elevation  float64 `json:"elevation"`
}

// SearchPlaces queries the geocoding API by place name. No-result and
// invalid-query failures keep their specific codes; every other failure is
// normalized so transport details never reach the UI.
func (c *Client) SearchPlaces(ctx context.Context, query string) ([]location.Location, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Wrap("invalid_query", "please enter a valid location name", nil)
	}

	params := url.Values{}
	params.Set("name", query)
	params.Set("count", fmt.Sprint(resultCount))
	params.Set("language", language)
	params.Set("format", format)

	var decoded searchResponse
	if err := c.getJSON(ctx, c.geocodingBaseURL+"/search", params, &decoded); err != nil {
		return nil, apperrors.Wrap("provider_error", "unable to search locations, please try again later", err)
	}
	if len(decoded.Results) == 0 {
		return nil, apperrors.Wrap("no_results", "no locations found for that search term", nil)
	}

	candidates := make([]location.Location, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		candidates = append(candidates, location.Standardize(location.Location{
			Coordinates: location.Coordinates{Latitude: result.Latitude, Longitude: result.Longitude},
			Place: location.Place{
				Name:    result.Name,
				Region:  result.Admin1,
				Country: result.Country,
			},
			Provenance: location.Provenance{Source: location.SourceSearch},
		}))
	}
	return candidates, nil
}

// ReverseGeocode resolves a name for coordinates. It never fails: on any
// provider problem the coordinate-formatted fallback place is returned.
func (c *Client) ReverseGeocode(ctx context.Context, coords location.Coordinates) location.Place {
	params := url.Values{}
	params.Set("latitude", formatCoord(coords.Latitude))
	params.Set("longitude", formatCoord(coords.Longitude))
	params.Set("language", language)
	params.Set("format", format)

	var decoded searchResponse
	if err := c.getJSON(ctx, c.geocodingBaseURL+"/search", params, &decoded); err != nil || len(decoded.Results) == 0 {
		if err != nil {
			c.logger.Debug("reverse geocode failed, using coordinate fallback", "error", err)
		}
		fallback := location.FormatCoordinates(coords)
		return location.Place{Name: fallback, DisplayName: fallback}
	}

	result := decoded.Results[0]
	place := location.Place{
		Name:    result.Name,
		Region:  result.Admin1,
		Country: result.Country,
	}
	if place.Name == "" {
		place.Name = location.FormatCoordinates(coords)
	}
	place.DisplayName = location.DisplayName(place)
	return place
}

type forecastResponse struct {
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	TimezoneAbbr     string `json:"timezone_abbreviation"`
	Daily            struct {
		Time    []string `json:"time"`
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// FetchSunSeries requests a fixed forecast window of daily sunrise/sunset
// instants, timezone resolved by the provider.
func (c *Client) FetchSunSeries(ctx context.Context, coords location.Coordinates) (theme.SunSeries, error) {
	if !coords.Valid() {
		return theme.SunSeries{}, apperrors.Wrap("invalid_coordinates", "invalid coordinates provided", nil)
	}

	params := url.Values{}
	params.Set("latitude", formatCoord(coords.Latitude))
	params.Set("longitude", formatCoord(coords.Longitude))
	params.Set("daily", "sunrise,sunset")
	params.Set("timezone", "auto")
	params.Set("forecast_days", fmt.Sprint(forecastDays))

	var decoded forecastResponse
	if err := c.getJSON(ctx, c.forecastBaseURL+"/forecast", params, &decoded); err != nil {
		return theme.SunSeries{}, apperrors.Wrap("provider_error", "unable to fetch sunrise/sunset data, please try again later", err)
	}

	daily := decoded.Daily
	if len(daily.Time) == 0 || len(daily.Sunrise) != len(daily.Time) || len(daily.Sunset) != len(daily.Time) {
		return theme.SunSeries{}, apperrors.Wrap("no_data", "no sun data available for this location", nil)
	}

	zone := time.UTC
	if decoded.UTCOffsetSeconds != 0 {
		zone = time.FixedZone(decoded.TimezoneAbbr, decoded.UTCOffsetSeconds)
	}

	days := make([]theme.SunDay, 0, len(daily.Time))
	for i := range daily.Time {
		date, err := parseLocalInstant(daily.Time[i], zone)
		if err != nil {
			return theme.SunSeries{}, apperrors.Wrap("no_data", "malformed sun data for this location", err)
		}
		sunrise, err := parseLocalInstant(daily.Sunrise[i], zone)
		if err != nil {
			return theme.SunSeries{}, apperrors.Wrap("no_data", "malformed sun data for this location", err)
		}
		sunset, err := parseLocalInstant(daily.Sunset[i], zone)
		if err != nil {
			return theme.SunSeries{}, apperrors.Wrap("no_data", "malformed sun data for this location", err)
		}
		days = append(days, theme.SunDay{Date: date, Sunrise: sunrise, Sunset: sunset})
	}
	return theme.SunSeries{
		Days:             days,
		FetchedAt:        util.NowUTC(),
		UTCOffsetSeconds: decoded.UTCOffsetSeconds,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	err := c.doGetJSON(ctx, endpoint, params, out)
	c.calls.Record(err)
	return err
}

func (c *Client) doGetJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("request error: status=%d body=%s", resp.StatusCode, string(payload))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "{}" {
		return fmt.Errorf("empty response received")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Open-Meteo returns local wall-clock timestamps without an offset when
// timezone=auto is in effect; the response's utc_offset_seconds anchors
// them to absolute instants. Dates come as plain calendar days.
var instantLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func parseLocalInstant(value string, zone *time.Location) (time.Time, error) {
	for _, layout := range instantLayouts {
		if ts, err := time.ParseInLocation(layout, value, zone); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func formatCoord(value float64) string {
	return fmt.Sprintf("%.4f", value)
}

var (
	_ location.Geocoder = (*Client)(nil)
	_ theme.SunClient   = (*Client)(nil)
)
