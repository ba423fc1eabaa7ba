package ipapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sundialhq/sundial/internal/domain/location"
	apperrors "github.com/sundialhq/sundial/pkg/errors"
	"github.com/sundialhq/sundial/pkg/metrics"
)

const defaultBaseURL = "https://ipapi.co/json/"

// Client resolves an approximate location from the caller's public IP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	calls      *metrics.Calls
	logger     *slog.Logger
}

// NewClient builds an API client; an empty base URL selects ipapi.co.
func NewClient(baseURL string, reg *metrics.Registry, logger *slog.Logger) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = defaultBaseURL
	}
	return &Client{
		baseURL: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		calls:  reg.Counter("ipapi"),
		logger: logger.With("component", "ipapi.client"),
	}
}

type apiResponse struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	CountryName string   `json:"country_name"`
}

// Locate performs the single parameterless lookup. Responses without
// numeric coordinates are failures.
func (c *Client) Locate(ctx context.Context) (location.Location, error) {
	loc, err := c.locate(ctx)
	c.calls.Record(err)
	return loc, err
}

func (c *Client) locate(ctx context.Context) (location.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return location.Location{}, fmt.Errorf("build ip location request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return location.Location{}, apperrors.Wrap("ip_unavailable", "ip location service failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return location.Location{}, apperrors.Wrap("ip_unavailable", "ip location service failed", fmt.Errorf("status=%d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return location.Location{}, apperrors.Wrap("ip_unavailable", "ip location service failed", err)
	}

	var raw apiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return location.Location{}, apperrors.Wrap("ip_unavailable", "invalid ip location data", err)
	}
	if raw.Latitude == nil || raw.Longitude == nil {
		return location.Location{}, apperrors.Wrap("ip_unavailable", "invalid ip location data", nil)
	}

	loc := location.Location{
		Coordinates: location.Coordinates{Latitude: *raw.Latitude, Longitude: *raw.Longitude},
		Place: location.Place{
			Name:    raw.City,
			Region:  raw.Region,
			Country: raw.CountryName,
		},
		Provenance: location.Provenance{Source: location.SourceIP},
	}
	if !loc.Coordinates.Valid() {
		return location.Location{}, apperrors.Wrap("ip_unavailable", "invalid ip location data", nil)
	}
	c.logger.Debug("ip location resolved", "city", raw.City)
	return location.Standardize(loc), nil
}

var _ location.IPLocator = (*Client)(nil)
