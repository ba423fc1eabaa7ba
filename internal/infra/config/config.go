package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Theme     ThemeConfig     `yaml:"theme"`
	Location  LocationConfig  `yaml:"location"`
	Providers ProvidersConfig `yaml:"providers"`
	Device    DeviceConfig    `yaml:"device"`
	Store     StoreConfig     `yaml:"store"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// ThemeConfig controls the theme scheduling domain.
type ThemeConfig struct {
	DefaultMode   string        `yaml:"defaultMode"`
	SunDataTTL    time.Duration `yaml:"sunDataTtl"`
	RetryInterval time.Duration `yaml:"retryInterval"`
}

// LocationConfig controls location resolution and search.
type LocationConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	SearchDebounce time.Duration `yaml:"searchDebounce"`
}

// ProvidersConfig holds the remote data provider endpoints.
type ProvidersConfig struct {
	GeocodingBaseURL string `yaml:"geocodingBaseUrl"`
	ForecastBaseURL  string `yaml:"forecastBaseUrl"`
	IPLookupBaseURL  string `yaml:"ipLookupBaseUrl"`
}

// DeviceConfig optionally pins the host to fixed coordinates, for kiosk
// style installs that should behave like a device with a position fix.
type DeviceConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Valkey   ValkeyConfig   `yaml:"valkey"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// ValkeyConfig contains connection information for cache storage.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		Theme: ThemeConfig{
			DefaultMode:   "dark",
			SunDataTTL:    24 * time.Hour,
			RetryInterval: time.Hour,
		},
		Location: LocationConfig{
			TTL:            30 * 24 * time.Hour,
			SearchDebounce: 300 * time.Millisecond,
		},
	}
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("THEME_DEFAULT_MODE"); v != "" {
		cfg.Theme.DefaultMode = v
	}
	if v := os.Getenv("THEME_SUN_DATA_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Theme.SunDataTTL = parsed
		}
	}
	if v := os.Getenv("LOCATION_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Location.TTL = parsed
		}
	}
	if v := os.Getenv("GEOCODING_BASE_URL"); v != "" {
		cfg.Providers.GeocodingBaseURL = v
	}
	if v := os.Getenv("FORECAST_BASE_URL"); v != "" {
		cfg.Providers.ForecastBaseURL = v
	}
	if v := os.Getenv("IP_LOOKUP_BASE_URL"); v != "" {
		cfg.Providers.IPLookupBaseURL = v
	}
	if v := os.Getenv("DEVICE_ENABLED"); v != "" {
		cfg.Device.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("DEVICE_LATITUDE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Device.Latitude = parsed
		}
	}
	if v := os.Getenv("DEVICE_LONGITUDE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Device.Longitude = parsed
		}
	}
	if v := os.Getenv("STORE_VALKEY_ENABLED"); v != "" {
		cfg.Store.Valkey.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("STORE_VALKEY_ADDR"); v != "" {
		cfg.Store.Valkey.Addr = v
	}
	if v := os.Getenv("STORE_POSTGRES_DSN"); v != "" {
		cfg.Store.Postgres.DSN = v
	}
	if v := os.Getenv("STORE_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Store.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("STORE_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Store.Postgres.MinConns = int32(parsed)
		}
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address must not be empty")
	}
	switch c.Theme.DefaultMode {
	case "light", "dark", "system", "natural":
	default:
		return fmt.Errorf("theme.defaultMode %q is not a valid mode", c.Theme.DefaultMode)
	}
	if c.Theme.SunDataTTL <= 0 {
		return errors.New("theme.sunDataTtl must be positive")
	}
	if c.Location.TTL <= 0 {
		return errors.New("location.ttl must be positive")
	}
	if c.Store.Valkey.Enabled && c.Store.Valkey.Addr == "" {
		return errors.New("store.valkey.addr required when valkey is enabled")
	}
	return nil
}
