package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/sundialhq/sundial/internal/domain/location"
	"github.com/sundialhq/sundial/internal/domain/theme"
	"github.com/sundialhq/sundial/internal/infra/config"
	"github.com/sundialhq/sundial/internal/infra/devicegeo"
	"github.com/sundialhq/sundial/internal/infra/iplocate/ipapi"
	"github.com/sundialhq/sundial/internal/infra/openmeteo"
	"github.com/sundialhq/sundial/internal/infra/themestore"
	httpiface "github.com/sundialhq/sundial/internal/interface/http"
	"github.com/sundialhq/sundial/pkg/metrics"
)

func provideKV(cfg *config.Config, logger *slog.Logger) themestore.KV {
	if cfg.Store.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back", "error", err)
		} else if client, err := valkey.NewClient(opt); err != nil {
			logger.Error("failed to create valkey client, falling back", "error", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
				logger.Error("valkey ping failed, falling back", "error", err)
			} else {
				logger.Info("valkey store enabled", "addr", cfg.Store.Valkey.Addr)
				return themestore.NewValkeyKV(client, cfg.Store.Valkey.Prefix)
			}
		}
	}

	if dsn := strings.TrimSpace(cfg.Store.Postgres.DSN); dsn != "" {
		if kv := buildPostgresKV(cfg, dsn, logger); kv != nil {
			return kv
		}
	}

	logger.Info("using in-memory store")
	return themestore.NewMemoryKV()
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Store.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Store.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Store.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func buildPostgresKV(cfg *config.Config, dsn string, logger *slog.Logger) themestore.KV {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, falling back", "error", err)
		return nil
	}
	if cfg.Store.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Store.Postgres.MaxConns
	}
	if cfg.Store.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Store.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, falling back", "error", err)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	kv := themestore.NewPostgresKV(pool)
	if err := kv.EnsureSchema(ctx); err != nil {
		logger.Error("postgres schema check failed, falling back", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres store enabled")
	return kv
}

func provideCache(kv themestore.KV, logger *slog.Logger) *themestore.Cache {
	return themestore.NewCache(kv, logger)
}

func provideMetrics() *metrics.Registry {
	return metrics.NewRegistry()
}

func provideOpenMeteoClient(cfg *config.Config, reg *metrics.Registry, logger *slog.Logger) *openmeteo.Client {
	return openmeteo.NewClient(cfg.Providers.GeocodingBaseURL, cfg.Providers.ForecastBaseURL, reg, logger)
}

func provideIPClient(cfg *config.Config, reg *metrics.Registry, logger *slog.Logger) *ipapi.Client {
	return ipapi.NewClient(cfg.Providers.IPLookupBaseURL, reg, logger)
}

func provideDeviceLocator(cfg *config.Config) location.DeviceLocator {
	if cfg.Device.Enabled {
		return devicegeo.Static{Coordinates: location.Coordinates{
			Latitude:  cfg.Device.Latitude,
			Longitude: cfg.Device.Longitude,
		}}
	}
	return devicegeo.Disabled{}
}

func provideLocationService(cfg *config.Config, geocoder *openmeteo.Client, ip *ipapi.Client, device location.DeviceLocator, cache *themestore.Cache, logger *slog.Logger) location.Service {
	return location.NewService(location.Config{TTL: cfg.Location.TTL}, geocoder, ip, device, cache, logger)
}

func provideHub(cfg *config.Config, logger *slog.Logger) *httpiface.Hub {
	return httpiface.NewHub(cfg.Location.SearchDebounce, cfg.HTTP.AllowedOrigins, logger)
}

func provideSchedulerFactory(cfg *config.Config, resolver location.Service, sun *openmeteo.Client, cache *themestore.Cache, hub *httpiface.Hub, logger *slog.Logger) func() *theme.Scheduler {
	schedCfg := theme.SchedulerConfig{
		SunTTL:        cfg.Theme.SunDataTTL,
		RetryInterval: cfg.Theme.RetryInterval,
	}
	return func() *theme.Scheduler {
		return theme.NewScheduler(schedCfg, resolver, sun, cache, hub, hub.ApplyTheme, logger)
	}
}

func provideThemeService(cfg *config.Config, cache *themestore.Cache, resolver location.Service, newScheduler func() *theme.Scheduler, hub *httpiface.Hub, logger *slog.Logger) theme.Service {
	mode, _ := theme.ParseMode(cfg.Theme.DefaultMode)
	return theme.NewService(theme.Config{DefaultMode: mode}, cache, resolver, newScheduler, hub.ApplyTheme, logger)
}
