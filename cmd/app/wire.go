//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/sundialhq/sundial/internal/bootstrap"
	"github.com/sundialhq/sundial/internal/infra/config"
	httpiface "github.com/sundialhq/sundial/internal/interface/http"
	"github.com/sundialhq/sundial/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideKV,
		provideCache,
		provideMetrics,
		provideOpenMeteoClient,
		provideIPClient,
		provideDeviceLocator,
		provideLocationService,
		provideHub,
		provideSchedulerFactory,
		provideThemeService,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
