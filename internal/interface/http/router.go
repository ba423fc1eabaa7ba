package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sundialhq/sundial/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		requestLogger(handler.logger),
		errorHandlingMiddleware(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger),
	)

	router.GET("/healthz", handler.Health)

	api := router.Group("/api/v1")
	{
		api.GET("/theme", handler.CurrentTheme)
		api.PUT("/theme/mode", handler.SetMode)
		api.GET("/locations/search", handler.SearchLocations)
		api.POST("/location", handler.CommitLocation)
		api.POST("/location/ip", handler.ResolveViaIP)
		api.POST("/location/device", handler.ResolveViaDevice)
		api.DELETE("/location", handler.ResetLocation)
		api.GET("/ws", handler.Websocket)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
