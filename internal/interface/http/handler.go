package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sundialhq/sundial/internal/domain/location"
	"github.com/sundialhq/sundial/internal/domain/theme"
	"github.com/sundialhq/sundial/pkg/metrics"
)

// Handler wires the HTTP transport to the theme and location domains.
type Handler struct {
	themeSvc theme.Service
	locSvc   location.Service
	hub      *Hub
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// NewHandler constructs the root HTTP handler and binds the hub to the
// services it relays for.
func NewHandler(themeSvc theme.Service, locSvc location.Service, hub *Hub, reg *metrics.Registry, logger *slog.Logger) *Handler {
	hub.Bind(themeSvc, locSvc)
	return &Handler{
		themeSvc: themeSvc,
		locSvc:   locSvc,
		hub:      hub,
		metrics:  reg,
		logger:   logger.With("component", "http.handler"),
	}
}

// Health reports liveness and upstream provider call counters.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "providers": h.metrics.Snapshot()})
}

// CurrentTheme returns the active mode, derived state and location label.
func (h *Handler) CurrentTheme(c *gin.Context) {
	status, err := h.themeSvc.Current(c.Request.Context())
	if err != nil {
		abortWithError(c, domainHTTPError(err, "unable to read theme state"))
		return
	}
	c.JSON(http.StatusOK, status)
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

// SetMode selects a theme mode; selecting natural starts the scheduler.
func (h *Handler) SetMode(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	mode, ok := theme.ParseMode(req.Mode)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "unknown theme mode", nil))
		return
	}

	status, err := h.themeSvc.SetMode(c.Request.Context(), mode)
	if err != nil {
		abortWithError(c, domainHTTPError(err, "unable to set theme mode"))
		return
	}
	c.JSON(http.StatusOK, status)
}

// SearchLocations returns candidates for a place-name query, nearest
// first when an IP location is available.
func (h *Handler) SearchLocations(c *gin.Context) {
	results, err := h.locSvc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		abortWithError(c, domainHTTPError(err, "unable to search locations"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": results})
}

// CommitLocation persists a location the client chose (search candidate
// or a browser-acquired device fix).
func (h *Handler) CommitLocation(c *gin.Context) {
	var raw location.Location
	if err := c.ShouldBindJSON(&raw); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	committed, err := h.themeSvc.SelectLocation(c.Request.Context(), raw)
	if err != nil {
		abortWithError(c, domainHTTPError(err, "failed to update location"))
		return
	}
	c.JSON(http.StatusOK, committed)
}

// ResolveViaIP runs the IP acquisition strategy and commits the result.
func (h *Handler) ResolveViaIP(c *gin.Context) {
	committed, err := h.themeSvc.ResolveViaIP(c.Request.Context())
	if err != nil {
		abortWithError(c, domainHTTPError(err, "unable to resolve location from network address"))
		return
	}
	c.JSON(http.StatusOK, committed)
}

// ResolveViaDevice runs the host device acquisition strategy and commits
// the result.
func (h *Handler) ResolveViaDevice(c *gin.Context) {
	committed, err := h.themeSvc.ResolveViaDevice(c.Request.Context())
	if err != nil {
		abortWithError(c, domainHTTPError(err, "unable to resolve device position"))
		return
	}
	c.JSON(http.StatusOK, committed)
}

// ResetLocation clears the stored location and sun series.
func (h *Handler) ResetLocation(c *gin.Context) {
	if err := h.themeSvc.ResetLocation(c.Request.Context()); err != nil {
		abortWithError(c, domainHTTPError(err, "unable to reset location"))
		return
	}
	c.Status(http.StatusNoContent)
}

// Websocket hands the connection to the hub.
func (h *Handler) Websocket(c *gin.Context) {
	h.hub.Serve(c)
}

func errMessage(err error) string {
	if err == nil {
		return "invalid request"
	}
	return err.Error()
}
