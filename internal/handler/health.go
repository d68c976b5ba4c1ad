package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ecom-admin-proxy/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// OriginSource reports the backend origin currently in effect.
type OriginSource interface {
	Origin() string
}

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	origins OriginSource
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, origins OriginSource, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, origins: origins, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information. The origin is resolved per call.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":       "ok",
		"version":      string(h.version),
		"mode":         h.cfg.Backend.Mode,
		"backend_url":  h.origins.Origin(),
		"backend_path": h.cfg.Backend.PathPrefix,
	})
}
