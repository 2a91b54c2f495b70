package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for health endpoints.
type Handlers struct {
	service *Service
}

// NewHandlers creates new health handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers health routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetReport)
	g.POST("/refresh", h.Refresh)
}

// GetReport returns the cached health report.
// GET /api/v1/health
func (h *Handlers) GetReport(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Report(c.Request().Context()))
}

// Refresh forces a fresh probe of the storage root.
// POST /api/v1/health/refresh
func (h *Handlers) Refresh(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Refresh(c.Request().Context()))
}
