// Package api assembles the HTTP surface: middleware, routes, the WebSocket
// endpoint, and the embedded frontend.
package api

import (
	"context"
	"io/fs"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/driftwood/driftwood/internal/api/middleware"
	"github.com/driftwood/driftwood/internal/config"
	"github.com/driftwood/driftwood/internal/files"
	"github.com/driftwood/driftwood/internal/health"
	"github.com/driftwood/driftwood/internal/scheduler"
	"github.com/driftwood/driftwood/internal/websocket"
)

// Deps holds the services the server exposes over HTTP.
type Deps struct {
	Files     *files.Service
	Health    *health.Service
	Hub       *websocket.Hub
	Scheduler *scheduler.Scheduler
	Logs      LogsProvider
	Frontend  fs.FS
}

// Server handles HTTP requests for the Driftwood API.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger zerolog.Logger
	deps   Deps
}

// New creates a new API server instance.
func New(cfg *config.Config, logger zerolog.Logger, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger.With().Str("component", "api").Logger(),
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// CORS
	origins := s.cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		LogRemoteIP:  true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				event = s.logger.Error()
			case v.Status >= http.StatusBadRequest:
				event = s.logger.Warn()
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("requestId", v.RequestID).
				Str("remoteIp", v.RemoteIP).
				Err(v.Error).
				Msg("request")
			return nil
		},
	}))

	// Upload ceiling
	if s.cfg.Server.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.cfg.Server.BodyLimit))
	}

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// WebSocket upgrades and file downloads go out uncompressed
			if c.Request().Header.Get("Upgrade") == "websocket" {
				return true
			}
			return strings.HasPrefix(c.Request().URL.Path, "/api/v1/files/download")
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Liveness probe for containers
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := s.echo.Group("/api/v1")

	fileHandlers := files.NewHandlers(s.deps.Files, s.logger)
	fileHandlers.RegisterRoutes(api.Group("/files"))

	healthHandlers := health.NewHandlers(s.deps.Health)
	healthHandlers.RegisterRoutes(api.Group("/health"))

	if s.deps.Logs != nil {
		logsHandlers := NewLogsHandlers(s.deps.Logs)
		logsHandlers.RegisterRoutes(api.Group("/logs"))
	}

	s.registerSystemRoutes(api.Group("/system"))

	if s.deps.Hub != nil {
		s.echo.GET("/ws", s.deps.Hub.HandleWebSocket)
	}

	if s.deps.Frontend != nil {
		s.registerFrontend(s.deps.Frontend)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	address := s.cfg.Server.Address()
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
