package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/driftwood/driftwood/internal/config"
)

var startedAt = time.Now()

// registerSystemRoutes wires the system status and task endpoints.
func (s *Server) registerSystemRoutes(g *echo.Group) {
	g.GET("/status", s.getStatus)
	g.GET("/tasks", s.listTasks)
	g.POST("/tasks/:id/run", s.runTask)
}

// getStatus reports build and runtime information.
// GET /api/v1/system/status
func (s *Server) getStatus(c echo.Context) error {
	response := map[string]interface{}{
		"version":    config.Version,
		"startedAt":  startedAt.Format(time.RFC3339),
		"uptime":     time.Since(startedAt).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"root":       s.cfg.Storage.Root,
	}
	if config.Commit != "" {
		response["commit"] = config.Commit
	}
	if config.BuildDate != "" {
		response["buildDate"] = config.BuildDate
	}
	if s.deps.Hub != nil {
		response["wsClients"] = s.deps.Hub.ClientCount()
	}
	return c.JSON(http.StatusOK, response)
}

// listTasks reports the registered background tasks.
// GET /api/v1/system/tasks
func (s *Server) listTasks(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return c.JSON(http.StatusOK, []interface{}{})
	}
	return c.JSON(http.StatusOK, s.deps.Scheduler.ListTasks())
}

// runTask triggers a background task immediately.
// POST /api/v1/system/tasks/:id/run
func (s *Server) runTask(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return echo.NewHTTPError(http.StatusNotFound, "scheduler not available")
	}
	if err := s.deps.Scheduler.RunNow(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}
