package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftwood/driftwood/internal/config"
	"github.com/driftwood/driftwood/internal/health"
	"github.com/driftwood/driftwood/internal/scheduler"
)

// StorageHealthTask re-probes the storage root on a schedule.
type StorageHealthTask struct {
	service *health.Service
	logger  zerolog.Logger
}

// NewStorageHealthTask creates a new storage health check task.
func NewStorageHealthTask(service *health.Service, logger zerolog.Logger) *StorageHealthTask {
	return &StorageHealthTask{
		service: service,
		logger:  logger.With().Str("task", "storage-health").Logger(),
	}
}

// Run executes the storage health check.
func (t *StorageHealthTask) Run(ctx context.Context) error {
	report := t.service.Refresh(ctx)
	t.logger.Debug().
		Str("status", string(report.Status)).
		Msg("storage health check completed")
	return nil
}

// RegisterStorageHealthTask registers the storage health check task with the scheduler.
func RegisterStorageHealthTask(
	sched *scheduler.Scheduler,
	service *health.Service,
	cfg config.HealthConfig,
	logger zerolog.Logger,
) error {
	task := NewStorageHealthTask(service, logger)

	interval := cfg.CheckInterval
	if interval == 0 {
		interval = 15 * time.Minute
	}

	// Convert interval to cron expression using @every directive
	cronExpr := fmt.Sprintf("@every %s", interval.String())

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "storage-health",
		Name:        "Storage Health Check",
		Description: "Probes the storage root and disk space on its volume",
		Cron:        cronExpr,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
