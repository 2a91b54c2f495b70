package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftwood/driftwood/internal/config"
	"github.com/driftwood/driftwood/internal/files"
	"github.com/driftwood/driftwood/internal/scheduler"
)

// PartialSweepTask removes orphaned upload temp files left behind by
// interrupted uploads.
type PartialSweepTask struct {
	service *files.Service
	maxAge  time.Duration
	logger  zerolog.Logger
}

// NewPartialSweepTask creates a new partial sweep task.
func NewPartialSweepTask(service *files.Service, maxAge time.Duration, logger zerolog.Logger) *PartialSweepTask {
	return &PartialSweepTask{
		service: service,
		maxAge:  maxAge,
		logger:  logger.With().Str("task", "partial-sweep").Logger(),
	}
}

// Run executes the partial sweep.
func (t *PartialSweepTask) Run(ctx context.Context) error {
	removed, err := t.service.SweepPartials(ctx, t.maxAge)
	if err != nil {
		t.logger.Error().Err(err).Msg("partial sweep failed")
		return err
	}

	if removed > 0 {
		t.logger.Info().Int("removed", removed).Msg("removed orphaned partial files")
	}
	return nil
}

// RegisterPartialSweepTask registers the partial sweep task with the scheduler.
func RegisterPartialSweepTask(
	sched *scheduler.Scheduler,
	service *files.Service,
	cfg config.SchedulerConfig,
	storageCfg config.StorageConfig,
	logger zerolog.Logger,
) error {
	interval := cfg.PartialSweepInterval
	if interval == 0 {
		interval = 6 * time.Hour
	}
	maxAge := storageCfg.PartialMaxAge
	if maxAge == 0 {
		maxAge = 24 * time.Hour
	}

	task := NewPartialSweepTask(service, maxAge, logger)

	cronExpr := fmt.Sprintf("@every %s", interval.String())

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "partial-sweep",
		Name:        "Partial Upload Sweep",
		Description: "Removes orphaned temp files from interrupted uploads",
		Cron:        cronExpr,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
