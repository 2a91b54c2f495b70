// Package startup contains boot-time checks that gate the server start.
package startup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures the exponential backoff retry behavior.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Multiplier   float64
}

// DefaultRetryConfig returns the default backoff for waiting on the root.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 2 * time.Second,
		MaxDelay:     1 * time.Minute,
		MaxAttempts:  5,
		Multiplier:   2.0,
	}
}

// WaitForRoot blocks until the storage root exists and is writable, retrying
// with exponential backoff. Transient failures (missing mount, I/O errors)
// retry; permission errors fail immediately. When the root is missing but its
// parent exists, the root is created.
func WaitForRoot(ctx context.Context, path string, cfg RetryConfig, logger zerolog.Logger) error {
	log := logger.With().Str("component", "startup").Logger()

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := ensureRoot(path)
		if err == nil {
			if attempt > 1 {
				log.Info().Str("path", path).Int("attempt", attempt).Msg("storage root became available")
			}
			return nil
		}

		lastErr = err

		if os.IsPermission(err) {
			log.Error().Err(err).Str("path", path).Msg("storage root not accessible, not retrying")
			return err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		log.Warn().
			Err(err).
			Str("path", path).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Dur("nextRetryIn", delay).
			Msg("storage root not ready, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	log.Error().Err(lastErr).Str("path", path).Int("attempts", cfg.MaxAttempts).
		Msg("storage root never became available")
	return fmt.Errorf("storage root %s not available after %d attempts: %w", path, cfg.MaxAttempts, lastErr)
}

// ensureRoot verifies that path is a writable directory, creating it when
// its parent already exists.
func ensureRoot(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("storage root is not a directory: %s", path)
		}
	case os.IsNotExist(err):
		parent := filepath.Dir(path)
		if _, perr := os.Stat(parent); perr != nil {
			return fmt.Errorf("storage root parent not available: %w", perr)
		}
		if merr := os.MkdirAll(path, 0755); merr != nil {
			return fmt.Errorf("failed to create storage root: %w", merr)
		}
	default:
		return fmt.Errorf("cannot stat storage root: %w", err)
	}

	probe := filepath.Join(path, ".driftwood_startup")
	if err := os.WriteFile(probe, []byte("probe"), 0644); err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	return os.Remove(probe)
}
