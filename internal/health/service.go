// Package health probes the storage root and reports its state: existence,
// writability, and disk headroom on the volume holding it.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/driftwood/driftwood/internal/config"
)

// Broadcaster defines the interface for sending WebSocket messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Service caches the latest health report and re-probes on demand.
type Service struct {
	root           string
	lowDiskPercent float64
	checker        *FilesystemChecker
	broadcaster    Broadcaster
	logger         zerolog.Logger

	mu     sync.RWMutex
	report *Report
}

// NewService creates a new health service for the storage root.
func NewService(cfg config.HealthConfig, root string, logger zerolog.Logger) *Service {
	return &Service{
		root:           root,
		lowDiskPercent: cfg.LowDiskPercent,
		checker:        NewFilesystemChecker(),
		logger:         logger.With().Str("component", "health").Logger(),
	}
}

// SetBroadcaster sets the WebSocket broadcaster for status-change events.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Report returns the cached report, probing first if none exists yet.
func (s *Service) Report(ctx context.Context) *Report {
	s.mu.RLock()
	cached := s.report
	s.mu.RUnlock()

	if cached != nil {
		return cached
	}
	return s.Refresh(ctx)
}

// Refresh re-probes the storage root, caches the result, and broadcasts a
// health:update when the aggregate status changed.
func (s *Service) Refresh(ctx context.Context) *Report {
	report := s.probe()

	s.mu.Lock()
	previous := s.report
	s.report = report
	s.mu.Unlock()

	if previous == nil || previous.Status != report.Status {
		s.logger.Info().
			Str("status", string(report.Status)).
			Msg("storage health status changed")
		s.broadcastUpdate(report)
	}

	return report
}

// probe runs every check against the root and aggregates a report.
func (s *Service) probe() *Report {
	report := &Report{
		Status:    StatusOK,
		CheckedAt: time.Now(),
	}

	accessible := Check{Name: "root accessible", OK: true}
	if err := s.checker.CheckFolderAccessible(s.root); err != nil {
		accessible.OK = false
		accessible.Message = err.Error()
		report.Status = StatusError
	}
	report.Checks = append(report.Checks, accessible)

	writable := Check{Name: "root writable", OK: true}
	if accessible.OK {
		if err := s.checker.CheckFolderWritable(s.root); err != nil {
			writable.OK = false
			writable.Message = err.Error()
			report.Status = StatusError
		}
	} else {
		writable.OK = false
		writable.Message = "skipped: root not accessible"
	}
	report.Checks = append(report.Checks, writable)

	diskCheck := Check{Name: "disk space", OK: true}
	if accessible.OK {
		free, total, err := diskUsage(s.root)
		if err != nil {
			diskCheck.OK = false
			diskCheck.Message = err.Error()
			if report.Status == StatusOK {
				report.Status = StatusWarning
			}
		} else if total > 0 {
			freePercent := float64(free) / float64(total) * 100
			report.Disk = &DiskUsage{
				FreeBytes:   free,
				TotalBytes:  total,
				UsedPercent: 100 - freePercent,
				FreeLabel:   humanize.Bytes(free),
				TotalLabel:  humanize.Bytes(total),
			}
			if freePercent < s.lowDiskPercent {
				diskCheck.OK = false
				diskCheck.Message = fmt.Sprintf("low disk space: %s free of %s (%.1f%%)",
					humanize.Bytes(free), humanize.Bytes(total), freePercent)
				if report.Status == StatusOK {
					report.Status = StatusWarning
				}
			}
		}
	} else {
		diskCheck.OK = false
		diskCheck.Message = "skipped: root not accessible"
	}
	report.Checks = append(report.Checks, diskCheck)

	return report
}

// broadcastUpdate pushes the new report to connected clients.
func (s *Service) broadcastUpdate(report *Report) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast("health:update", report); err != nil {
		s.logger.Error().Err(err).Msg("failed to broadcast health update")
	}
}
