// Package watcher pushes out-of-band filesystem changes under the storage
// root to connected browsers, so edits made outside the web UI still
// refresh open listings.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/driftwood/driftwood/internal/config"
	"github.com/driftwood/driftwood/internal/pathutil"
)

const (
	defaultDebounce = 500 * time.Millisecond
	maxBatchSize    = 100
	partialSuffix   = ".part"
)

// Broadcaster defines the interface for sending WebSocket messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// FileEvent is one debounced filesystem event.
type FileEvent struct {
	Path      string    `json:"path"`
	Op        string    `json:"op"` // "create", "write", "remove", "rename"
	Timestamp time.Time `json:"timestamp"`
}

// Service watches the storage root recursively, debounces event bursts,
// and broadcasts one storage:changed per affected directory.
type Service struct {
	root        string
	debounce    time.Duration
	fsWatcher   *fsnotify.Watcher
	broadcaster Broadcaster
	logger      zerolog.Logger

	watched map[string]bool
	pathsMu sync.Mutex

	pending       map[string]FileEvent
	eventsMu      sync.Mutex
	debounceTimer *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher service for the storage root. The watcher is
// best-effort: callers treat a construction error as a degraded mode, not
// a fatal one.
func New(cfg config.WatcherConfig, root string, broadcaster Broadcaster, logger zerolog.Logger) (*Service, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	return &Service{
		root:        root,
		debounce:    debounce,
		fsWatcher:   fsWatcher,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "watcher").Logger(),
		watched:     make(map[string]bool),
		pending:     make(map[string]FileEvent),
		done:        make(chan struct{}),
	}, nil
}

// Start adds watches for the root and every directory below it, then
// begins processing events.
func (s *Service) Start() error {
	if err := s.addRecursive(s.root); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.eventLoop()

	s.logger.Info().Str("root", s.root).Msg("watcher started")
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (s *Service) Stop() error {
	close(s.done)
	s.wg.Wait()
	return s.fsWatcher.Close()
}

// addRecursive watches path and all directories below it.
func (s *Service) addRecursive(path string) error {
	s.pathsMu.Lock()
	defer s.pathsMu.Unlock()

	return filepath.WalkDir(path, func(sub string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if s.watched[sub] {
			return nil
		}
		if err := s.fsWatcher.Add(sub); err != nil {
			s.logger.Warn().Err(err).Str("path", sub).Msg("failed to watch directory")
			return nil
		}
		s.watched[sub] = true
		return nil
	})
}

// eventLoop processes fsnotify events until Stop.
func (s *Service) eventLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			s.flushPending()
			return

		case event, ok := <-s.fsWatcher.Events:
			if !ok {
				return
			}
			s.handleFsEvent(event)

		case err, ok := <-s.fsWatcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

// handleFsEvent converts one fsnotify event into a pending FileEvent and
// keeps the recursive watch set current as directories come and go.
func (s *Service) handleFsEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, partialSuffix) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := s.addRecursive(event.Name); err != nil {
				s.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
			}
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		s.pathsMu.Lock()
		for watched := range s.watched {
			if watched == event.Name || strings.HasPrefix(watched, event.Name+string(filepath.Separator)) {
				s.fsWatcher.Remove(watched)
				delete(s.watched, watched)
			}
		}
		s.pathsMu.Unlock()
	}

	var op string
	switch {
	case event.Has(fsnotify.Create):
		op = "create"
	case event.Has(fsnotify.Write):
		op = "write"
	case event.Has(fsnotify.Remove):
		op = "remove"
	case event.Has(fsnotify.Rename):
		op = "rename"
	default:
		return
	}

	s.addPending(FileEvent{Path: event.Name, Op: op, Timestamp: time.Now()})
}

// addPending adds an event to the batch and resets the debounce timer.
// Rapid events on the same path collapse into one.
func (s *Service) addPending(event FileEvent) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	s.pending[event.Path] = event

	if len(s.pending) >= maxBatchSize {
		s.flushPendingLocked()
		return
	}

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		s.eventsMu.Lock()
		defer s.eventsMu.Unlock()
		s.flushPendingLocked()
	})
}

func (s *Service) flushPending() {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.flushPendingLocked()
}

// flushPendingLocked broadcasts one storage:changed per affected
// directory. Caller must hold eventsMu.
func (s *Service) flushPendingLocked() {
	if len(s.pending) == 0 {
		return
	}

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}

	dirs := make(map[string]bool)
	for _, event := range s.pending {
		dir := filepath.Dir(event.Path)
		if info, err := os.Stat(event.Path); err == nil && info.IsDir() {
			// Changed directory itself: refresh both it and its parent.
			dirs[pathutil.Relative(s.root, event.Path)] = true
		}
		dirs[pathutil.Relative(s.root, dir)] = true
	}
	s.pending = make(map[string]FileEvent)

	if s.broadcaster == nil {
		return
	}
	for dir := range dirs {
		if err := s.broadcaster.Broadcast("storage:changed", map[string]interface{}{
			"path":   dir,
			"action": "external",
		}); err != nil {
			s.logger.Error().Err(err).Str("path", dir).Msg("failed to broadcast change")
		}
	}

	s.logger.Debug().Int("dirs", len(dirs)).Msg("flushed file events")
}
