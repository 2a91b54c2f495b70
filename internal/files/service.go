package files

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftwood/driftwood/internal/category"
	"github.com/driftwood/driftwood/internal/config"
	"github.com/driftwood/driftwood/internal/pathutil"
)

const partialSuffix = ".part"

// Broadcaster defines the interface for sending WebSocket messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Service performs all filesystem operations on the managed root. Every
// operation re-resolves the raw request path through the confinement guard
// before touching the filesystem.
type Service struct {
	root        string
	classifier  *category.Classifier
	logger      zerolog.Logger
	broadcaster Broadcaster
}

// NewService creates a new files service for the configured storage root.
func NewService(cfg config.StorageConfig, classifier *category.Classifier, logger zerolog.Logger) *Service {
	return &Service{
		root:       cfg.Root,
		classifier: classifier,
		logger:     logger.With().Str("component", "files").Logger(),
	}
}

// SetBroadcaster sets the WebSocket broadcaster for change events.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Root returns the configured storage root path.
func (s *Service) Root() string {
	return s.root
}

// List returns the immediate children of the directory at relPath.
// Directories sort before files; within each group names sort
// case-insensitively, ties broken by byte order.
func (s *Service) List(ctx context.Context, relPath string) (*BrowseResult, error) {
	abs, err := pathutil.Resolve(s.root, relPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", relPath, err)
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	children, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", relPath, err)
	}

	rel := pathutil.Relative(s.root, abs)

	entries := make([]DirectoryEntry, 0, len(children))
	for _, child := range children {
		if strings.HasSuffix(child.Name(), partialSuffix) {
			continue
		}

		ci, err := child.Info()
		if err != nil {
			s.logger.Warn().Err(err).Str("name", child.Name()).Msg("skipping unreadable entry")
			continue
		}

		entry := DirectoryEntry{
			Name:     child.Name(),
			Path:     path.Join(rel, child.Name()),
			IsDir:    child.IsDir(),
			ModTime:  ci.ModTime(),
			Modified: ci.ModTime().Format("2006-01-02 15:04"),
		}
		if !child.IsDir() {
			entry.Size = ci.Size()
			entry.SizeLabel = humanize.Bytes(uint64(ci.Size()))
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		li, lj := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
		if li != lj {
			return li < lj
		}
		return entries[i].Name < entries[j].Name
	})

	return &BrowseResult{
		Path:        rel,
		Parent:      parentPath(rel),
		Breadcrumbs: breadcrumbs(rel),
		Entries:     entries,
	}, nil
}

// Save stores one uploaded file under Root/<Category>, creating the
// category folder on first use. The destination is always a category folder
// directly under the root, regardless of the directory being browsed.
// An existing file of the same name is overwritten.
func (s *Service) Save(ctx context.Context, item UploadItem) (*SavedFile, error) {
	if !s.classifier.Allowed(item.Name) {
		return nil, fmt.Errorf("%q: %w", item.Name, ErrExtensionNotAllowed)
	}

	name, err := pathutil.SanitizeName(item.Name)
	if err != nil {
		return nil, err
	}

	label := s.classifier.Classify(name)

	destDir, err := pathutil.Resolve(s.root, label)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create category folder %q: %w", label, err)
	}

	// Stream into a temp name first so a failed upload never leaves a
	// half-written destination file.
	tmpPath := filepath.Join(destDir, fmt.Sprintf("%s.%s%s", name, uuid.New().String()[:8], partialSuffix))
	finalPath := filepath.Join(destDir, name)

	tmp, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, item.Reader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close %q: %w", name, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("finalize %q: %w", name, err)
	}

	saved := &SavedFile{
		Name:     name,
		Category: label,
		Path:     path.Join(label, name),
	}

	s.logger.Info().Str("name", name).Str("category", label).Msg("file saved")
	s.notifyChange(label, "upload", name)

	return saved, nil
}

// Delete removes the file or directory at relPath. Directories are removed
// recursively. The storage root itself cannot be deleted. Returns the
// parent relative path as the redirect target.
func (s *Service) Delete(ctx context.Context, relPath string) (string, error) {
	abs, err := pathutil.Resolve(s.root, relPath)
	if err != nil {
		return "", err
	}

	rel := pathutil.Relative(s.root, abs)
	if rel == "" {
		return "", ErrRootImmutable
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat %q: %w", relPath, err)
	}

	if info.IsDir() {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return "", fmt.Errorf("delete %q: %w", relPath, err)
	}

	parent := parentPath(rel)

	s.logger.Info().Str("path", rel).Bool("dir", info.IsDir()).Msg("deleted")
	s.notifyChange(parent, "delete", path.Base(rel))

	return parent, nil
}

// CreateFolder creates exactly one new directory under the parent.
// Unlike Save's lazy category creation this is non-idempotent: an existing
// target is an error.
func (s *Service) CreateFolder(ctx context.Context, parentRel, name string) error {
	cleaned, err := pathutil.SanitizeName(name)
	if err != nil {
		return err
	}

	parentAbs, err := pathutil.Resolve(s.root, parentRel)
	if err != nil {
		return err
	}

	info, err := os.Stat(parentAbs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stat parent %q: %w", parentRel, err)
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	target := filepath.Join(parentAbs, cleaned)
	if err := os.Mkdir(target, 0755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%q: %w", cleaned, ErrAlreadyExists)
		}
		return fmt.Errorf("create folder %q: %w", cleaned, err)
	}

	parent := pathutil.Relative(s.root, parentAbs)

	s.logger.Info().Str("parent", parent).Str("name", cleaned).Msg("folder created")
	s.notifyChange(parent, "mkdir", cleaned)

	return nil
}

// Open opens the file at relPath for streaming back to the client.
// The caller owns closing the returned file.
func (s *Service) Open(ctx context.Context, relPath string) (*Download, error) {
	abs, err := pathutil.Resolve(s.root, relPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", relPath, err)
	}
	if info.IsDir() {
		return nil, ErrIsDirectory
	}

	name, err := pathutil.SanitizeName(filepath.Base(abs))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", relPath, err)
	}

	return &Download{
		File:    f,
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Stats walks the managed tree and summarizes it: total counts plus
// per-category file counts for the well-known top-level category folders.
func (s *Service) Stats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}
	perCategory := make(map[string]*CategoryCount)
	for _, label := range s.classifier.Labels() {
		perCategory[label] = &CategoryCount{Label: label}
	}

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn().Err(err).Str("path", p).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == s.root {
			return nil
		}
		if strings.HasSuffix(d.Name(), partialSuffix) {
			return nil
		}

		if d.IsDir() {
			stats.TotalDirs++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		stats.TotalFiles++
		stats.TotalBytes += info.Size()

		rel := pathutil.Relative(s.root, p)
		if top, _, found := strings.Cut(rel, "/"); found {
			if count, ok := perCategory[top]; ok {
				count.Files++
				count.Bytes += info.Size()
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk storage root: %w", err)
	}

	stats.SizeLabel = humanize.Bytes(uint64(stats.TotalBytes))
	for _, label := range s.classifier.Labels() {
		count := perCategory[label]
		count.SizeLabel = humanize.Bytes(uint64(count.Bytes))
		stats.Categories = append(stats.Categories, *count)
	}

	return stats, nil
}

// SweepPartials removes upload temp files older than the cutoff anywhere
// under the root. Returns the number of files removed.
func (s *Service) SweepPartials(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), partialSuffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(p); err != nil {
			s.logger.Warn().Err(err).Str("path", p).Msg("failed to remove stale partial")
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep partials: %w", err)
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("swept stale partial uploads")
	}
	return removed, nil
}

// notifyChange broadcasts a storage change and a matching activity event.
func (s *Service) notifyChange(dirRel, action, name string) {
	if s.broadcaster == nil {
		return
	}

	if err := s.broadcaster.Broadcast("storage:changed", map[string]interface{}{
		"path":   dirRel,
		"action": action,
		"name":   name,
	}); err != nil {
		s.logger.Error().Err(err).Msg("failed to broadcast storage change")
	}

	_ = s.broadcaster.Broadcast("activity:event", map[string]interface{}{
		"action": action,
		"name":   name,
		"path":   dirRel,
	})
}

// parentPath returns the slash-relative parent of a slash-relative path.
// The root's parent is the root itself.
func parentPath(rel string) string {
	if rel == "" {
		return ""
	}
	parent := path.Dir(rel)
	if parent == "." {
		return ""
	}
	return parent
}

// breadcrumbs builds the trail from the root to rel, root included.
func breadcrumbs(rel string) []Breadcrumb {
	crumbs := []Breadcrumb{{Name: "Home", Path: ""}}
	if rel == "" {
		return crumbs
	}

	cur := ""
	for _, seg := range strings.Split(rel, "/") {
		cur = path.Join(cur, seg)
		crumbs = append(crumbs, Breadcrumb{Name: seg, Path: cur})
	}
	return crumbs
}
