package health

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FilesystemChecker probes a directory for accessibility and writability.
type FilesystemChecker struct{}

// NewFilesystemChecker creates a new filesystem checker.
func NewFilesystemChecker() *FilesystemChecker {
	return &FilesystemChecker{}
}

// CheckFolderAccessible verifies that a path exists and is a directory.
func (c *FilesystemChecker) CheckFolderAccessible(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied: %s", path)
		}
		return fmt.Errorf("cannot access path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// CheckFolderWritable verifies that a directory is writable by creating,
// writing, and removing a uniquely-named probe file.
func (c *FilesystemChecker) CheckFolderWritable(path string) error {
	probeName := fmt.Sprintf(".driftwood_probe_%s", uuid.New().String()[:8])
	probePath := filepath.Join(path, probeName)

	file, err := os.Create(probePath)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("folder is read-only: %s", path)
		}
		return fmt.Errorf("cannot write to folder: %w", err)
	}

	if _, err := file.Write([]byte("probe")); err != nil {
		file.Close()
		os.Remove(probePath)
		return fmt.Errorf("cannot write data: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(probePath)
		return fmt.Errorf("cannot close probe file: %w", err)
	}

	if err := os.Remove(probePath); err != nil {
		return fmt.Errorf("cannot remove probe file: %w", err)
	}

	return nil
}

// CheckFolderHealth combines accessibility and writability checks.
// Returns (ok, message) where message describes the issue if not ok.
func (c *FilesystemChecker) CheckFolderHealth(path string) (bool, string) {
	if err := c.CheckFolderAccessible(path); err != nil {
		return false, err.Error()
	}
	if err := c.CheckFolderWritable(path); err != nil {
		return false, err.Error()
	}
	return true, ""
}
