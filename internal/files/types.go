package files

import (
	"errors"
	"io"
	"os"
	"time"
)

// Errors returned by the files service
var (
	ErrNotFound            = errors.New("path does not exist")
	ErrNotDirectory        = errors.New("path is not a directory")
	ErrIsDirectory         = errors.New("path is a directory")
	ErrAlreadyExists       = errors.New("target already exists")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrNoFiles             = errors.New("no files in upload")
	ErrRootImmutable       = errors.New("storage root cannot be deleted")
)

// DirectoryEntry represents a single child in a directory listing.
// Derived fresh on every request, never cached.
type DirectoryEntry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"` // slash-relative to the storage root
	IsDir     bool      `json:"isDir"`
	Size      int64     `json:"size,omitempty"`
	SizeLabel string    `json:"sizeLabel,omitempty"`
	ModTime   time.Time `json:"modTime"`
	Modified  string    `json:"modified"` // display form, e.g. "2026-01-02 15:04"
}

// Breadcrumb is one segment of the trail from the root to the current
// directory.
type Breadcrumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// BrowseResult contains the result of listing a directory.
type BrowseResult struct {
	Path        string           `json:"path"`
	Parent      string           `json:"parent"`
	Breadcrumbs []Breadcrumb     `json:"breadcrumbs"`
	Entries     []DirectoryEntry `json:"entries"`
}

// UploadItem is one (filename, byte stream) pair from a multipart request.
// The name is untrusted input.
type UploadItem struct {
	Name   string
	Reader io.Reader
}

// SavedFile describes one successfully stored upload.
type SavedFile struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Path     string `json:"path"`
}

// RejectedFile names an upload that was skipped and why.
type RejectedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadSummary aggregates a batch upload. One rejected file never aborts
// the rest of the batch; the summary reports both sides.
type UploadSummary struct {
	Message  string         `json:"message"`
	Saved    []SavedFile    `json:"saved"`
	Rejected []RejectedFile `json:"rejected"`
	Redirect string         `json:"redirect"`
}

// Download carries an open file ready for streaming. The caller owns
// closing File.
type Download struct {
	File    *os.File
	Name    string // sanitized base name for the attachment header
	Size    int64
	ModTime time.Time
}

// CategoryCount is the per-category slice of the storage stats.
type CategoryCount struct {
	Label     string `json:"label"`
	Files     int64  `json:"files"`
	Bytes     int64  `json:"bytes"`
	SizeLabel string `json:"sizeLabel"`
}

// StorageStats summarizes the managed tree.
type StorageStats struct {
	TotalFiles int64           `json:"totalFiles"`
	TotalDirs  int64           `json:"totalDirs"`
	TotalBytes int64           `json:"totalBytes"`
	SizeLabel  string          `json:"sizeLabel"`
	Categories []CategoryCount `json:"categories"`
}
