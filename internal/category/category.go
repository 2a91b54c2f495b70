// Package category maps filenames to upload categories by extension and
// owns the upload allow-list check.
package category

import (
	"strings"

	"github.com/driftwood/driftwood/internal/config"
)

// OtherLabel is the fallback category for unrecognized extensions.
const OtherLabel = "Others"

// Classifier decides the category label for a filename and whether its
// extension is allowed for upload. Built once from config, read-only
// afterwards.
type Classifier struct {
	byExt   map[string]string // ".png" -> "Images"
	labels  []string
	allowed map[string]bool // "png" -> true
}

// New builds a Classifier from the storage configuration.
func New(cfg config.StorageConfig) *Classifier {
	c := &Classifier{
		byExt:   make(map[string]string),
		allowed: make(map[string]bool),
	}

	for _, cat := range cfg.Categories {
		c.labels = append(c.labels, cat.Label)
		for _, ext := range cat.Extensions {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if ext == "" {
				continue
			}
			c.byExt["."+ext] = cat.Label
		}
	}
	c.labels = append(c.labels, OtherLabel)

	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext != "" {
			c.allowed[ext] = true
		}
	}

	return c
}

// Classify returns the category label for a filename. Total: every input
// maps to exactly one label, unknown or missing extensions to OtherLabel.
// The compared token is the substring from the last dot, case-insensitive.
func (c *Classifier) Classify(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return OtherLabel
	}

	if label, ok := c.byExt[strings.ToLower(filename[idx:])]; ok {
		return label
	}
	return OtherLabel
}

// Allowed reports whether the filename's extension is in the upload
// allow-list. Independent of the category table: a file may classify as
// Others and still be allowed, or carry a recognized media extension and
// still be rejected.
func (c *Classifier) Allowed(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}

	ext := strings.ToLower(filename[idx+1:])
	if ext == "" {
		return false
	}
	return c.allowed[ext]
}

// Labels returns the category labels in configuration order, with the
// fallback label last.
func (c *Classifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}
