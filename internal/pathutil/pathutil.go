// Package pathutil confines untrusted request paths to a fixed root and
// reduces untrusted filenames to safe path segments. Every request entry
// point resolves its raw input through this package before touching the
// filesystem.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Errors returned by the path guard
var (
	ErrPathEscapesRoot = errors.New("path escapes the storage root")
	ErrEmptyName       = errors.New("filename is empty after sanitization")
)

// Resolve joins a user-supplied relative path onto root and returns the
// canonical absolute path, or ErrPathEscapesRoot when the resolved target
// is not root itself or a descendant of root.
//
// The check canonicalizes both sides (cleaning dot segments and following
// symlinks, including symlinks in not-yet-existing targets' ancestors) and
// compares with a separator-aware prefix test, so a sibling like
// "/data/upload2" is never accepted for root "/data/upload".
func Resolve(root, relative string) (string, error) {
	if hasDotDotSegment(relative) {
		return "", ErrPathEscapesRoot
	}

	canonRoot, err := canonicalize(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %q: %w", root, err)
	}

	joined := filepath.Join(canonRoot, filepath.FromSlash(relative))

	canon, err := canonicalize(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", relative, err)
	}

	if canon != canonRoot && !strings.HasPrefix(canon, canonRoot+string(filepath.Separator)) {
		return "", ErrPathEscapesRoot
	}

	return canon, nil
}

// Relative converts a guard-approved absolute path back to the
// slash-separated relative form used in URLs. Root itself maps to "".
func Relative(root, abs string) string {
	canonRoot, err := canonicalize(root)
	if err != nil {
		return ""
	}

	rel, err := filepath.Rel(canonRoot, abs)
	if err != nil || rel == "." {
		return ""
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// SanitizeName reduces an untrusted filename to a single safe path segment:
// directory components and drive qualifiers are stripped, unsafe characters
// are replaced with underscores, and leading dots are removed. An empty
// result is an error.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)

	// Keep only the base name, whichever separator style the client used.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		safe := r == '.' || r == '-' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		switch {
		case safe:
			b.WriteRune(r)
			lastUnderscore = false
		case lastUnderscore:
			// collapse runs of replaced characters
		default:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	cleaned := strings.TrimLeft(b.String(), "._")
	cleaned = strings.TrimRight(cleaned, "._")
	if cleaned == "" {
		return "", ErrEmptyName
	}
	return cleaned, nil
}

// hasDotDotSegment reports whether the raw input contains a ".." path
// segment under either separator style. A cheap first gate; the canonical
// prefix check in Resolve remains the real boundary.
func hasDotDotSegment(p string) bool {
	for _, seg := range strings.FieldsFunc(p, isSeparator) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// canonicalize returns the absolute, symlink-resolved form of path. When
// the leaf does not exist yet, the deepest existing ancestor is resolved
// and the remaining segments are rejoined, so paths about to be created
// are still validated against the real directory tree.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// Walk up to the deepest existing ancestor.
	var tail []string
	cur := abs
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent

		resolved, err = filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}
