package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its base directory.
var ErrPathEscape = errors.New("path escapes base directory")

// canonical resolves symlinks in the longest existing prefix of an absolute
// path and re-attaches the non-existent remainder.
func canonical(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest)
		}
		if dir == filepath.Dir(dir) {
			return abs
		}
	}
}

// ValidatePathWithinDirectory reports ErrPathEscape when filePath, after
// cleaning and symlink resolution, is not inside safeDir. safeDir must
// exist.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	dir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(dir, canonical(absPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, filePath, safeDir)
	}
	return nil
}

// ResolveWithin joins a manifest-relative path onto baseDir and checks the
// result stays inside it. Absolute inputs are checked as given.
func ResolveWithin(baseDir, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	full := p
	if !filepath.IsAbs(p) {
		full = filepath.Join(baseDir, p)
	}
	if err := ValidatePathWithinDirectory(full, baseDir); err != nil {
		return "", err
	}
	return full, nil
}

// SanitizeFilename makes a safe filename from an arbitrary identifier such
// as a camera ID. Runs of characters other than ASCII letters, digits, dot,
// underscore and dash become a single underscore; the result is trimmed of
// leading and trailing dots and underscores and capped at 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
