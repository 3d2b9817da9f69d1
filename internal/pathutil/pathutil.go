// Package pathutil generates and validates screenshot paths. Generated
// filenames never embed caller-controlled strings; custom names go
// through SanitizeFilename first.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxPathLen     = 260
	maxBasePathLen = 200
	maxFilenameLen = 100

	defaultFilename = "screenshot"
)

// forbiddenChars are rejected in paths and replaced in filenames.
const forbiddenChars = `<>:"|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// GenerateFilename builds a collision-resistant filename from a fixed
// prefix, a second-resolution timestamp and a short random
// disambiguator.
func GenerateFilename(prefix, format string) string {
	switch format {
	case "png", "jpeg", "jpg":
	default:
		format = "png"
	}
	if prefix == "" {
		prefix = defaultFilename
	}
	return fmt.Sprintf("%s_%d_%s.%s", prefix, time.Now().Unix(), uuid.NewString()[:8], format)
}

// GeneratePath returns a generated filename under the base directory.
func GeneratePath(basePath, format, prefix string) string {
	return filepath.Join(basePath, GenerateFilename(prefix, format))
}

// ValidatePath checks that candidate resolves inside basePath and
// names a plausible image file. Symlinks are resolved where the
// filesystem allows it, so a link pointing outside the base is
// rejected the same way a ".." traversal is.
func ValidatePath(candidate, basePath string) error {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return fmt.Errorf("resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(candidate)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(absBase); err == nil {
		absBase = resolved
	}
	// The candidate usually does not exist yet; resolve its parent.
	if resolvedDir, err := filepath.EvalSymlinks(filepath.Dir(absPath)); err == nil {
		absPath = filepath.Join(resolvedDir, filepath.Base(absPath))
	}

	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside allowed base directory %s", absPath, absBase)
	}

	if len(absPath) > maxPathLen {
		return fmt.Errorf("path too long: %d characters (max %d)", len(absPath), maxPathLen)
	}
	if strings.ContainsAny(absPath, forbiddenChars) {
		return fmt.Errorf("path contains forbidden characters (%s)", forbiddenChars)
	}

	name := filepath.Base(absPath)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("path must include a filename")
	}
	stem := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
	if reservedNames[stem] {
		return fmt.Errorf("filename %q is a reserved device name", name)
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
		return fmt.Errorf("invalid file extension %q, must be .png, .jpg or .jpeg", filepath.Ext(name))
	}

	return nil
}

// SanitizeFilename makes an arbitrary name safe for the filesystem:
// forbidden characters become underscores, leading and trailing dots
// and spaces are stripped, and overlong names are capped while keeping
// a trailing extension fragment. Empty or dot-prefixed results fall
// back to a generic default.
func SanitizeFilename(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenChars+`\/`, r) {
			return '_'
		}
		return r
	}, name)

	sanitized = strings.Trim(sanitized, " .")

	if sanitized == "" {
		return defaultFilename
	}

	if len(sanitized) > maxFilenameLen {
		tail := sanitized[len(sanitized)-10:]
		if !strings.Contains(tail, ".") {
			tail = ""
		}
		sanitized = sanitized[:maxFilenameLen-10] + tail
	}

	if strings.HasPrefix(sanitized, ".") {
		sanitized = defaultFilename + "_" + strings.TrimPrefix(sanitized, ".")
	}

	return sanitized
}

// ValidateBasePath checks the storage root: absolute, length-bounded,
// free of forbidden characters, and provably writable (a probe file is
// created and removed).
func ValidateBasePath(basePath string) error {
	if !filepath.IsAbs(basePath) {
		return fmt.Errorf("base path must be absolute, got %q", basePath)
	}
	if len(basePath) > maxBasePathLen {
		return fmt.Errorf("base path too long: %d characters (max %d)", len(basePath), maxBasePathLen)
	}
	if strings.ContainsAny(basePath, forbiddenChars) {
		return fmt.Errorf("base path contains forbidden characters (%s)", forbiddenChars)
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return fmt.Errorf("create base path %s: %w", basePath, err)
	}

	probe := filepath.Join(basePath, ".write_probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return fmt.Errorf("base path %s is not writable: %w", basePath, err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("remove write probe in %s: %w", basePath, err)
	}

	return nil
}

// EnsureDir creates the directory if needed and proves writability.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	probe := filepath.Join(path, ".write_probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}
	return os.Remove(probe)
}
