// Package retention bounds the screenshot directory by file count and
// file age. The count cap is applied before the age cap, so a recent
// file can still be evicted purely for exceeding max_files; that is
// intended capacity-bound behavior, not a bug.
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	ReasonMaxFiles = "exceeded_max_files"
	ReasonAgeLimit = "exceeded_age_limit"
)

// MetadataDirName is the sidecar directory removed alongside images.
const MetadataDirName = ".metadata"

// FileOutcome records the fate of one file during a cleanup pass.
type FileOutcome struct {
	Path     string  `json:"path"`
	Size     int64   `json:"size"`
	AgeHours float64 `json:"age_hours"`
	Reason   string  `json:"reason,omitempty"`
}

// ErrorEntry records a per-file failure; failures never abort a pass.
type ErrorEntry struct {
	Path      string `json:"path,omitempty"`
	Error     string `json:"error"`
	Operation string `json:"operation"`
}

// Summary reports the full partition of one cleanup pass.
type Summary struct {
	CleanedFiles []FileOutcome `json:"cleaned_files"`
	KeptFiles    []FileOutcome `json:"kept_files"`
	Errors       []ErrorEntry  `json:"errors"`
	TotalCleaned int           `json:"total_cleaned"`
	TotalKept    int           `json:"total_kept"`
	SpaceFreed   int64         `json:"space_freed"`
	SpaceFreedMB float64       `json:"space_freed_mb"`
	DryRun       bool          `json:"dry_run"`
}

type fileEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// Cleanup applies the count cap then the age cap to capture files
// under basePath. With dryRun the same partition is computed on a pure
// read path; nothing is deleted and no space is freed. maxFiles <= 0
// disables the count cap. Cancellation stops deletion at the current
// file; everything already deleted stays reported.
func Cleanup(ctx context.Context, basePath string, maxAge time.Duration, maxFiles int, dryRun bool) Summary {
	summary := Summary{
		CleanedFiles: []FileOutcome{},
		KeptFiles:    []FileOutcome{},
		Errors:       []ErrorEntry{},
		DryRun:       dryRun,
	}

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		slog.Info("cleanup skipped, base path missing", "base_path", basePath)
		return summary
	}

	files, errs := listCaptureFiles(basePath)
	summary.Errors = append(summary.Errors, errs...)

	// Newest first so the count cutoff keeps the most recent files.
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	now := time.Now()
	cutoff := now.Add(-maxAge)

	remaining := files
	if maxFiles > 0 && len(files) > maxFiles {
		remaining = files[:maxFiles]
		for _, f := range files[maxFiles:] {
			if ctx.Err() != nil {
				return cancelled(summary, ctx)
			}
			summary.remove(f, ReasonMaxFiles, dryRun, now)
		}
	}

	for _, f := range remaining {
		if ctx.Err() != nil {
			return cancelled(summary, ctx)
		}
		if f.modTime.Before(cutoff) {
			summary.remove(f, ReasonAgeLimit, dryRun, now)
		} else {
			summary.keep(f, now)
		}
	}

	if !dryRun {
		removeEmptyDirs(basePath)
	}

	summary.finish()
	if summary.TotalCleaned > 0 {
		slog.Info("cleanup pass finished",
			"cleaned", summary.TotalCleaned,
			"kept", summary.TotalKept,
			"space_freed_mb", summary.SpaceFreedMB,
			"dry_run", dryRun,
		)
	}
	return summary
}

func (s *Summary) remove(f fileEntry, reason string, dryRun bool, now time.Time) {
	outcome := FileOutcome{
		Path:     f.path,
		Size:     f.size,
		AgeHours: roundHours(now.Sub(f.modTime)),
		Reason:   reason,
	}

	if !dryRun {
		if err := os.Remove(f.path); err != nil {
			s.Errors = append(s.Errors, ErrorEntry{Path: f.path, Error: err.Error(), Operation: "remove"})
			return
		}
		s.SpaceFreed += f.size
		removeSidecar(f.path)
	}

	s.CleanedFiles = append(s.CleanedFiles, outcome)
}

func (s *Summary) keep(f fileEntry, now time.Time) {
	s.KeptFiles = append(s.KeptFiles, FileOutcome{
		Path:     f.path,
		Size:     f.size,
		AgeHours: roundHours(now.Sub(f.modTime)),
	})
}

func (s *Summary) finish() {
	s.TotalCleaned = len(s.CleanedFiles)
	s.TotalKept = len(s.KeptFiles)
	s.SpaceFreedMB = float64(s.SpaceFreed) / (1024 * 1024)
}

func cancelled(s Summary, ctx context.Context) Summary {
	s.Errors = append(s.Errors, ErrorEntry{Error: ctx.Err().Error(), Operation: "cancelled"})
	s.finish()
	return s
}

// removeSidecar deletes the metadata file paired with an image.
func removeSidecar(imagePath string) {
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	sidecar := filepath.Join(filepath.Dir(imagePath), MetadataDirName, stem+".json")
	if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
		slog.Debug("sidecar removal failed", "path", sidecar, "error", err)
	}
}

func listCaptureFiles(basePath string) ([]fileEntry, []ErrorEntry) {
	var (
		files []fileEntry
		errs  []ErrorEntry
	)
	for _, pattern := range []string{"*.png", "*.jpg", "*.jpeg"} {
		matches, err := filepath.Glob(filepath.Join(basePath, pattern))
		if err != nil {
			errs = append(errs, ErrorEntry{Error: err.Error(), Operation: "glob"})
			continue
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				errs = append(errs, ErrorEntry{Path: m, Error: err.Error(), Operation: "stat"})
				continue
			}
			if info.IsDir() {
				continue
			}
			files = append(files, fileEntry{path: m, size: info.Size(), modTime: info.ModTime()})
		}
	}
	return files, errs
}

// removeEmptyDirs prunes empty subdirectories bottom-up. The metadata
// sidecar directory and the base itself are left alone.
func removeEmptyDirs(basePath string) {
	var dirs []string
	_ = filepath.WalkDir(basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path == basePath || d.Name() == MetadataDirName {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})

	// Deepest first.
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(filepath.Separator)) > strings.Count(dirs[j], string(filepath.Separator))
	})

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			slog.Debug("empty directory removal failed", "path", dir, "error", err)
		}
	}
}

func roundHours(d time.Duration) float64 {
	return float64(int(d.Hours()*100)) / 100
}
