package retention

import (
	"os"
	"sort"
	"strings"
	"time"
)

// FormatStats breaks files down by image format.
type FormatStats struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

// AgeBuckets is the age histogram used for reporting.
type AgeBuckets struct {
	LastHour  int `json:"last_hour"`
	LastDay   int `json:"last_day"`
	LastWeek  int `json:"last_week"`
	LastMonth int `json:"last_month"`
	Older     int `json:"older"`
}

// FileAge names a file with its age for the oldest/newest summary.
type FileAge struct {
	Path     string  `json:"path"`
	AgeHours float64 `json:"age_hours"`
}

// DirStats summarizes the capture directory. It performs no mutation.
type DirStats struct {
	TotalFiles  int                    `json:"total_files"`
	TotalSize   int64                  `json:"total_size"`
	TotalSizeMB float64                `json:"total_size_mb"`
	AverageSize float64                `json:"average_size"`
	ByFormat    map[string]FormatStats `json:"by_format"`
	ByAge       AgeBuckets             `json:"by_age"`
	OldestFile  *FileAge               `json:"oldest_file,omitempty"`
	NewestFile  *FileAge               `json:"newest_file,omitempty"`
}

// Stats scans basePath and reports file count, sizes, format breakdown
// and an age histogram.
func Stats(basePath string) DirStats {
	stats := DirStats{ByFormat: map[string]FormatStats{}}

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		return stats
	}

	files, _ := listCaptureFiles(basePath)
	if len(files) == 0 {
		return stats
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	now := time.Now()
	for _, f := range files {
		stats.TotalSize += f.size

		format := strings.TrimPrefix(strings.ToLower(extOf(f.path)), ".")
		fs := stats.ByFormat[format]
		fs.Count++
		fs.Size += f.size
		stats.ByFormat[format] = fs

		switch age := now.Sub(f.modTime); {
		case age < time.Hour:
			stats.ByAge.LastHour++
		case age < 24*time.Hour:
			stats.ByAge.LastDay++
		case age < 7*24*time.Hour:
			stats.ByAge.LastWeek++
		case age < 30*24*time.Hour:
			stats.ByAge.LastMonth++
		default:
			stats.ByAge.Older++
		}
	}

	stats.TotalFiles = len(files)
	stats.TotalSizeMB = float64(stats.TotalSize) / (1024 * 1024)
	stats.AverageSize = float64(stats.TotalSize) / float64(len(files))
	oldest, newest := files[0], files[len(files)-1]
	stats.OldestFile = &FileAge{Path: oldest.path, AgeHours: roundHours(now.Sub(oldest.modTime))}
	stats.NewestFile = &FileAge{Path: newest.path, AgeHours: roundHours(now.Sub(newest.modTime))}
	return stats
}

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}
