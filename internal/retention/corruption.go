package retention

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	minPlausibleSize = 100
	maxPlausibleSize = 100 * 1024 * 1024
)

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// CorruptFile describes a file removed by the corruption sweep.
type CorruptFile struct {
	Path    string   `json:"path"`
	Size    int64    `json:"size"`
	Reasons []string `json:"corruption_reasons"`
}

// SweepSummary reports the outcome of one corruption sweep.
type SweepSummary struct {
	CorruptedFiles []CorruptFile `json:"corrupted_files"`
	ValidFiles     []string      `json:"valid_files"`
	Errors         []ErrorEntry  `json:"errors"`
	TotalCorrupted int           `json:"total_corrupted"`
	TotalValid     int           `json:"total_valid"`
}

// SweepCorrupted deletes structurally broken image files: empty,
// implausibly small, over 100MB, or carrying the wrong magic bytes for
// their extension. It is independent of the age and count policies.
func SweepCorrupted(basePath string) SweepSummary {
	summary := SweepSummary{
		CorruptedFiles: []CorruptFile{},
		ValidFiles:     []string{},
		Errors:         []ErrorEntry{},
	}

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		return summary
	}

	files, errs := listCaptureFiles(basePath)
	summary.Errors = append(summary.Errors, errs...)

	for _, f := range files {
		reasons := inspect(f)
		if len(reasons) == 0 {
			summary.ValidFiles = append(summary.ValidFiles, f.path)
			continue
		}

		if err := os.Remove(f.path); err != nil {
			summary.Errors = append(summary.Errors, ErrorEntry{Path: f.path, Error: err.Error(), Operation: "remove_corrupted"})
			continue
		}
		removeSidecar(f.path)
		summary.CorruptedFiles = append(summary.CorruptedFiles, CorruptFile{Path: f.path, Size: f.size, Reasons: reasons})
		slog.Warn("removed corrupted screenshot", "path", f.path, "reasons", reasons)
	}

	summary.TotalCorrupted = len(summary.CorruptedFiles)
	summary.TotalValid = len(summary.ValidFiles)
	return summary
}

func inspect(f fileEntry) []string {
	var reasons []string

	switch {
	case f.size == 0:
		reasons = append(reasons, "empty_file")
	case f.size < minPlausibleSize:
		reasons = append(reasons, "file_too_small")
	case f.size > maxPlausibleSize:
		reasons = append(reasons, "file_too_large")
	}

	header := make([]byte, 10)
	file, err := os.Open(f.path)
	if err != nil {
		return append(reasons, "unreadable_file")
	}
	n, _ := file.Read(header)
	_ = file.Close()
	header = header[:n]

	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".png":
		if !bytes.HasPrefix(header, pngMagic) {
			reasons = append(reasons, "invalid_png_header")
		}
	case ".jpg", ".jpeg":
		if !bytes.HasPrefix(header, jpegMagic) {
			reasons = append(reasons, "invalid_jpeg_header")
		}
	}

	return reasons
}
