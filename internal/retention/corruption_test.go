package retention

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func pngBytes(size int) []byte {
	buf := bytes.NewBuffer(pngMagic)
	buf.Write(bytes.Repeat([]byte{0}, size-len(pngMagic)))
	return buf.Bytes()
}

func jpegBytes(size int) []byte {
	buf := bytes.NewBuffer(jpegMagic)
	buf.Write(bytes.Repeat([]byte{0}, size-len(jpegMagic)))
	return buf.Bytes()
}

func TestSweepCorruptedRemovesBadMagic(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "good.png", pngBytes(512), time.Minute)
	writeAged(t, dir, "good.jpg", jpegBytes(512), time.Minute)
	writeAged(t, dir, "bad.png", jpegBytes(512), time.Minute)

	summary := SweepCorrupted(dir)

	if summary.TotalCorrupted != 1 || summary.TotalValid != 2 {
		t.Fatalf("corrupted=%d valid=%d; want 1/2", summary.TotalCorrupted, summary.TotalValid)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.png")); !os.IsNotExist(err) {
		t.Fatal("bad.png should be deleted")
	}
	if summary.CorruptedFiles[0].Reasons[0] != "invalid_png_header" {
		t.Fatalf("reasons = %v; want invalid_png_header", summary.CorruptedFiles[0].Reasons)
	}
}

func TestSweepCorruptedSizeBounds(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "empty.png", nil, time.Minute)
	writeAged(t, dir, "tiny.jpeg", jpegBytes(20), time.Minute)
	writeAged(t, dir, "ok.png", pngBytes(512), time.Minute)

	summary := SweepCorrupted(dir)

	if summary.TotalCorrupted != 2 {
		t.Fatalf("TotalCorrupted = %d; want 2", summary.TotalCorrupted)
	}
	reasons := map[string]bool{}
	for _, f := range summary.CorruptedFiles {
		for _, r := range f.Reasons {
			reasons[r] = true
		}
	}
	if !reasons["empty_file"] || !reasons["file_too_small"] {
		t.Fatalf("reasons = %v; want empty_file and file_too_small", reasons)
	}
}

func TestStatsBreakdown(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "a.png", pngBytes(200), 30*time.Minute)
	writeAged(t, dir, "b.png", pngBytes(400), 5*time.Hour)
	writeAged(t, dir, "c.jpeg", jpegBytes(600), 10*24*time.Hour)

	stats := Stats(dir)

	if stats.TotalFiles != 3 {
		t.Fatalf("TotalFiles = %d; want 3", stats.TotalFiles)
	}
	if stats.TotalSize != 1200 {
		t.Fatalf("TotalSize = %d; want 1200", stats.TotalSize)
	}
	if stats.ByFormat["png"].Count != 2 || stats.ByFormat["jpeg"].Count != 1 {
		t.Fatalf("format breakdown wrong: %+v", stats.ByFormat)
	}
	if stats.ByAge.LastHour != 1 || stats.ByAge.LastDay != 1 || stats.ByAge.LastMonth != 1 {
		t.Fatalf("age histogram wrong: %+v", stats.ByAge)
	}
	if stats.OldestFile == nil || filepath.Base(stats.OldestFile.Path) != "c.jpeg" {
		t.Fatalf("oldest file wrong: %+v", stats.OldestFile)
	}
	if stats.NewestFile == nil || filepath.Base(stats.NewestFile.Path) != "a.png" {
		t.Fatalf("newest file wrong: %+v", stats.NewestFile)
	}
}

func TestStatsEmptyDir(t *testing.T) {
	stats := Stats(t.TempDir())
	if stats.TotalFiles != 0 || stats.OldestFile != nil {
		t.Fatalf("empty dir stats should be zero: %+v", stats)
	}
}
