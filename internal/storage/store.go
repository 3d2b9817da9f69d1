// Package storage keeps JSON metadata sidecars next to captured
// screenshots. Images live directly under the base directory; their
// sidecars live in a .metadata subdirectory keyed by the filename stem.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MetadataDirName is where sidecar files are kept.
const MetadataDirName = ".metadata"

var imageExtensions = []string{".png", ".jpg", ".jpeg"}

// Entry describes one stored screenshot.
type Entry struct {
	Identifier string         `json:"identifier"`
	Path       string         `json:"path"`
	Size       int64          `json:"size"`
	Modified   float64        `json:"modified"`
	Format     string         `json:"format"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Store manages screenshot files and metadata sidecars on disk.
type Store struct {
	basePath    string
	metadataDir string
	sidecars    bool
	mu          sync.RWMutex
}

// NewStore creates a Store rooted at basePath and ensures the sidecar
// directory exists when sidecars are enabled.
func NewStore(basePath string, sidecars bool) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", basePath, err)
	}
	s := &Store{
		basePath:    basePath,
		metadataDir: filepath.Join(basePath, MetadataDirName),
		sidecars:    sidecars,
	}
	if sidecars {
		if err := os.MkdirAll(s.metadataDir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir %s: %w", s.metadataDir, err)
		}
	}
	return s, nil
}

// Identifier derives the sidecar key from an image path: the filename
// without its extension.
func Identifier(imagePath string) string {
	base := filepath.Base(imagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Save writes the metadata sidecar for an already-captured image. The
// stored document is the capture metadata plus stored_at,
// original_path, identifier and file_size.
func (s *Store) Save(imagePath string, metadata map[string]any) error {
	info, err := os.Stat(imagePath)
	if err != nil {
		return fmt.Errorf("storage: screenshot missing: %w", err)
	}
	if !s.sidecars {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := Identifier(imagePath)
	doc := make(map[string]any, len(metadata)+4)
	for k, v := range metadata {
		doc[k] = v
	}
	doc["stored_at"] = float64(time.Now().UnixNano()) / float64(time.Second)
	doc["original_path"] = imagePath
	doc["identifier"] = id
	doc["file_size"] = info.Size()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.sidecarPath(id), data, 0o644); err != nil {
		return fmt.Errorf("storage: write metadata: %w", err)
	}
	return nil
}

// Metadata reads the sidecar for an identifier.
func (s *Store) Metadata(id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.sidecarPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage: metadata not found: %s", id)
		}
		return nil, fmt.Errorf("storage: read metadata: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("storage: unmarshal metadata: %w", err)
	}
	return doc, nil
}

// UpdateMetadata merges new fields into an existing sidecar and stamps
// updated_at.
func (s *Store) UpdateMetadata(id string, fields map[string]any) error {
	doc, err := s.Metadata(id)
	if err != nil {
		doc = map[string]any{"identifier": id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range fields {
		doc[k] = v
	}
	doc["updated_at"] = float64(time.Now().UnixNano()) / float64(time.Second)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.sidecarPath(id), data, 0o644); err != nil {
		return fmt.Errorf("storage: write metadata: %w", err)
	}
	return nil
}

// Resolve finds the image file for an identifier, trying each known
// extension and then the sidecar's original_path.
func (s *Store) Resolve(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(id)
}

func (s *Store) resolveLocked(id string) (string, error) {
	for _, ext := range imageExtensions {
		candidate := filepath.Join(s.basePath, id+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if s.sidecars {
		data, err := os.ReadFile(s.sidecarPath(id))
		if err == nil {
			var doc struct {
				OriginalPath string `json:"original_path"`
			}
			if json.Unmarshal(data, &doc) == nil && doc.OriginalPath != "" {
				if _, err := os.Stat(doc.OriginalPath); err == nil {
					return doc.OriginalPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf("storage: screenshot not found: %s", id)
}

// Delete removes the image and its sidecar together.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := false
	if path, err := s.resolveLocked(id); err == nil {
		if err := os.Remove(path); err != nil {
			slog.Debug("screenshot removal failed", "path", path, "error", err)
		} else {
			deleted = true
		}
	}
	if s.sidecars {
		if err := os.Remove(s.sidecarPath(id)); err == nil {
			deleted = true
		} else if !os.IsNotExist(err) {
			slog.Debug("sidecar removal failed", "identifier", id, "error", err)
		}
	}

	if !deleted {
		return fmt.Errorf("storage: screenshot not found: %s", id)
	}
	return nil
}

// List returns stored screenshots newest first, up to limit.
func (s *Store) List(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for _, ext := range imageExtensions {
		matches, err := filepath.Glob(filepath.Join(s.basePath, "*"+ext))
		if err != nil {
			return nil, fmt.Errorf("storage: glob: %w", err)
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			id := Identifier(path)
			entry := Entry{
				Identifier: id,
				Path:       path,
				Size:       info.Size(),
				Modified:   float64(info.ModTime().UnixNano()) / float64(time.Second),
				Format:     strings.TrimPrefix(ext, "."),
			}
			if s.sidecars {
				if data, err := os.ReadFile(s.sidecarPath(id)); err == nil {
					var doc map[string]any
					if json.Unmarshal(data, &doc) == nil {
						entry.Metadata = doc
					}
				}
			}
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Modified > entries[j].Modified
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// CleanupOrphaned removes sidecars whose image was deleted out-of-band
// and returns how many were removed.
func (s *Store) CleanupOrphaned() (int, error) {
	if !s.sidecars {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.metadataDir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("storage: glob metadata: %w", err)
	}

	removed := 0
	for _, sidecar := range matches {
		id := Identifier(sidecar)
		if _, err := s.resolveLocked(id); err == nil {
			continue
		}
		if err := os.Remove(sidecar); err != nil {
			slog.Warn("orphaned sidecar removal failed", "path", sidecar, "error", err)
			continue
		}
		removed++
		slog.Info("removed orphaned metadata", "identifier", id)
	}
	return removed, nil
}

// Statistics reports what is on disk: screenshot count, byte totals
// and how many sidecars exist.
func (s *Store) Statistics() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	var totalSize int64
	for _, ext := range imageExtensions {
		matches, err := filepath.Glob(filepath.Join(s.basePath, "*"+ext))
		if err != nil {
			continue
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			count++
			totalSize += info.Size()
		}
	}

	sidecars := 0
	if s.sidecars {
		if matches, err := filepath.Glob(filepath.Join(s.metadataDir, "*.json")); err == nil {
			sidecars = len(matches)
		}
	}

	return map[string]any{
		"base_path":         s.basePath,
		"total_screenshots": count,
		"total_size_bytes":  totalSize,
		"metadata_files":    sidecars,
		"metadata_enabled":  s.sidecars,
	}
}

func (s *Store) sidecarPath(id string) string {
	return filepath.Join(s.metadataDir, id+".json")
}
