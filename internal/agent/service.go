// Package agent glues the screenshot manager, trigger dispatcher and
// tool surface into the one Service the HTTP API serves.
package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagewatch/shotd/internal/agenttool"
	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/manager"
	"github.com/pagewatch/shotd/internal/retention"
	"github.com/pagewatch/shotd/internal/storage"
	"github.com/pagewatch/shotd/internal/trigger"
)

// Service exposes screenshot operations to transport layers.
type Service struct {
	manager    *manager.Manager
	dispatcher *trigger.Dispatcher
	tool       *agenttool.Tool
}

// NewService wires the collaborators together.
func NewService(m *manager.Manager, d *trigger.Dispatcher, t *agenttool.Tool) *Service {
	return &Service{manager: m, dispatcher: d, tool: t}
}

// Capture takes one screenshot through the manager.
func (s *Service) Capture(ctx context.Context, cfg *capture.Config, filename string, metadata map[string]any) capture.Result {
	return s.manager.Capture(ctx, cfg, filename, metadata)
}

// Statistics merges manager and dispatcher statistics.
func (s *Service) Statistics(ctx context.Context) map[string]any {
	stats := s.manager.Statistics(ctx)
	stats["trigger_stats"] = s.dispatcher.Statistics()
	return stats
}

// ManualCleanup runs one retention pass.
func (s *Service) ManualCleanup(ctx context.Context, dryRun bool) retention.Summary {
	return s.manager.ManualCleanup(ctx, dryRun)
}

// SweepCorrupted removes corrupt screenshot files.
func (s *Service) SweepCorrupted(ctx context.Context) retention.SweepSummary {
	return s.manager.SweepCorrupted()
}

// ListScreenshots returns stored screenshots, newest first.
func (s *Service) ListScreenshots(ctx context.Context, limit int) ([]storage.Entry, error) {
	return s.manager.Store().List(limit)
}

// GetMetadata returns the sidecar document for one screenshot.
func (s *Service) GetMetadata(ctx context.Context, id string) (map[string]any, error) {
	doc, err := s.manager.Store().Metadata(id)
	if err != nil {
		return nil, &capture.CodedError{Code: capture.CodeNotFound, Message: "screenshot metadata not found: " + id}
	}
	return doc, nil
}

// ReadScreenshot returns a screenshot's bytes and content type.
func (s *Service) ReadScreenshot(ctx context.Context, id string) ([]byte, string, error) {
	path, err := s.manager.Store().Resolve(id)
	if err != nil {
		return nil, "", &capture.CodedError{Code: capture.CodeNotFound, Message: "screenshot not found: " + id}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &capture.CodedError{Code: capture.CodeStorageIO, Message: "screenshot read failed: " + id, Cause: err}
	}
	return data, contentTypeFor(path), nil
}

// DeleteScreenshot removes a screenshot and its sidecar.
func (s *Service) DeleteScreenshot(ctx context.Context, id string) error {
	if err := s.manager.Store().Delete(id); err != nil {
		return &capture.CodedError{Code: capture.CodeNotFound, Message: "screenshot not found: " + id}
	}
	return nil
}

// CleanupOrphaned drops sidecars whose image is gone.
func (s *Service) CleanupOrphaned(ctx context.Context) (int, error) {
	return s.manager.Store().CleanupOrphaned()
}

// FireTrigger routes one event through the dispatcher.
func (s *Service) FireTrigger(ctx context.Context, triggerType trigger.Type, eventContext map[string]any, force bool) (capture.Result, bool) {
	return s.dispatcher.Fire(ctx, triggerType, eventContext, force)
}

// EnableTrigger flips one trigger slot.
func (s *Service) EnableTrigger(ctx context.Context, triggerType trigger.Type, enabled bool) bool {
	return s.dispatcher.EnableTrigger(triggerType, enabled)
}

// SetAutoCapture flips the dispatcher's global switch.
func (s *Service) SetAutoCapture(ctx context.Context, enabled bool) {
	s.dispatcher.SetEnabled(enabled)
}

// RecentHistory returns the newest auto-capture history entries.
func (s *Service) RecentHistory(ctx context.Context, limit int) []trigger.HistoryEntry {
	return s.dispatcher.RecentHistory(limit)
}

// InvokeTool dispatches one typed tool operation.
func (s *Service) InvokeTool(ctx context.Context, req agenttool.Request) (map[string]any, error) {
	return s.tool.Invoke(ctx, req)
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
