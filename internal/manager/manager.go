// Package manager owns the screenshot lifecycle: capture requests,
// statistics, and retention of the files on disk. A Manager wraps one
// capture provider and one base directory.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/pathutil"
	"github.com/pagewatch/shotd/internal/retention"
	"github.com/pagewatch/shotd/internal/storage"
)

// State is the manager lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

const (
	// Cleanup never runs more often than this.
	cleanupMinSpacing = time.Hour
	// Cleanup is forced after this long without one.
	cleanupMaxSpacing = 6 * time.Hour
	// Cleanup is forced every this many captures.
	cleanupEveryN = 50
	// Background worker wake interval.
	workerInterval = time.Hour
)

// Options tune a Manager. Zero values fall back to defaults.
type Options struct {
	MaxAge      time.Duration // retention age bound, default 24h
	MaxFiles    int           // retention count bound, default 1000
	AutoCleanup bool          // run the due-heuristic after captures and hourly
	Sidecars    bool          // write .metadata JSON sidecars

	// Defaults fill the unset fields of every capture request. Nil
	// means the stock capture defaults (quality 90, png, 3000ms).
	Defaults *capture.Config
}

// Manager coordinates captures against one provider and one directory.
type Manager struct {
	provider capture.Provider
	store    *storage.Store
	basePath string
	opts     Options
	defaults capture.Config

	state atomic.Int32
	seq   atomic.Int64

	totalCaptures      atomic.Int64
	successfulCaptures atomic.Int64
	failedCaptures     atomic.Int64
	cleanupRuns        atomic.Int64
	spaceFreed         atomic.Int64
	lastCleanup        atomic.Int64 // unix seconds, 0 = never

	initMu        sync.Mutex
	workerCtx     context.Context
	workerCancel  context.CancelFunc
	workerStarted bool
	workerWG      sync.WaitGroup
}

// New builds a Manager. It fails fast on programmer errors: a nil
// provider or a base path that is not usable.
func New(provider capture.Provider, basePath string, opts Options) (*Manager, error) {
	if provider == nil {
		return nil, fmt.Errorf("manager: provider is required")
	}
	if err := pathutil.ValidateBasePath(basePath); err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 24 * time.Hour
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 1000
	}

	defaults := capture.DefaultConfig()
	if opts.Defaults != nil {
		validated, err := capture.NewConfig(*opts.Defaults)
		if err != nil {
			return nil, fmt.Errorf("manager: default capture config: %w", err)
		}
		defaults = validated
	}

	store, err := storage.NewStore(basePath, opts.Sidecars)
	if err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	return &Manager{
		provider:     provider,
		store:        store,
		basePath:     basePath,
		opts:         opts,
		defaults:     defaults,
		workerCtx:    workerCtx,
		workerCancel: workerCancel,
	}, nil
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Store exposes the metadata sidecar store.
func (m *Manager) Store() *storage.Store {
	return m.store
}

// BasePath returns the screenshot directory.
func (m *Manager) BasePath() string {
	return m.basePath
}

// Initialize makes the manager ready: directory present, provider
// responding, background cleanup worker started. Safe to call more
// than once.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.State() == StateReady {
		return nil
	}
	m.state.Store(int32(StateInitializing))

	if err := pathutil.EnsureDir(m.basePath); err != nil {
		m.state.Store(int32(StateUninitialized))
		return fmt.Errorf("manager: create screenshot directory: %w", err)
	}
	if !m.provider.IsAvailable(ctx) {
		m.state.Store(int32(StateUninitialized))
		return fmt.Errorf("manager: capture provider is not available")
	}

	if m.opts.AutoCleanup && !m.workerStarted {
		m.workerStarted = true
		m.workerWG.Add(1)
		go m.cleanupWorker(m.workerCtx)
	}

	m.state.Store(int32(StateReady))
	slog.Info("screenshot manager initialized", "base_path", m.basePath)
	return nil
}

// Teardown cancels the worker context, interrupting the hourly worker
// and any in-flight one-shot cleanup, waits for them, releases the
// provider and returns the manager to uninitialized. Holding initMu
// across the wait keeps Capture from spawning new cleanup goroutines
// mid-teardown.
func (m *Manager) Teardown() {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	m.state.Store(int32(StateUninitialized))
	m.workerCancel()
	m.workerWG.Wait()

	// Fresh context so a later Initialize can restart the worker.
	m.workerCtx, m.workerCancel = context.WithCancel(context.Background())
	m.workerStarted = false

	m.provider.Cleanup()
	slog.Info("screenshot manager torn down")
}

// Capture takes one screenshot. A nil config means defaults; an empty
// filename means a generated one. Every failure comes back as a failed
// Result, never an error.
func (m *Manager) Capture(ctx context.Context, cfg *capture.Config, customFilename string, metadata map[string]any) capture.Result {
	if m.State() != StateReady {
		if err := m.Initialize(ctx); err != nil {
			slog.Error("implicit initialization failed", "error", err)
			return capture.Failed(fmt.Sprintf("screenshot manager not initialized: %v", err))
		}
	}

	config := m.defaults
	if cfg != nil {
		config = cfg.Merged(m.defaults)
	}
	validated, err := capture.NewConfig(config)
	if err != nil {
		slog.Error("invalid capture configuration", "error", err)
		m.totalCaptures.Add(1)
		m.failedCaptures.Add(1)
		return capture.FailedErr(err)
	}
	config = validated

	seq := m.seq.Add(1)
	m.totalCaptures.Add(1)

	outputPath, err := m.outputPath(config, customFilename, seq)
	if err != nil {
		m.failedCaptures.Add(1)
		return capture.FailedErr(err)
	}

	result, err := m.provider.Capture(ctx, config, outputPath)
	if err != nil {
		m.failedCaptures.Add(1)
		slog.Error("screenshot capture failed", "path", outputPath, "error", err)
		result = capture.FailedErr(err)
	} else if !result.Success {
		m.failedCaptures.Add(1)
		slog.Error("screenshot capture failed", "path", outputPath, "error", result.Error)
	} else {
		m.successfulCaptures.Add(1)
		if result.Metadata == nil {
			result.Metadata = make(map[string]any)
		}
		result.Metadata["manager"] = "screenshot_manager"
		result.Metadata["screenshot_number"] = seq
		result.Metadata["base_path"] = m.basePath
		for k, v := range metadata {
			result.Metadata[k] = v
		}
		if err := m.store.Save(result.Path, result.Metadata); err != nil {
			slog.Warn("metadata sidecar write failed", "path", result.Path, "error", err)
		}
		slog.Info("screenshot captured", "path", result.Path, "number", seq)
	}

	if m.opts.AutoCleanup && m.cleanupDue() {
		// The one-shot cleanup runs on the worker context so Teardown
		// can interrupt it, and the Add happens under initMu so it
		// cannot race a teardown's Wait.
		m.initMu.Lock()
		if m.State() == StateReady {
			cleanupCtx := m.workerCtx
			m.workerWG.Add(1)
			go func() {
				defer m.workerWG.Done()
				m.runCleanup(cleanupCtx)
			}()
		}
		m.initMu.Unlock()
	}

	return result
}

// CaptureWithMetadata captures and returns a display-friendly mapping.
// It never fails; errors land in the mapping's error field.
func (m *Manager) CaptureWithMetadata(ctx context.Context, cfg *capture.Config, metadata map[string]any) map[string]any {
	result := m.Capture(ctx, cfg, "", metadata)

	response := map[string]any{
		"success":   result.Success,
		"timestamp": result.Timestamp,
		"manager":   "screenshot_manager",
	}
	if result.Success {
		response["screenshot"] = fmt.Sprintf("img://%s&t=%f", result.Path, result.Timestamp)
		response["path"] = result.Path
		if result.Metadata != nil {
			response["metadata"] = result.Metadata
		}
	} else {
		response["error"] = result.Error
	}
	for k, v := range metadata {
		response[k] = v
	}
	return response
}

// Statistics reports counters, filesystem state, provider capabilities
// and manager status as one JSON-friendly mapping.
func (m *Manager) Statistics(ctx context.Context) map[string]any {
	fsStats := retention.Stats(m.basePath)
	return map[string]any{
		"manager_stats": map[string]any{
			"total_screenshots":      m.totalCaptures.Load(),
			"successful_screenshots": m.successfulCaptures.Load(),
			"failed_screenshots":     m.failedCaptures.Load(),
			"cleanup_runs":           m.cleanupRuns.Load(),
			"space_freed":            m.spaceFreed.Load(),
		},
		"filesystem_stats":      fsStats,
		"storage_stats":         m.store.Statistics(),
		"provider_capabilities": m.provider.Capabilities(),
		"configuration": map[string]any{
			"base_path":     m.basePath,
			"max_age_hours": m.opts.MaxAge.Hours(),
			"max_files":     m.opts.MaxFiles,
			"auto_cleanup":  m.opts.AutoCleanup,
		},
		"status": map[string]any{
			"state":              m.State().String(),
			"provider_available": m.provider.IsAvailable(ctx),
		},
	}
}

// ManualCleanup runs one retention pass on demand. Dry runs report the
// partition without touching the filesystem or the counters.
func (m *Manager) ManualCleanup(ctx context.Context, dryRun bool) retention.Summary {
	slog.Info("manual cleanup starting", "dry_run", dryRun)
	summary := retention.Cleanup(ctx, m.basePath, m.opts.MaxAge, m.opts.MaxFiles, dryRun)
	if !dryRun {
		m.cleanupRuns.Add(1)
		m.spaceFreed.Add(summary.SpaceFreed)
		m.lastCleanup.Store(time.Now().Unix())
	}
	slog.Info("manual cleanup finished", "cleaned", summary.TotalCleaned, "dry_run", dryRun)
	return summary
}

// SweepCorrupted removes files failing size or magic-number checks.
func (m *Manager) SweepCorrupted() retention.SweepSummary {
	return retention.SweepCorrupted(m.basePath)
}

func (m *Manager) outputPath(config capture.Config, customFilename string, seq int64) (string, error) {
	if customFilename == "" {
		prefix := fmt.Sprintf("auto_%d", seq)
		return pathutil.GeneratePath(m.basePath, config.Format, prefix), nil
	}

	safe := pathutil.SanitizeFilename(customFilename)
	if !strings.Contains(safe, ".") {
		safe += "." + config.Format
	}
	candidate := filepath.Join(m.basePath, safe)
	if err := pathutil.ValidatePath(candidate, m.basePath); err != nil {
		return "", err
	}
	return candidate, nil
}

func (m *Manager) cleanupDue() bool {
	// A zero last-cleanup timestamp reads as very old, so the first
	// capture after startup is allowed to trigger a pass.
	since := time.Since(time.Unix(m.lastCleanup.Load(), 0))
	if since < cleanupMinSpacing {
		return false
	}
	if m.seq.Load()%cleanupEveryN == 0 {
		return true
	}
	return since > cleanupMaxSpacing
}

func (m *Manager) runCleanup(ctx context.Context) {
	summary := retention.Cleanup(ctx, m.basePath, m.opts.MaxAge, m.opts.MaxFiles, false)
	m.cleanupRuns.Add(1)
	m.spaceFreed.Add(summary.SpaceFreed)
	m.lastCleanup.Store(time.Now().Unix())
	if summary.TotalCleaned > 0 {
		slog.Info("cleanup removed screenshots", "cleaned", summary.TotalCleaned, "space_freed", summary.SpaceFreed)
	}
}

func (m *Manager) cleanupWorker(ctx context.Context) {
	defer m.workerWG.Done()

	ticker := time.NewTicker(workerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("background cleanup worker stopped")
			return
		case <-ticker.C:
			if m.cleanupDue() {
				m.runCleanup(ctx)
			}
		}
	}
}
