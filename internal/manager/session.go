package manager

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pagewatch/shotd/internal/capture"
)

// Session groups a run of captures under one identity. Every capture
// taken through it is numbered 1..N and tagged with the session ID.
// The grouping is metadata only; a failed capture does not undo
// earlier ones.
type Session struct {
	manager *Manager
	config  capture.Config
	id      string

	mu    sync.Mutex
	count int
	ended bool
}

// BeginSession starts a capture session with a shared default config.
// A nil config means manager defaults. End must be called when the
// session is over, on every exit path.
func (m *Manager) BeginSession(cfg *capture.Config) *Session {
	// The zero config leaves every field to the manager's defaults.
	var config capture.Config
	if cfg != nil {
		config = *cfg
	}
	s := &Session{
		manager: m,
		config:  config,
		id:      uuid.NewString(),
	}
	slog.Info("screenshot session started", "session_id", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Capture takes one screenshot inside the session. A nil override uses
// the session's default config. Captures after End fail without
// touching the provider.
func (s *Session) Capture(ctx context.Context, override *capture.Config, metadata map[string]any) capture.Result {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return capture.Failed("screenshot session has ended")
	}
	s.count++
	number := s.count
	s.mu.Unlock()

	config := s.config
	if override != nil {
		config = *override
	}

	merged := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["session_screenshot"] = number
	merged["session_id"] = s.id

	return s.manager.Capture(ctx, &config, "", merged)
}

// End closes the session and logs how many captures it made. It is
// safe to call more than once.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	slog.Info("screenshot session ended", "session_id", s.id, "screenshots", s.count)
}
