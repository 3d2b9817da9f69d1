package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pagewatch/shotd/internal/agenttool"
	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/retention"
	"github.com/pagewatch/shotd/internal/storage"
	"github.com/pagewatch/shotd/internal/trigger"
)

type stubService struct {
	deleted string
}

func (s *stubService) Capture(ctx context.Context, cfg *capture.Config, filename string, metadata map[string]any) capture.Result {
	if cfg != nil && cfg.Quality > 100 {
		return capture.Failed("quality must be between 10 and 100, got " + "150")
	}
	return capture.Succeeded("/tmp/shots/auto_1.png", map[string]any{"format": "png"})
}

func (s *stubService) Statistics(ctx context.Context) map[string]any {
	return map[string]any{
		"manager_stats": map[string]any{"total_screenshots": 1},
		"status":        map[string]any{"state": "ready", "provider_available": true},
	}
}

func (s *stubService) ManualCleanup(ctx context.Context, dryRun bool) retention.Summary {
	return retention.Summary{DryRun: dryRun}
}

func (s *stubService) SweepCorrupted(ctx context.Context) retention.SweepSummary {
	return retention.SweepSummary{}
}

func (s *stubService) ListScreenshots(ctx context.Context, limit int) ([]storage.Entry, error) {
	return []storage.Entry{{Identifier: "auto_1", Path: "/tmp/shots/auto_1.png", Format: "png"}}, nil
}

func (s *stubService) GetMetadata(ctx context.Context, id string) (map[string]any, error) {
	if id != "auto_1" {
		return nil, &capture.CodedError{Code: capture.CodeNotFound, Message: "screenshot metadata not found: " + id}
	}
	return map[string]any{"identifier": id}, nil
}

func (s *stubService) ReadScreenshot(ctx context.Context, id string) ([]byte, string, error) {
	if id != "auto_1" {
		return nil, "", &capture.CodedError{Code: capture.CodeNotFound, Message: "screenshot not found: " + id}
	}
	return []byte("\x89PNG\r\n\x1a\nfake"), "image/png", nil
}

func (s *stubService) DeleteScreenshot(ctx context.Context, id string) error {
	if id != "auto_1" {
		return &capture.CodedError{Code: capture.CodeNotFound, Message: "screenshot not found: " + id}
	}
	s.deleted = id
	return nil
}

func (s *stubService) CleanupOrphaned(ctx context.Context) (int, error) { return 2, nil }

func (s *stubService) FireTrigger(ctx context.Context, triggerType trigger.Type, eventContext map[string]any, force bool) (capture.Result, bool) {
	if triggerType == trigger.TypePeriodic {
		return capture.Result{}, false
	}
	return capture.Succeeded("/tmp/shots/auto_2.png", nil), true
}

func (s *stubService) EnableTrigger(ctx context.Context, triggerType trigger.Type, enabled bool) bool {
	return triggerType != trigger.TypeTimeout
}

func (s *stubService) SetAutoCapture(ctx context.Context, enabled bool) {}

func (s *stubService) RecentHistory(ctx context.Context, limit int) []trigger.HistoryEntry {
	return []trigger.HistoryEntry{{TriggerType: trigger.TypeNavigation, Success: true}}
}

func (s *stubService) InvokeTool(ctx context.Context, req agenttool.Request) (map[string]any, error) {
	if _, err := agenttool.ParseOperation(string(req.Operation)); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	h := NewServer(&stubService{})

	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health body = %s", w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/v1/health/deep", "")
	if w.Code != http.StatusOK {
		t.Fatalf("deep status = %d, want %d", w.Code, http.StatusOK)
	}
	var deep struct {
		Status map[string]any `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &deep); err != nil {
		t.Fatalf("unmarshal deep health: %v", err)
	}
	if deep.Status["state"] != "ready" {
		t.Fatalf("deep health state = %v", deep.Status["state"])
	}
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{})
	w := do(t, h, http.MethodGet, "/docs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Fatal("docs missing dark theme marker")
	}
}

func TestCaptureEndpoint(t *testing.T) {
	h := NewServer(&stubService{})
	w := do(t, h, http.MethodPost, "/api/v1/screenshots", `{"format":"png"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var result capture.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.Success || result.Path == "" {
		t.Errorf("result = %+v", result)
	}
}

func TestListAndDeleteEndpoints(t *testing.T) {
	svc := &stubService{}
	h := NewServer(svc)

	w := do(t, h, http.MethodGet, "/api/v1/screenshots?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "auto_1") {
		t.Errorf("list body = %s", w.Body.String())
	}

	w = do(t, h, http.MethodDelete, "/api/v1/screenshots/auto_1", "")
	if w.Code != http.StatusNoContent && w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if svc.deleted != "auto_1" {
		t.Errorf("deleted = %q", svc.deleted)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/screenshots/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing delete status = %d, want 404", w.Code)
	}
}

func TestImageEndpointContentType(t *testing.T) {
	h := NewServer(&stubService{})
	w := do(t, h, http.MethodGet, "/api/v1/screenshots/auto_1/image", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", got)
	}
}

func TestFireTriggerEndpoint(t *testing.T) {
	h := NewServer(&stubService{})

	w := do(t, h, http.MethodPost, "/api/v1/triggers/fire", `{"type":"navigation"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"fired":true`) {
		t.Errorf("body = %s", w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/api/v1/triggers/fire", `{"type":"explosion"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", w.Code)
	}
}

func TestToolEndpointRejectsUnknownOperation(t *testing.T) {
	h := NewServer(&stubService{})

	w := do(t, h, http.MethodPost, "/api/v1/tool", `{"operation":"statistics"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/api/v1/tool", `{"operation":"teleport"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "capture") {
		t.Errorf("error should list valid operations: %s", w.Body.String())
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	h := NewServer(&stubService{})
	w := do(t, h, http.MethodGet, "/api/v1/statistics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "manager_stats") {
		t.Errorf("body = %s", w.Body.String())
	}
}
