package agenttool

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/manager"
	"github.com/pagewatch/shotd/internal/storage"
	"github.com/pagewatch/shotd/internal/trigger"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 120)...)

type stubProvider struct{}

func (stubProvider) Capture(ctx context.Context, cfg capture.Config, outputPath string) (capture.Result, error) {
	if err := os.WriteFile(outputPath, pngBytes, 0o644); err != nil {
		return capture.Result{}, err
	}
	return capture.Succeeded(outputPath, map[string]any{"format": cfg.Format}), nil
}

func (stubProvider) IsAvailable(ctx context.Context) bool { return true }

func (stubProvider) Capabilities() capture.Capabilities {
	return capture.Capabilities{
		Formats:        []string{"png", "jpeg", "jpg"},
		FullPage:       true,
		QualityControl: true,
		TimeoutControl: true,
		MaxTimeoutMS:   30000,
	}
}

func (stubProvider) Cleanup() {}

func newTestTool(t *testing.T) *Tool {
	t.Helper()
	m, err := manager.New(stubProvider{}, t.TempDir(), manager.Options{Sidecars: true})
	if err != nil {
		t.Fatalf("manager.New: %v", err)
	}
	t.Cleanup(m.Teardown)

	d, err := trigger.NewDispatcher(m, nil, trigger.Options{})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	tool, err := New(m, d)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tool
}

func TestParseOperationListsValidSet(t *testing.T) {
	if _, err := ParseOperation("capture"); err != nil {
		t.Errorf("ParseOperation(capture): %v", err)
	}
	_, err := ParseOperation("teleport")
	if err == nil {
		t.Fatal("unknown operation should fail")
	}
	for _, op := range Operations() {
		if !strings.Contains(err.Error(), string(op)) {
			t.Errorf("error %q should list %q", err.Error(), op)
		}
	}
}

func TestInvokeCapture(t *testing.T) {
	tool := newTestTool(t)

	response, err := tool.Invoke(context.Background(), Request{
		Operation: OpCapture,
		Capture: &CaptureParams{
			Quality:  80,
			Format:   "jpeg",
			Metadata: map[string]any{"reason": "test"},
		},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if response["success"] != true {
		t.Fatalf("response = %v", response)
	}
	metadata := response["metadata"].(map[string]any)
	if metadata["tool"] != "screenshot_tool" || metadata["manual_request"] != true {
		t.Errorf("tool metadata = %v", metadata)
	}
	if metadata["reason"] != "test" {
		t.Errorf("caller metadata lost: %v", metadata)
	}
}

func TestInvokeCaptureInvalidConfig(t *testing.T) {
	tool := newTestTool(t)

	response, err := tool.Invoke(context.Background(), Request{
		Operation: OpCapture,
		Capture:   &CaptureParams{Quality: 150},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if response["success"] != false {
		t.Fatalf("response = %v", response)
	}
	if !strings.Contains(response["error"].(string), "10 and 100") {
		t.Errorf("error = %v", response["error"])
	}
}

func TestInvokeStatisticsAndCleanup(t *testing.T) {
	tool := newTestTool(t)

	if _, err := tool.Invoke(context.Background(), Request{Operation: OpCapture}); err != nil {
		t.Fatalf("capture: %v", err)
	}

	stats, err := tool.Invoke(context.Background(), Request{Operation: OpStatistics})
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats["manager"] == nil || stats["triggers"] == nil {
		t.Errorf("statistics response = %v", stats)
	}

	cleanup, err := tool.Invoke(context.Background(), Request{
		Operation: OpCleanup,
		Cleanup:   &CleanupParams{DryRun: true},
	})
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if cleanup["cleanup"] == nil {
		t.Errorf("cleanup response = %v", cleanup)
	}

	sweep, err := tool.Invoke(context.Background(), Request{Operation: OpSweepCorrupted})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if sweep["sweep"] == nil {
		t.Errorf("sweep response = %v", sweep)
	}
}

func TestInvokeListAndDelete(t *testing.T) {
	tool := newTestTool(t)

	captured, err := tool.Invoke(context.Background(), Request{Operation: OpCapture})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	path := captured["path"].(string)

	listed, err := tool.Invoke(context.Background(), Request{Operation: OpList, List: &ListParams{Limit: 10}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listed["count"] != 1 {
		t.Fatalf("count = %v, want 1", listed["count"])
	}

	id := storage.Identifier(path)
	deleted, err := tool.Invoke(context.Background(), Request{Operation: OpDelete, Delete: &DeleteParams{Identifier: id}})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted["deleted"] != id {
		t.Errorf("deleted = %v, want %s", deleted["deleted"], id)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("screenshot should be gone")
	}

	if _, err := tool.Invoke(context.Background(), Request{Operation: OpDelete}); err == nil {
		t.Error("delete without identifier should fail")
	}
}

func TestInvokeFireTrigger(t *testing.T) {
	tool := newTestTool(t)

	response, err := tool.Invoke(context.Background(), Request{
		Operation:   OpFireTrigger,
		FireTrigger: &FireTriggerParams{Type: "error", Context: map[string]any{"error": "boom"}, Force: true},
	})
	if err != nil {
		t.Fatalf("fire_trigger: %v", err)
	}
	if response["fired"] != true || response["success"] != true {
		t.Errorf("response = %v", response)
	}

	if _, err := tool.Invoke(context.Background(), Request{
		Operation:   OpFireTrigger,
		FireTrigger: &FireTriggerParams{Type: "explosion"},
	}); err == nil {
		t.Error("unknown trigger type should fail")
	}
}

func TestInvokeConfigureTrigger(t *testing.T) {
	tool := newTestTool(t)

	enabled := true
	response, err := tool.Invoke(context.Background(), Request{
		Operation: OpConfigureTrigger,
		ConfigureTrigger: &ConfigureTriggerParams{
			Type:    "periodic",
			Enabled: &enabled,
			Quality: 95,
		},
	})
	if err != nil {
		t.Fatalf("configure_trigger: %v", err)
	}
	if response["configured"] != "periodic" {
		t.Errorf("response = %v", response)
	}

	// The slot is now enabled and fires.
	fired, err := tool.Invoke(context.Background(), Request{
		Operation:   OpFireTrigger,
		FireTrigger: &FireTriggerParams{Type: "periodic", Force: true},
	})
	if err != nil {
		t.Fatalf("fire_trigger: %v", err)
	}
	if fired["fired"] != true {
		t.Errorf("response = %v", fired)
	}

	// No slot for timeout in the default table.
	if _, err := tool.Invoke(context.Background(), Request{
		Operation:        OpConfigureTrigger,
		ConfigureTrigger: &ConfigureTriggerParams{Type: "timeout", Enabled: &enabled},
	}); err == nil {
		t.Error("configuring a missing slot should fail")
	}
}
