// Package agenttool exposes the screenshot system as a closed set of
// named operations for host tooling. Each operation has a typed
// parameter record; there is no dynamic method dispatch.
package agenttool

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/manager"
	"github.com/pagewatch/shotd/internal/trigger"
)

// Operation names one supported tool action.
type Operation string

const (
	OpCapture          Operation = "capture"
	OpStatistics       Operation = "statistics"
	OpCleanup          Operation = "cleanup"
	OpSweepCorrupted   Operation = "sweep_corrupted"
	OpList             Operation = "list"
	OpDelete           Operation = "delete"
	OpFireTrigger      Operation = "fire_trigger"
	OpConfigureTrigger Operation = "configure_trigger"
)

// Operations lists every supported operation in display order.
func Operations() []Operation {
	return []Operation{
		OpCapture, OpStatistics, OpCleanup, OpSweepCorrupted,
		OpList, OpDelete, OpFireTrigger, OpConfigureTrigger,
	}
}

// ParseOperation validates an operation name. Unknown names fail with
// the valid set spelled out.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	for _, known := range Operations() {
		if op == known {
			return op, nil
		}
	}
	names := make([]string, 0, len(Operations()))
	for _, known := range Operations() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("agenttool: unsupported operation %q, valid operations: %s", s, strings.Join(names, ", "))
}

// CaptureParams configure one manual capture. Zero-valued fields take
// capture defaults.
type CaptureParams struct {
	FullPage  bool           `json:"full_page,omitempty"`
	Quality   int            `json:"quality,omitempty"`
	Format    string         `json:"format,omitempty"`
	TimeoutMS int            `json:"timeout,omitempty"`
	Width     int            `json:"width,omitempty"`
	Height    int            `json:"height,omitempty"`
	Filename  string         `json:"filename,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// CleanupParams configure a manual retention pass.
type CleanupParams struct {
	DryRun bool `json:"dry_run,omitempty"`
}

// ListParams bound a listing.
type ListParams struct {
	Limit int `json:"limit,omitempty"`
}

// DeleteParams name one screenshot to remove.
type DeleteParams struct {
	Identifier string `json:"identifier"`
}

// FireTriggerParams fire one dispatcher event.
type FireTriggerParams struct {
	Type    string         `json:"type"`
	Context map[string]any `json:"context,omitempty"`
	Force   bool           `json:"force,omitempty"`
}

// ConfigureTriggerParams adjust one trigger slot. Nil pointer fields
// leave the current value alone.
type ConfigureTriggerParams struct {
	Type      string         `json:"type"`
	Enabled   *bool          `json:"enabled,omitempty"`
	FullPage  *bool          `json:"full_page,omitempty"`
	Quality   int            `json:"quality,omitempty"`
	Format    string         `json:"format,omitempty"`
	TimeoutMS int            `json:"timeout,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Request is one tool invocation: the operation plus its parameter
// record. Only the record matching the operation is consulted.
type Request struct {
	Operation        Operation               `json:"operation"`
	Capture          *CaptureParams          `json:"capture,omitempty"`
	Cleanup          *CleanupParams          `json:"cleanup,omitempty"`
	List             *ListParams             `json:"list,omitempty"`
	Delete           *DeleteParams           `json:"delete,omitempty"`
	FireTrigger      *FireTriggerParams      `json:"fire_trigger,omitempty"`
	ConfigureTrigger *ConfigureTriggerParams `json:"configure_trigger,omitempty"`
}

// Tool dispatches operations to the manager and trigger dispatcher.
type Tool struct {
	manager    *manager.Manager
	dispatcher *trigger.Dispatcher
}

// New builds a Tool. Both collaborators are required.
func New(m *manager.Manager, d *trigger.Dispatcher) (*Tool, error) {
	if m == nil {
		return nil, fmt.Errorf("agenttool: manager is required")
	}
	if d == nil {
		return nil, fmt.Errorf("agenttool: dispatcher is required")
	}
	return &Tool{manager: m, dispatcher: d}, nil
}

// Invoke runs one operation and returns a JSON-friendly response. An
// error means the request itself was malformed; operation outcomes,
// including failed captures, come back inside the mapping.
func (t *Tool) Invoke(ctx context.Context, req Request) (map[string]any, error) {
	op, err := ParseOperation(string(req.Operation))
	if err != nil {
		return nil, err
	}

	switch op {
	case OpCapture:
		return t.capture(ctx, req.Capture), nil
	case OpStatistics:
		return map[string]any{
			"manager":  t.manager.Statistics(ctx),
			"triggers": t.dispatcher.Statistics(),
		}, nil
	case OpCleanup:
		dryRun := req.Cleanup != nil && req.Cleanup.DryRun
		return map[string]any{"cleanup": t.manager.ManualCleanup(ctx, dryRun)}, nil
	case OpSweepCorrupted:
		return map[string]any{"sweep": t.manager.SweepCorrupted()}, nil
	case OpList:
		limit := 0
		if req.List != nil {
			limit = req.List.Limit
		}
		entries, err := t.manager.Store().List(limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"screenshots": entries, "count": len(entries)}, nil
	case OpDelete:
		if req.Delete == nil || req.Delete.Identifier == "" {
			return nil, fmt.Errorf("agenttool: delete requires an identifier")
		}
		if err := t.manager.Store().Delete(req.Delete.Identifier); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": req.Delete.Identifier}, nil
	case OpFireTrigger:
		return t.fireTrigger(ctx, req.FireTrigger)
	case OpConfigureTrigger:
		return t.configureTrigger(req.ConfigureTrigger)
	default:
		return nil, fmt.Errorf("agenttool: unsupported operation %q", op)
	}
}

func (t *Tool) capture(ctx context.Context, params *CaptureParams) map[string]any {
	if params == nil {
		params = &CaptureParams{}
	}

	// Unset fields stay zero so the manager's host defaults apply.
	cfg := capture.Config{
		FullPage:  params.FullPage,
		Quality:   params.Quality,
		Format:    params.Format,
		TimeoutMS: params.TimeoutMS,
		Width:     params.Width,
		Height:    params.Height,
	}

	metadata := make(map[string]any, len(params.Metadata)+2)
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	metadata["tool"] = "screenshot_tool"
	metadata["manual_request"] = true

	result := t.manager.Capture(ctx, &cfg, params.Filename, metadata)
	response := map[string]any{
		"success":   result.Success,
		"timestamp": result.Timestamp,
	}
	if result.Success {
		response["path"] = result.Path
		response["metadata"] = result.Metadata
	} else {
		response["error"] = result.Error
	}
	return response
}

func (t *Tool) fireTrigger(ctx context.Context, params *FireTriggerParams) (map[string]any, error) {
	if params == nil || params.Type == "" {
		return nil, fmt.Errorf("agenttool: fire_trigger requires a type")
	}
	triggerType, err := trigger.ParseType(params.Type)
	if err != nil {
		return nil, err
	}

	result, fired := t.dispatcher.Fire(ctx, triggerType, params.Context, params.Force)
	response := map[string]any{"fired": fired}
	if fired {
		response["success"] = result.Success
		if result.Success {
			response["path"] = result.Path
		} else {
			response["error"] = result.Error
		}
	}
	return response, nil
}

func (t *Tool) configureTrigger(params *ConfigureTriggerParams) (map[string]any, error) {
	if params == nil || params.Type == "" {
		return nil, fmt.Errorf("agenttool: configure_trigger requires a type")
	}
	triggerType, err := trigger.ParseType(params.Type)
	if err != nil {
		return nil, err
	}

	var cfg *capture.Config
	if params.FullPage != nil || params.Quality != 0 || params.Format != "" || params.TimeoutMS != 0 {
		c := capture.Config{
			Quality:   params.Quality,
			Format:    params.Format,
			TimeoutMS: params.TimeoutMS,
		}
		if params.FullPage != nil {
			c.FullPage = *params.FullPage
		}
		cfg = &c
	}

	if cfg != nil || params.Metadata != nil {
		if !t.dispatcher.ConfigureTrigger(triggerType, cfg, nil, params.Metadata) {
			return nil, fmt.Errorf("agenttool: no trigger slot for type %q", params.Type)
		}
	}
	if params.Enabled != nil {
		if !t.dispatcher.EnableTrigger(triggerType, *params.Enabled) {
			return nil, fmt.Errorf("agenttool: no trigger slot for type %q", params.Type)
		}
	}
	return map[string]any{"configured": params.Type}, nil
}
