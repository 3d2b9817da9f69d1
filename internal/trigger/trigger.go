// Package trigger decides when screenshots are taken automatically.
// A Dispatcher holds an ordered trigger table and fires the manager
// when a lifecycle event passes its gates.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/manager"
)

// Type names a trigger slot.
type Type string

const (
	TypeNavigation  Type = "navigation"
	TypeError       Type = "error"
	TypeInteraction Type = "interaction"
	TypeTimeout     Type = "timeout"
	TypeManual      Type = "manual"
	TypePeriodic    Type = "periodic"
)

var knownTypes = map[Type]bool{
	TypeNavigation:  true,
	TypeError:       true,
	TypeInteraction: true,
	TypeTimeout:     true,
	TypeManual:      true,
	TypePeriodic:    true,
}

// ParseType validates a trigger type string.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !knownTypes[t] {
		return "", fmt.Errorf("trigger: unknown trigger type %q", s)
	}
	return t, nil
}

// Condition gates a trigger against the event context. A panicking
// condition counts as "do not capture".
type Condition func(context map[string]any) bool

// Trigger binds an event type to a capture config and gating rule.
type Trigger struct {
	Type      Type
	Enabled   bool
	Config    *capture.Config
	Condition Condition
	Metadata  map[string]any
}

// Options tune the dispatcher gates. Zero values take defaults.
type Options struct {
	MinInterval        time.Duration // spacing between auto-captures, default 1s
	DuplicateThreshold time.Duration // same-type repeat window, default 5s
	MaxHistory         int           // history ring size, default 100
}

// HistoryEntry records one attempted auto-capture, failed or not.
type HistoryEntry struct {
	Timestamp   float64 `json:"timestamp"`
	TriggerType Type    `json:"trigger_type"`
	Success     bool    `json:"success"`
	Path        string  `json:"path,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Dispatcher routes lifecycle events to the screenshot manager.
type Dispatcher struct {
	manager *manager.Manager
	opts    Options

	mu          sync.Mutex
	triggers    []*Trigger
	enabled     bool
	lastCapture time.Time
	history     []HistoryEntry

	autoCaptures int64
	skipped      int64
	duplicates   int64
	triggeredBy  map[Type]int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultTriggers returns the stock trigger table: navigation, error
// and interaction on, periodic off. The configs set only per-type
// timeouts (and full page for errors); quality and format stay unset
// so the manager's host defaults apply.
func DefaultTriggers() []*Trigger {
	return []*Trigger{
		{Type: TypeNavigation, Enabled: true, Config: &capture.Config{TimeoutMS: 3000}, Metadata: map[string]any{"trigger": "navigation"}},
		{Type: TypeError, Enabled: true, Config: &capture.Config{FullPage: true, TimeoutMS: 5000}, Metadata: map[string]any{"trigger": "error", "priority": "high"}},
		{Type: TypeInteraction, Enabled: true, Config: &capture.Config{TimeoutMS: 2000}, Metadata: map[string]any{"trigger": "interaction"}},
		{Type: TypePeriodic, Enabled: false, Config: &capture.Config{TimeoutMS: 3000}, Metadata: map[string]any{"trigger": "periodic"}},
	}
}

// NewDispatcher builds a Dispatcher over a manager. Nil triggers means
// the default table.
func NewDispatcher(m *manager.Manager, triggers []*Trigger, opts Options) (*Dispatcher, error) {
	if m == nil {
		return nil, fmt.Errorf("trigger: manager is required")
	}
	if triggers == nil {
		triggers = DefaultTriggers()
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = time.Second
	}
	if opts.DuplicateThreshold <= 0 {
		opts.DuplicateThreshold = 5 * time.Second
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 100
	}
	return &Dispatcher{
		manager:     m,
		opts:        opts,
		triggers:    triggers,
		enabled:     true,
		triggeredBy: make(map[Type]int64),
		now:         time.Now,
		sleep:       sleepCtx,
	}, nil
}

// Fire evaluates one event. The bool reports whether a capture was
// attempted; when false the event was gated out and the Result is
// zero. Force skips the interval, condition and duplicate gates but
// not the global disable and not a disabled trigger slot.
func (d *Dispatcher) Fire(ctx context.Context, triggerType Type, eventContext map[string]any, force bool) (capture.Result, bool) {
	d.mu.Lock()

	if !d.enabled {
		d.mu.Unlock()
		return capture.Result{}, false
	}

	trig := d.findLocked(triggerType)
	if trig == nil || !trig.Enabled {
		d.skipped++
		d.mu.Unlock()
		return capture.Result{}, false
	}

	if !force && !d.shouldCaptureLocked(trig, eventContext) {
		d.skipped++
		d.mu.Unlock()
		return capture.Result{}, false
	}

	cfg := trig.Config
	metadata := make(map[string]any, len(trig.Metadata)+len(eventContext)+3)
	for k, v := range trig.Metadata {
		metadata[k] = v
	}
	for k, v := range eventContext {
		metadata[k] = v
	}
	metadata["auto_capture"] = true
	metadata["trigger_type"] = string(triggerType)
	metadata["timestamp"] = float64(d.now().UnixNano()) / float64(time.Second)

	d.mu.Unlock()

	result := d.manager.Capture(ctx, cfg, "", metadata)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.recordLocked(triggerType, result)
	if result.Success {
		d.autoCaptures++
		d.triggeredBy[triggerType]++
		slog.Info("auto screenshot captured", "trigger_type", triggerType)
	} else {
		slog.Error("auto screenshot failed", "trigger_type", triggerType, "error", result.Error)
	}
	return result, true
}

// OnNavigation fires the navigation trigger for a page change.
func (d *Dispatcher) OnNavigation(ctx context.Context, url string, eventContext map[string]any) (capture.Result, bool) {
	return d.Fire(ctx, TypeNavigation, mergeContext(map[string]any{"url": url, "event": "navigation"}, eventContext), false)
}

// OnError fires the error trigger for a page or agent error.
func (d *Dispatcher) OnError(ctx context.Context, message string, eventContext map[string]any) (capture.Result, bool) {
	return d.Fire(ctx, TypeError, mergeContext(map[string]any{"error": message, "event": "error"}, eventContext), false)
}

// OnInteraction fires the interaction trigger for a user action.
func (d *Dispatcher) OnInteraction(ctx context.Context, action string, eventContext map[string]any) (capture.Result, bool) {
	return d.Fire(ctx, TypeInteraction, mergeContext(map[string]any{"action": action, "event": "interaction"}, eventContext), false)
}

// OnTimeout fires the timeout trigger with deadline details.
func (d *Dispatcher) OnTimeout(ctx context.Context, info map[string]any) (capture.Result, bool) {
	return d.Fire(ctx, TypeTimeout, mergeContext(map[string]any{"event": "timeout"}, info), false)
}

// RunPeriodic sleeps interval and fires the periodic trigger until the
// context is cancelled or the dispatcher is disabled. Returns nil on
// clean stop.
func (d *Dispatcher) RunPeriodic(ctx context.Context, interval time.Duration) error {
	slog.Info("periodic screenshots started", "interval", interval)
	for {
		if err := d.sleep(ctx, interval); err != nil {
			slog.Info("periodic screenshots stopped")
			return nil
		}
		if !d.Enabled() {
			slog.Info("periodic screenshots stopped, dispatcher disabled")
			return nil
		}
		d.Fire(ctx, TypePeriodic, map[string]any{"interval": interval.Seconds()}, false)
	}
}

// EnableTrigger flips one trigger slot on or off.
func (d *Dispatcher) EnableTrigger(triggerType Type, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	trig := d.findLocked(triggerType)
	if trig == nil {
		return false
	}
	trig.Enabled = enabled
	slog.Info("trigger toggled", "trigger_type", triggerType, "enabled", enabled)
	return true
}

// ConfigureTrigger replaces the non-nil parts of a trigger slot.
func (d *Dispatcher) ConfigureTrigger(triggerType Type, cfg *capture.Config, condition Condition, metadata map[string]any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	trig := d.findLocked(triggerType)
	if trig == nil {
		return false
	}
	if cfg != nil {
		trig.Config = cfg
	}
	if condition != nil {
		trig.Condition = condition
	}
	if metadata != nil {
		trig.Metadata = metadata
	}
	slog.Info("trigger configured", "trigger_type", triggerType)
	return true
}

// SetEnabled flips the global switch. Disabled dispatchers ignore all
// events, forced or not.
func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
	slog.Info("auto screenshots toggled", "enabled", enabled)
}

// Enabled reports the global switch.
func (d *Dispatcher) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Statistics reports counters, gate configuration and the trigger
// table as a JSON-friendly mapping.
func (d *Dispatcher) Statistics() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	byType := make(map[string]int64, len(d.triggeredBy))
	for t, n := range d.triggeredBy {
		byType[string(t)] = n
	}

	table := make([]map[string]any, 0, len(d.triggers))
	for _, trig := range d.triggers {
		entry := map[string]any{
			"type":    string(trig.Type),
			"enabled": trig.Enabled,
		}
		if trig.Config != nil {
			entry["config"] = map[string]any{
				"full_page": trig.Config.FullPage,
				"timeout":   trig.Config.TimeoutMS,
				"format":    trig.Config.Format,
			}
		}
		table = append(table, entry)
	}

	return map[string]any{
		"auto_stats": map[string]any{
			"auto_screenshots":      d.autoCaptures,
			"triggered_by":          byType,
			"skipped_screenshots":   d.skipped,
			"duplicate_screenshots": d.duplicates,
		},
		"configuration": map[string]any{
			"enabled":             d.enabled,
			"min_interval":        d.opts.MinInterval.Seconds(),
			"max_history":         d.opts.MaxHistory,
			"duplicate_threshold": d.opts.DuplicateThreshold.Seconds(),
		},
		"triggers":     table,
		"history_size": len(d.history),
	}
}

// RecentHistory returns up to limit newest history entries, oldest
// first.
func (d *Dispatcher) RecentHistory(limit int) []HistoryEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if limit <= 0 || limit > len(d.history) {
		limit = len(d.history)
	}
	out := make([]HistoryEntry, limit)
	copy(out, d.history[len(d.history)-limit:])
	return out
}

func (d *Dispatcher) findLocked(triggerType Type) *Trigger {
	for _, trig := range d.triggers {
		if trig.Type == triggerType {
			return trig
		}
	}
	return nil
}

func (d *Dispatcher) shouldCaptureLocked(trig *Trigger, eventContext map[string]any) bool {
	now := d.now()

	if now.Sub(d.lastCapture) < d.opts.MinInterval {
		return false
	}

	if trig.Condition != nil && !evalCondition(trig.Condition, eventContext) {
		return false
	}

	if d.duplicateLocked(trig.Type, now) {
		d.duplicates++
		return false
	}

	return true
}

// duplicateLocked scans the last five history entries for a same-type
// successful capture inside the duplicate window. Failed attempts do
// not suppress a retry.
func (d *Dispatcher) duplicateLocked(triggerType Type, now time.Time) bool {
	start := len(d.history) - 5
	if start < 0 {
		start = 0
	}
	nowUnix := float64(now.UnixNano()) / float64(time.Second)
	for i := len(d.history) - 1; i >= start; i-- {
		entry := d.history[i]
		if entry.TriggerType != triggerType || !entry.Success {
			continue
		}
		if nowUnix-entry.Timestamp < d.opts.DuplicateThreshold.Seconds() {
			return true
		}
	}
	return false
}

func (d *Dispatcher) recordLocked(triggerType Type, result capture.Result) {
	now := d.now()
	d.history = append(d.history, HistoryEntry{
		Timestamp:   float64(now.UnixNano()) / float64(time.Second),
		TriggerType: triggerType,
		Success:     result.Success,
		Path:        result.Path,
		Error:       result.Error,
	})
	// Only a capture that produced a file restarts the interval gate;
	// a failed attempt must not delay the retry.
	if result.Success {
		d.lastCapture = now
	}

	if len(d.history) > d.opts.MaxHistory {
		d.history = d.history[len(d.history)-d.opts.MaxHistory:]
	}
}

func evalCondition(condition Condition, eventContext map[string]any) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("trigger condition panicked", "panic", r)
			ok = false
		}
	}()
	return condition(eventContext)
}

func mergeContext(base, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
