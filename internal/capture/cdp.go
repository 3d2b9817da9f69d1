package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const probeTimeout = 2 * time.Second

// CDPProvider captures screenshots from a Chromium tab over the
// DevTools protocol using chromedp.
type CDPProvider struct {
	cdpURL string

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	unavailable atomic.Bool
	caps        Capabilities
}

// NewCDPProvider creates a provider targeting the given CDP HTTP
// endpoint. Call Connect before capturing.
func NewCDPProvider(cdpURL string) *CDPProvider {
	return &CDPProvider{
		cdpURL: cdpURL,
		caps: Capabilities{
			Formats:          []string{"png", "jpeg", "jpg"},
			FullPage:         true,
			ViewportClipping: true,
			QualityControl:   true,
			TimeoutControl:   true,
			MaxTimeoutMS:     MaxTimeoutMS,
			MaxWidth:         MaxDimension,
			MaxHeight:        MaxDimension,
		},
	}
}

// Connect attaches to the browser behind the CDP endpoint.
func (p *CDPProvider) Connect(ctx context.Context) error {
	slog.Info("connecting capture provider", "cdp_url", p.cdpURL)

	p.allocCtx, p.allocCancel = chromedp.NewRemoteAllocator(context.Background(), p.cdpURL)
	p.browserCtx, p.browserCancel = chromedp.NewContext(p.allocCtx)

	stop := propagateCancel(ctx, p.browserCancel)
	err := chromedp.Run(p.browserCtx)
	stop()
	if err != nil {
		p.Cleanup()
		return newError(CodeUnavailable, fmt.Sprintf("failed to attach to browser at %s", p.cdpURL), err)
	}

	p.unavailable.Store(false)
	slog.Info("capture provider attached", "cdp_url", p.cdpURL)
	return nil
}

// Capture renders the current page to outputPath. The config is first
// re-validated against this provider's capability ceilings, which may
// be tighter than the generic construction bounds.
func (p *CDPProvider) Capture(ctx context.Context, cfg Config, outputPath string) (Result, error) {
	if err := p.validateAgainstCaps(cfg); err != nil {
		return Result{}, err
	}

	if p.unavailable.Load() || p.browserCtx == nil {
		return Result{}, newError(CodeUnavailable, "capture provider is not available", nil)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, newError(CodeStorageIO, fmt.Sprintf("create output directory for %s", outputPath), err)
	}

	start := time.Now()
	// chromedp actions must run on the browser context chain, so the
	// caller context is watched instead of passed to Run.
	runCtx, cancel := context.WithTimeout(p.browserCtx, cfg.Timeout())
	defer cancel()
	stop := propagateCancel(ctx, cancel)
	defer stop()

	var buf []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := page.CaptureScreenshot()
		if cfg.JPEG() {
			params = params.WithFormat(page.CaptureScreenshotFormatJpeg).WithQuality(int64(cfg.Quality))
		} else {
			params = params.WithFormat(page.CaptureScreenshotFormatPng)
		}
		if cfg.FullPage {
			params = params.WithCaptureBeyondViewport(true)
		}
		if cfg.Clipped() {
			params = params.WithClip(&page.Viewport{
				X:      0,
				Y:      0,
				Width:  float64(cfg.Width),
				Height: float64(cfg.Height),
				Scale:  1,
			})
		}
		data, err := params.Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("screenshot capture cancelled: %w", ctxErr)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, newError(CodeTimeout, fmt.Sprintf("screenshot timeout after %dms", cfg.TimeoutMS), err)
		}
		return Result{}, newError(CodeUnavailable, "screenshot capture failed", err)
	}

	if err := os.WriteFile(outputPath, buf, 0o644); err != nil {
		return Result{}, newError(CodeStorageIO, fmt.Sprintf("write screenshot %s", outputPath), err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return Result{}, newError(CodeUnavailable, "screenshot file was not created", err)
	}

	metadata := map[string]any{
		"file_size":       info.Size(),
		"format":          cfg.Format,
		"full_page":       cfg.FullPage,
		"capture_time_ms": time.Since(start).Milliseconds(),
		"provider":        "chromedp",
	}
	if cfg.JPEG() {
		metadata["quality"] = cfg.Quality
	}
	if cfg.Clipped() {
		metadata["dimensions"] = map[string]int{"width": cfg.Width, "height": cfg.Height}
	}
	if pageInfo := p.pageInfo(); pageInfo != nil {
		metadata["page_info"] = pageInfo
	}

	slog.Info("screenshot captured", "path", outputPath, "bytes", info.Size(), "format", cfg.Format)
	return Succeeded(outputPath, metadata), nil
}

// pageInfo queries URL, title and viewport for metadata enrichment.
// Failures degrade to a nil map; they never fail the capture.
func (p *CDPProvider) pageInfo() map[string]any {
	infoCtx, cancel := context.WithTimeout(p.browserCtx, probeTimeout)
	defer cancel()

	var (
		url      string
		title    string
		viewport struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		}
	)
	err := chromedp.Run(infoCtx,
		chromedp.Location(&url),
		chromedp.Title(&title),
		chromedp.Evaluate(`({width: window.innerWidth, height: window.innerHeight})`, &viewport),
	)
	if err != nil {
		slog.Warn("could not collect page info", "error", err)
		return nil
	}

	return map[string]any{
		"url":      url,
		"title":    title,
		"viewport": map[string]int{"width": viewport.Width, "height": viewport.Height},
	}
}

// IsAvailable probes the browser session. A failed probe marks the
// provider unavailable so later captures fail fast.
func (p *CDPProvider) IsAvailable(ctx context.Context) bool {
	if p.unavailable.Load() || p.browserCtx == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(p.browserCtx, probeTimeout)
	defer cancel()
	stop := propagateCancel(ctx, cancel)
	defer stop()

	var n int
	if err := chromedp.Run(probeCtx, chromedp.Evaluate("1 + 1", &n)); err != nil {
		if ctx.Err() != nil {
			// Caller gave up; that says nothing about the browser.
			return false
		}
		slog.Warn("capture provider probe failed", "error", err)
		p.unavailable.Store(true)
		return false
	}
	return true
}

// Capabilities returns a copy of the advertised capability set.
func (p *CDPProvider) Capabilities() Capabilities {
	caps := p.caps
	caps.Formats = append([]string(nil), p.caps.Formats...)
	return caps
}

// Cleanup detaches from the browser and marks the provider unavailable.
func (p *CDPProvider) Cleanup() {
	slog.Info("cleaning up capture provider")
	p.unavailable.Store(true)
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
}

// propagateCancel cancels a chromedp run when the caller's context
// ends first. The returned stop function releases the watcher.
func propagateCancel(caller context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-caller.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (p *CDPProvider) validateAgainstCaps(cfg Config) error {
	if !p.caps.Supports(cfg.Format) {
		return newError(CodeValidation, fmt.Sprintf("format %q not supported (supported: %v)", cfg.Format, p.caps.Formats), nil)
	}
	if cfg.TimeoutMS > p.caps.MaxTimeoutMS {
		return newError(CodeValidation, fmt.Sprintf("timeout %dms exceeds maximum %dms", cfg.TimeoutMS, p.caps.MaxTimeoutMS), nil)
	}
	if cfg.Width > p.caps.MaxWidth {
		return newError(CodeValidation, fmt.Sprintf("width %dpx exceeds maximum %dpx", cfg.Width, p.caps.MaxWidth), nil)
	}
	if cfg.Height > p.caps.MaxHeight {
		return newError(CodeValidation, fmt.Sprintf("height %dpx exceeds maximum %dpx", cfg.Height, p.caps.MaxHeight), nil)
	}
	return nil
}
