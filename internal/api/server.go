// Package api serves the screenshot agent's HTTP control surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pagewatch/shotd/internal/agenttool"
	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/retention"
	"github.com/pagewatch/shotd/internal/storage"
	"github.com/pagewatch/shotd/internal/trigger"
)

// Service is the narrow surface the HTTP layer needs.
type Service interface {
	Capture(ctx context.Context, cfg *capture.Config, filename string, metadata map[string]any) capture.Result
	Statistics(ctx context.Context) map[string]any
	ManualCleanup(ctx context.Context, dryRun bool) retention.Summary
	SweepCorrupted(ctx context.Context) retention.SweepSummary
	ListScreenshots(ctx context.Context, limit int) ([]storage.Entry, error)
	GetMetadata(ctx context.Context, id string) (map[string]any, error)
	ReadScreenshot(ctx context.Context, id string) ([]byte, string, error)
	DeleteScreenshot(ctx context.Context, id string) error
	CleanupOrphaned(ctx context.Context) (int, error)
	FireTrigger(ctx context.Context, triggerType trigger.Type, eventContext map[string]any, force bool) (capture.Result, bool)
	EnableTrigger(ctx context.Context, triggerType trigger.Type, enabled bool) bool
	SetAutoCapture(ctx context.Context, enabled bool)
	RecentHistory(ctx context.Context, limit int) []trigger.HistoryEntry
	InvokeTool(ctx context.Context, req agenttool.Request) (map[string]any, error)
}

func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Screenshot Agent API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerCaptureHandlers(api, svc)
	registerScreenshotHandlers(api, svc)
	registerMaintenanceHandlers(api, svc)
	registerTriggerHandlers(api, svc)
	registerToolHandlers(api, svc)
	registerMiscHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *capture.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case capture.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case capture.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case capture.CodeTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case capture.CodeUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
