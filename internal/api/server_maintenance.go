package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagewatch/shotd/internal/retention"
)

func registerMaintenanceHandlers(api huma.API, svc Service) {
	type statsOutput struct {
		Body map[string]any
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-statistics",
		Method:      http.MethodGet,
		Path:        "/api/v1/statistics",
		Summary:     "Get manager, filesystem and trigger statistics",
		Tags:        []string{"Maintenance"},
	}, func(ctx context.Context, input *struct{}) (*statsOutput, error) {
		out := &statsOutput{}
		out.Body = svc.Statistics(ctx)
		return out, nil
	})

	type cleanupInput struct {
		Body struct {
			DryRun bool `json:"dry_run,omitempty" doc:"Report the partition without deleting anything"`
		}
	}
	type cleanupOutput struct {
		Body retention.Summary
	}
	huma.Register(api, huma.Operation{
		OperationID: "run-cleanup",
		Method:      http.MethodPost,
		Path:        "/api/v1/cleanup",
		Summary:     "Run a retention pass over the screenshot directory",
		Tags:        []string{"Maintenance"},
	}, func(ctx context.Context, input *cleanupInput) (*cleanupOutput, error) {
		out := &cleanupOutput{}
		out.Body = svc.ManualCleanup(ctx, input.Body.DryRun)
		return out, nil
	})

	type sweepOutput struct {
		Body retention.SweepSummary
	}
	huma.Register(api, huma.Operation{
		OperationID: "sweep-corrupted",
		Method:      http.MethodPost,
		Path:        "/api/v1/cleanup/corrupted",
		Summary:     "Delete screenshots failing size or magic-number checks",
		Tags:        []string{"Maintenance"},
	}, func(ctx context.Context, input *struct{}) (*sweepOutput, error) {
		out := &sweepOutput{}
		out.Body = svc.SweepCorrupted(ctx)
		return out, nil
	})
}
