package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	type deepHealthOutput struct {
		Body struct {
			Status map[string]any `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "deep-health", Method: http.MethodGet, Path: "/api/v1/health/deep", Summary: "Manager and provider health", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*deepHealthOutput, error) {
			stats := svc.Statistics(ctx)
			out := &deepHealthOutput{}
			if status, ok := stats["status"].(map[string]any); ok {
				out.Body.Status = status
			} else {
				out.Body.Status = map[string]any{"state": "unknown"}
			}
			return out, nil
		})
}
