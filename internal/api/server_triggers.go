package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/trigger"
)

func registerTriggerHandlers(api huma.API, svc Service) {
	type fireBody struct {
		Type    string         `json:"type" doc:"Trigger type: navigation, error, interaction, timeout, manual or periodic"`
		Context map[string]any `json:"context,omitempty" doc:"Event context merged into the capture metadata"`
		Force   bool           `json:"force,omitempty" doc:"Skip interval, condition and duplicate gates"`
	}
	type fireInput struct {
		Body fireBody
	}
	type fireOutput struct {
		Body struct {
			Fired  bool            `json:"fired"`
			Result *capture.Result `json:"result,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "fire-trigger",
		Method:      http.MethodPost,
		Path:        "/api/v1/triggers/fire",
		Summary:     "Fire an auto-capture trigger event",
		Tags:        []string{"Triggers"},
	}, func(ctx context.Context, input *fireInput) (*fireOutput, error) {
		triggerType, err := trigger.ParseType(input.Body.Type)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		result, fired := svc.FireTrigger(ctx, triggerType, input.Body.Context, input.Body.Force)
		out := &fireOutput{}
		out.Body.Fired = fired
		if fired {
			out.Body.Result = &result
		}
		return out, nil
	})

	type enableInput struct {
		Type string `path:"type" doc:"Trigger type to toggle"`
		Body struct {
			Enabled bool `json:"enabled"`
		}
	}
	type enableOutput struct {
		Body struct {
			Type    string `json:"type"`
			Enabled bool   `json:"enabled"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "enable-trigger",
		Method:      http.MethodPut,
		Path:        "/api/v1/triggers/{type}",
		Summary:     "Enable or disable one trigger slot",
		Tags:        []string{"Triggers"},
	}, func(ctx context.Context, input *enableInput) (*enableOutput, error) {
		triggerType, err := trigger.ParseType(input.Type)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		if !svc.EnableTrigger(ctx, triggerType, input.Body.Enabled) {
			return nil, huma.Error404NotFound("no trigger slot for type " + input.Type)
		}
		out := &enableOutput{}
		out.Body.Type = input.Type
		out.Body.Enabled = input.Body.Enabled
		return out, nil
	})

	type autoCaptureInput struct {
		Body struct {
			Enabled bool `json:"enabled"`
		}
	}
	type autoCaptureOutput struct {
		Body struct {
			Enabled bool `json:"enabled"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "set-auto-capture",
		Method:      http.MethodPut,
		Path:        "/api/v1/triggers",
		Summary:     "Enable or disable all auto-captures",
		Tags:        []string{"Triggers"},
	}, func(ctx context.Context, input *autoCaptureInput) (*autoCaptureOutput, error) {
		svc.SetAutoCapture(ctx, input.Body.Enabled)
		out := &autoCaptureOutput{}
		out.Body.Enabled = input.Body.Enabled
		return out, nil
	})

	type historyInput struct {
		Limit int `query:"limit" default:"10" doc:"Maximum history entries to return"`
	}
	type historyOutput struct {
		Body struct {
			History []trigger.HistoryEntry `json:"history"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-trigger-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/triggers/history",
		Summary:     "Get recent auto-capture history",
		Tags:        []string{"Triggers"},
	}, func(ctx context.Context, input *historyInput) (*historyOutput, error) {
		out := &historyOutput{}
		out.Body.History = svc.RecentHistory(ctx, input.Limit)
		return out, nil
	})
}
