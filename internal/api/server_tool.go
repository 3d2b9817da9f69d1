package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagewatch/shotd/internal/agenttool"
)

func registerToolHandlers(api huma.API, svc Service) {
	type toolInput struct {
		Body agenttool.Request
	}
	type toolOutput struct {
		Body map[string]any
	}
	huma.Register(api, huma.Operation{
		OperationID: "invoke-tool",
		Method:      http.MethodPost,
		Path:        "/api/v1/tool",
		Summary:     "Invoke one typed tool operation",
		Description: "Dispatches a closed set of operations: capture, statistics, cleanup, sweep_corrupted, list, delete, fire_trigger, configure_trigger.",
		Tags:        []string{"Tool"},
	}, func(ctx context.Context, input *toolInput) (*toolOutput, error) {
		response, err := svc.InvokeTool(ctx, input.Body)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		out := &toolOutput{}
		out.Body = response
		return out, nil
	})
}
