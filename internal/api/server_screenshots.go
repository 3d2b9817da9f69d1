package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagewatch/shotd/internal/storage"
)

func registerScreenshotHandlers(api huma.API, svc Service) {
	type listInput struct {
		Limit int `query:"limit" default:"0" doc:"Maximum entries to return, 0 = all"`
	}
	type listOutput struct {
		Body struct {
			Screenshots []storage.Entry `json:"screenshots"`
			Count       int             `json:"count"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-screenshots",
		Method:      http.MethodGet,
		Path:        "/api/v1/screenshots",
		Summary:     "List stored screenshots, newest first",
		Tags:        []string{"Screenshots"},
	}, func(ctx context.Context, input *listInput) (*listOutput, error) {
		entries, err := svc.ListScreenshots(ctx, input.Limit)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &listOutput{}
		out.Body.Screenshots = entries
		out.Body.Count = len(entries)
		return out, nil
	})

	type idInput struct {
		ID string `path:"id" doc:"Screenshot identifier (filename stem)"`
	}
	type metadataOutput struct {
		Body map[string]any
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-screenshot-metadata",
		Method:      http.MethodGet,
		Path:        "/api/v1/screenshots/{id}",
		Summary:     "Get a screenshot's metadata sidecar",
		Tags:        []string{"Screenshots"},
	}, func(ctx context.Context, input *idInput) (*metadataOutput, error) {
		doc, err := svc.GetMetadata(ctx, input.ID)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &metadataOutput{}
		out.Body = doc
		return out, nil
	})

	type imageOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-screenshot-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/screenshots/{id}/image",
		Summary:     "Download the screenshot image bytes",
		Tags:        []string{"Screenshots"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Screenshot image",
				Content: map[string]*huma.MediaType{
					"image/png": {
						Schema: &huma.Schema{Type: "string", Format: "binary"},
					},
				},
			},
		},
	}, func(ctx context.Context, input *idInput) (*imageOutput, error) {
		data, contentType, err := svc.ReadScreenshot(ctx, input.ID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &imageOutput{ContentType: contentType, Body: data}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-screenshot",
		Method:      http.MethodDelete,
		Path:        "/api/v1/screenshots/{id}",
		Summary:     "Delete a screenshot and its metadata sidecar",
		Tags:        []string{"Screenshots"},
	}, func(ctx context.Context, input *idInput) (*struct{}, error) {
		if err := svc.DeleteScreenshot(ctx, input.ID); err != nil {
			return nil, mapErr(err)
		}
		return nil, nil
	})

	type orphansOutput struct {
		Body struct {
			Removed int `json:"removed"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "cleanup-orphaned-metadata",
		Method:      http.MethodPost,
		Path:        "/api/v1/screenshots/orphans/cleanup",
		Summary:     "Remove metadata sidecars whose image is gone",
		Tags:        []string{"Screenshots"},
	}, func(ctx context.Context, input *struct{}) (*orphansOutput, error) {
		removed, err := svc.CleanupOrphaned(ctx)
		if err != nil {
			return nil, mapErr(err)
		}
		out := &orphansOutput{}
		out.Body.Removed = removed
		return out, nil
	})
}
