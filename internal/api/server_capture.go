package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagewatch/shotd/internal/capture"
)

func registerCaptureHandlers(api huma.API, svc Service) {
	type captureBody struct {
		FullPage  bool           `json:"full_page,omitempty" doc:"Capture the full page instead of the viewport"`
		Quality   int            `json:"quality,omitempty" doc:"JPEG quality (10-100), default 90"`
		Format    string         `json:"format,omitempty" doc:"Image format: png, jpeg or jpg"`
		TimeoutMS int            `json:"timeout,omitempty" doc:"Capture deadline in milliseconds (100-30000)"`
		Width     int            `json:"width,omitempty" doc:"Viewport clip width in pixels"`
		Height    int            `json:"height,omitempty" doc:"Viewport clip height in pixels"`
		Filename  string         `json:"filename,omitempty" doc:"Custom filename, generated when empty"`
		Metadata  map[string]any `json:"metadata,omitempty" doc:"Extra metadata stored with the capture"`
	}
	type captureInput struct {
		Body captureBody
	}
	type captureOutput struct {
		Body capture.Result
	}

	huma.Register(api, huma.Operation{
		OperationID: "capture-screenshot",
		Method:      http.MethodPost,
		Path:        "/api/v1/screenshots",
		Summary:     "Capture a screenshot of the current page",
		Tags:        []string{"Capture"},
	}, func(ctx context.Context, input *captureInput) (*captureOutput, error) {
		// Unset fields stay zero so the manager's host defaults apply.
		cfg := capture.Config{
			FullPage:  input.Body.FullPage,
			Quality:   input.Body.Quality,
			Format:    input.Body.Format,
			TimeoutMS: input.Body.TimeoutMS,
			Width:     input.Body.Width,
			Height:    input.Body.Height,
		}

		result := svc.Capture(ctx, &cfg, input.Body.Filename, input.Body.Metadata)
		out := &captureOutput{}
		out.Body = result
		return out, nil
	})
}
