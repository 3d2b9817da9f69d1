package capture

import "context"

// Capabilities advertises what a provider supports. Callers must not
// assume capability beyond what is advertised here.
type Capabilities struct {
	Formats          []string `json:"formats"`
	FullPage         bool     `json:"full_page"`
	ViewportClipping bool     `json:"viewport_clipping"`
	QualityControl   bool     `json:"quality_control"`
	TimeoutControl   bool     `json:"timeout_control"`
	MaxTimeoutMS     int      `json:"max_timeout"`
	MaxWidth         int      `json:"max_width"`
	MaxHeight        int      `json:"max_height"`
}

// Supports reports whether the capability set includes the format.
func (c Capabilities) Supports(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Provider renders the current page to an image file. Implementations
// classify failures with CodedError; the manager converts those into
// failed Results at its boundary.
type Provider interface {
	// Capture writes a screenshot to outputPath. A non-nil error is a
	// CodedError (VALIDATION, CAPTURE_TIMEOUT, PROVIDER_UNAVAILABLE or
	// STORAGE_IO); on success the Result carries path and metadata.
	Capture(ctx context.Context, cfg Config, outputPath string) (Result, error)

	// IsAvailable performs a cheap liveness probe. A failed probe makes
	// the provider unavailable until re-established; later Capture
	// calls fail fast without probing again.
	IsAvailable(ctx context.Context) bool

	// Capabilities returns the provider's advertised capability set.
	Capabilities() Capabilities

	// Cleanup releases provider resources.
	Cleanup()
}
