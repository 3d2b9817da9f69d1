package capture

import (
	"fmt"
	"strings"
	"time"
)

// Bounds for capture configuration fields. Values outside these ranges
// are rejected at construction time; clamping untrusted input is the
// job of the settings layer, never this one.
const (
	MinTimeoutMS = 100
	MaxTimeoutMS = 30000
	MinQuality   = 10
	MaxQuality   = 100
	MaxDimension = 10000
)

// Config describes a single capture request. A zero Width and Height
// means "no clip"; both must be set together. Configs are value
// objects: build a fresh one per request instead of mutating.
type Config struct {
	FullPage  bool   `json:"full_page" yaml:"full_page"`
	TimeoutMS int    `json:"timeout_ms" yaml:"timeout_ms"`
	Quality   int    `json:"quality" yaml:"quality"`
	Format    string `json:"format" yaml:"format"`
	Width     int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height    int    `json:"height,omitempty" yaml:"height,omitempty"`
}

// DefaultConfig returns the documented default capture configuration.
func DefaultConfig() Config {
	return Config{TimeoutMS: 3000, Quality: 90, Format: "png"}
}

// Merged returns c with zero-valued fields taken from base. FullPage
// carries over from c unchanged; there is no "unset" for a bool.
func (c Config) Merged(base Config) Config {
	if c.TimeoutMS == 0 {
		c.TimeoutMS = base.TimeoutMS
	}
	if c.Quality == 0 {
		c.Quality = base.Quality
	}
	if c.Format == "" {
		c.Format = base.Format
	}
	if c.Width == 0 && c.Height == 0 {
		c.Width = base.Width
		c.Height = base.Height
	}
	return c
}

// NewConfig fills unset fields with defaults and validates the result.
// It fails fast with a VALIDATION CodedError carrying every violated
// constraint, not just the first.
func NewConfig(c Config) (Config, error) {
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 3000
	}
	if c.Quality == 0 {
		c.Quality = 90
	}
	if c.Format == "" {
		c.Format = "png"
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if issues := c.Issues(); len(issues) > 0 {
		return Config{}, newError(CodeValidation, strings.Join(issues, "; "), nil)
	}
	return c, nil
}

// Issues returns every constraint the config violates, empty if valid.
func (c Config) Issues() []string {
	var issues []string
	if c.TimeoutMS < MinTimeoutMS || c.TimeoutMS > MaxTimeoutMS {
		issues = append(issues, fmt.Sprintf("timeout must be between %d and %dms, got %d", MinTimeoutMS, MaxTimeoutMS, c.TimeoutMS))
	}
	if c.Quality < MinQuality || c.Quality > MaxQuality {
		issues = append(issues, fmt.Sprintf("quality must be between %d and %d, got %d", MinQuality, MaxQuality, c.Quality))
	}
	switch c.Format {
	case "png", "jpeg", "jpg":
	default:
		issues = append(issues, fmt.Sprintf("format must be \"png\", \"jpeg\", or \"jpg\", got %q", c.Format))
	}
	if c.Width != 0 && (c.Width < 0 || c.Width > MaxDimension) {
		issues = append(issues, fmt.Sprintf("width must be between 1 and %d pixels, got %d", MaxDimension, c.Width))
	}
	if c.Height != 0 && (c.Height < 0 || c.Height > MaxDimension) {
		issues = append(issues, fmt.Sprintf("height must be between 1 and %d pixels, got %d", MaxDimension, c.Height))
	}
	if (c.Width == 0) != (c.Height == 0) {
		issues = append(issues, "width and height must be specified together")
	}
	return issues
}

// Validate reports all violations as a single VALIDATION error.
func (c Config) Validate() error {
	if issues := c.Issues(); len(issues) > 0 {
		return newError(CodeValidation, strings.Join(issues, "; "), nil)
	}
	return nil
}

// Timeout returns the capture deadline as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// JPEG reports whether the config asks for a JPEG encoding.
func (c Config) JPEG() bool {
	return c.Format == "jpeg" || c.Format == "jpg"
}

// Clipped reports whether the config requests viewport clipping.
func (c Config) Clipped() bool {
	return c.Width > 0 && c.Height > 0
}
