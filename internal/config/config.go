// Package config loads agent configuration from environment variables
// and an optional .env file, filling documented defaults once at
// startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pagewatch/shotd/internal/capture"
)

// Settings are the host-facing capture knobs. Out-of-range values are
// replaced by defaults during Load, never later.
type Settings struct {
	AutoScreenshot     bool
	Quality            int
	Format             string
	TimeoutMS          int
	CleanupHours       int
	MaxFiles           int
	TriggerNavigation  bool
	TriggerInteraction bool
	TriggerError       bool
	CreateMetadata     bool
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		AutoScreenshot:     true,
		Quality:            90,
		Format:             "png",
		TimeoutMS:          3000,
		CleanupHours:       24,
		MaxFiles:           1000,
		TriggerNavigation:  true,
		TriggerInteraction: true,
		TriggerError:       true,
		CreateMetadata:     true,
	}
}

// CaptureDefaults expresses the host capture knobs as the base config
// applied to every capture whose request leaves fields unset.
func (s Settings) CaptureDefaults() capture.Config {
	return capture.Config{
		Quality:   s.Quality,
		Format:    s.Format,
		TimeoutMS: s.TimeoutMS,
	}
}

// Config holds all configuration for the screenshot agent.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// HTTP API bind settings
	BindAddr       string
	BindCandidates []string
	AutoFallback   bool

	// Storage settings
	ScreenshotDir string

	// Logging
	LogLevel string
	LogFile  string

	// Browser launch fallback
	LaunchBrowser bool
	BrowserBinary string
	Headless      bool

	// Dispatcher gates
	MinIntervalMS        int
	DuplicateThresholdMS int
	PeriodicIntervalS    int
	TriggerFile          string

	Settings Settings

	// Warnings lists settings that were rejected and replaced with
	// defaults during Load. The caller logs them once the real log
	// handler is installed.
	Warnings []string
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress: getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:    getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),

		BindAddr:       getEnvOrDefault("SHOTD_BIND_ADDR", "127.0.0.1:8170"),
		BindCandidates: splitList(getEnvOrDefault("SHOTD_BIND_CANDIDATES", "127.0.0.1:8171,127.0.0.1:8172")),
		AutoFallback:   getEnvBoolOrDefault("SHOTD_BIND_AUTO_FALLBACK", true),

		ScreenshotDir: getEnvOrDefault("SHOTD_SCREENSHOT_DIR", defaultScreenshotDir()),

		LogLevel: strings.ToLower(getEnvOrDefault("SHOTD_LOG_LEVEL", "info")),
		LogFile:  getEnvOrDefault("SHOTD_LOG_FILE", "logs/shotd.log"),

		LaunchBrowser: getEnvBoolOrDefault("SHOTD_LAUNCH_BROWSER", false),
		BrowserBinary: getEnvOrDefault("SHOTD_BROWSER_BINARY", "chromium"),
		Headless:      getEnvBoolOrDefault("SHOTD_BROWSER_HEADLESS", true),

		MinIntervalMS:        getEnvIntOrDefault("SHOTD_MIN_INTERVAL_MS", 1000),
		DuplicateThresholdMS: getEnvIntOrDefault("SHOTD_DUPLICATE_THRESHOLD_MS", 5000),
		PeriodicIntervalS:    getEnvIntOrDefault("SHOTD_PERIODIC_INTERVAL_S", 30),
		TriggerFile:          getEnvOrDefault("SHOTD_TRIGGER_FILE", ""),

	}
	cfg.Settings, cfg.Warnings = loadSettings()

	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint for the chromedp remote
// allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func loadSettings() (Settings, []string) {
	defaults := DefaultSettings()
	s := Settings{
		AutoScreenshot:     getEnvBoolOrDefault("SHOTD_AUTO_SCREENSHOT", defaults.AutoScreenshot),
		Quality:            getEnvIntOrDefault("SHOTD_SCREENSHOT_QUALITY", defaults.Quality),
		Format:             strings.ToLower(getEnvOrDefault("SHOTD_SCREENSHOT_FORMAT", defaults.Format)),
		TimeoutMS:          getEnvIntOrDefault("SHOTD_SCREENSHOT_TIMEOUT", defaults.TimeoutMS),
		CleanupHours:       getEnvIntOrDefault("SHOTD_CLEANUP_HOURS", defaults.CleanupHours),
		MaxFiles:           getEnvIntOrDefault("SHOTD_MAX_FILES", defaults.MaxFiles),
		TriggerNavigation:  getEnvBoolOrDefault("SHOTD_TRIGGER_NAVIGATION", defaults.TriggerNavigation),
		TriggerInteraction: getEnvBoolOrDefault("SHOTD_TRIGGER_INTERACTION", defaults.TriggerInteraction),
		TriggerError:       getEnvBoolOrDefault("SHOTD_TRIGGER_ERROR", defaults.TriggerError),
		CreateMetadata:     getEnvBoolOrDefault("SHOTD_CREATE_METADATA", defaults.CreateMetadata),
	}
	return normalizeSettings(s)
}

// normalizeSettings replaces every out-of-range value with its default
// and reports what was rejected. This runs exactly once per Load;
// warnings are returned rather than logged because the real log
// handler is not installed yet.
func normalizeSettings(s Settings) (Settings, []string) {
	defaults := DefaultSettings()
	var warnings []string

	if s.Quality < 1 || s.Quality > 100 {
		warnings = append(warnings, fmt.Sprintf("invalid screenshot quality %d, using %d", s.Quality, defaults.Quality))
		s.Quality = defaults.Quality
	}
	switch s.Format {
	case "png", "jpeg", "jpg":
	default:
		warnings = append(warnings, fmt.Sprintf("invalid screenshot format %q, using %q", s.Format, defaults.Format))
		s.Format = defaults.Format
	}
	if s.TimeoutMS < 100 || s.TimeoutMS > 30000 {
		warnings = append(warnings, fmt.Sprintf("invalid screenshot timeout %dms, using %dms", s.TimeoutMS, defaults.TimeoutMS))
		s.TimeoutMS = defaults.TimeoutMS
	}
	if s.CleanupHours < 1 || s.CleanupHours > 168 {
		warnings = append(warnings, fmt.Sprintf("invalid cleanup hours %d, using %d", s.CleanupHours, defaults.CleanupHours))
		s.CleanupHours = defaults.CleanupHours
	}
	if s.MaxFiles < 10 || s.MaxFiles > 10000 {
		warnings = append(warnings, fmt.Sprintf("invalid max files %d, using %d", s.MaxFiles, defaults.MaxFiles))
		s.MaxFiles = defaults.MaxFiles
	}
	return s, warnings
}

func defaultScreenshotDir() string {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "screenshots")
	}
	return "./screenshots"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
