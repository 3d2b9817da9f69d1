package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pagewatch/shotd/internal/agent"
	"github.com/pagewatch/shotd/internal/agenttool"
	"github.com/pagewatch/shotd/internal/api"
	"github.com/pagewatch/shotd/internal/browser"
	"github.com/pagewatch/shotd/internal/capture"
	"github.com/pagewatch/shotd/internal/config"
	"github.com/pagewatch/shotd/internal/manager"
	"github.com/pagewatch/shotd/internal/netutil"
	"github.com/pagewatch/shotd/internal/trigger"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load agent config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}
	for _, warning := range cfg.Warnings {
		slog.Warn("setting rejected", "detail", warning)
	}

	slog.Info("agent config loaded",
		"bind_addr", cfg.BindAddr,
		"cdp_url", cfg.CDPURL(),
		"screenshot_dir", cfg.ScreenshotDir,
		"auto_screenshot", cfg.Settings.AutoScreenshot,
		"launch_browser", cfg.LaunchBrowser,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.BindCandidates, cfg.AutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	provider := capture.NewCDPProvider(cfg.CDPURL())

	var launcher *browser.Launcher
	if err := provider.Connect(context.Background()); err != nil {
		if !cfg.LaunchBrowser {
			slog.Error("failed to connect CDP", "cdp_url", cfg.CDPURL(), "error", err)
			os.Exit(1)
		}
		slog.Info("CDP unreachable, launching browser", "cdp_url", cfg.CDPURL())
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			Binary:     cfg.BrowserBinary,
			Headless:   cfg.Headless,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		if err := provider.Connect(context.Background()); err != nil {
			slog.Error("failed to connect CDP after launch", "cdp_url", cfg.CDPURL(), "error", err)
			launcher.Stop()
			os.Exit(1)
		}
	}
	defer func() {
		if launcher != nil {
			launcher.Stop()
		}
	}()

	hostDefaults := cfg.Settings.CaptureDefaults()
	mgr, err := manager.New(provider, cfg.ScreenshotDir, manager.Options{
		MaxAge:      time.Duration(cfg.Settings.CleanupHours) * time.Hour,
		MaxFiles:    cfg.Settings.MaxFiles,
		AutoCleanup: true,
		Sidecars:    cfg.Settings.CreateMetadata,
		Defaults:    &hostDefaults,
	})
	if err != nil {
		slog.Error("failed to build screenshot manager", "error", err)
		os.Exit(1)
	}
	if err := mgr.Initialize(context.Background()); err != nil {
		slog.Error("failed to initialize screenshot manager", "error", err)
		os.Exit(1)
	}
	defer mgr.Teardown()

	dispatcher, err := buildDispatcher(cfg, mgr)
	if err != nil {
		slog.Error("failed to build trigger dispatcher", "error", err)
		os.Exit(1)
	}

	periodicCtx, periodicCancel := context.WithCancel(context.Background())
	defer periodicCancel()
	if cfg.PeriodicIntervalS > 0 {
		go func() {
			interval := time.Duration(cfg.PeriodicIntervalS) * time.Second
			if err := dispatcher.RunPeriodic(periodicCtx, interval); err != nil {
				slog.Error("periodic trigger loop failed", "error", err)
			}
		}()
	}

	tool, err := agenttool.New(mgr, dispatcher)
	if err != nil {
		slog.Error("failed to build agent tool", "error", err)
		os.Exit(1)
	}

	svc := agent.NewService(mgr, dispatcher, tool)
	h := api.NewServer(svc)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("agent listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("agent server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	periodicCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("agent shutdown failed", "error", err)
	}
}

// buildDispatcher assembles trigger slots from the optional trigger
// file, falling back to the built-in defaults, then applies the
// per-type settings toggles.
func buildDispatcher(cfg *config.Config, mgr *manager.Manager) (*trigger.Dispatcher, error) {
	triggers := trigger.DefaultTriggers()
	if cfg.TriggerFile != "" {
		tf, err := config.LoadTriggerFile(cfg.TriggerFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("trigger file not found, using defaults", "path", cfg.TriggerFile)
		case err != nil:
			return nil, err
		default:
			triggers, err = convertTriggers(tf)
			if err != nil {
				return nil, err
			}
			slog.Info("loaded trigger file", "path", cfg.TriggerFile, "triggers", len(triggers))
		}
	}

	d, err := trigger.NewDispatcher(mgr, triggers, trigger.Options{
		MinInterval:        time.Duration(cfg.MinIntervalMS) * time.Millisecond,
		DuplicateThreshold: time.Duration(cfg.DuplicateThresholdMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	d.EnableTrigger(trigger.TypeNavigation, cfg.Settings.TriggerNavigation)
	d.EnableTrigger(trigger.TypeInteraction, cfg.Settings.TriggerInteraction)
	d.EnableTrigger(trigger.TypeError, cfg.Settings.TriggerError)
	d.SetEnabled(cfg.Settings.AutoScreenshot)
	return d, nil
}

func convertTriggers(tf *config.TriggerFile) ([]*trigger.Trigger, error) {
	out := make([]*trigger.Trigger, 0, len(tf.Triggers))
	for _, entry := range tf.Triggers {
		typ, err := trigger.ParseType(entry.Type)
		if err != nil {
			return nil, err
		}
		// Unset fields stay zero so the manager's host defaults apply
		// at capture time.
		out = append(out, &trigger.Trigger{
			Type:    typ,
			Enabled: entry.On(),
			Config: &capture.Config{
				FullPage:  entry.FullPage,
				TimeoutMS: entry.TimeoutMS,
				Quality:   entry.Quality,
				Format:    entry.Format,
			},
			Metadata: entry.Metadata,
		})
	}
	return out, nil
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
