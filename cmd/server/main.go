package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheetview/internal/config"
	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/logging"
	"github.com/JonMunkholm/sheetview/internal/memory"
	"github.com/JonMunkholm/sheetview/internal/prefs"
	"github.com/JonMunkholm/sheetview/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	store, err := prefs.Open(ctx, cfg.Prefs.Backend, cfg.Prefs.Path, cfg.Prefs.DatabaseURL)
	if err != nil {
		logger.Error("failed to open preference store", "backend", cfg.Prefs.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("preference store ready", "backend", cfg.Prefs.Backend)

	service := core.NewService(serviceConfig(cfg), logger)

	sampler := memory.NewProcessSampler(cfg.Memory.LimitBytes)
	monitor := memory.NewMonitor(sampler, service, memory.Config{
		MinInterval: cfg.Memory.MinSampleInterval,
		PollHigh:    cfg.Memory.PollHigh,
		PollMedium:  cfg.Memory.PollMedium,
		PollLow:     cfg.Memory.PollLow,
	}, logger)
	logger.Info("memory limit resolved", "limit", core.FormatSize(sampler.Limit()))

	server := web.NewServer(service, store, monitor, cfg)

	// Background loops stop when jobCtx is cancelled.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go monitor.Run(jobCtx)
	go service.StartSweeper(jobCtx, cfg.Cache.SweepInterval)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		active := service.Runner().Limiter().Status().Active
		if active > 0 {
			logger.Info("cancelling parse jobs", "active", active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Warn("parse jobs did not stop in time", "error", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// serviceConfig maps the environment configuration onto the service.
func serviceConfig(cfg *config.Config) core.Config {
	return core.Config{
		MaxFileSize: cfg.Parse.MaxFileSize,
		Runner: core.RunnerConfig{
			SyncThreshold: cfg.Parse.SyncThreshold,
			EventBuffer:   cfg.Parse.EventBuffer,
			JobTimeout:    cfg.Parse.JobTimeout,
			MaxConcurrent: cfg.Parse.MaxConcurrent,
			MaxWait:       cfg.Parse.MaxWaitTime,
		},
		DataCapacity:           cfg.Cache.DataCapacity,
		DataTTL:                cfg.Cache.DataTTL,
		RenderCapacity:         cfg.Cache.RenderCapacity,
		RenderTTL:              cfg.Cache.RenderTTL,
		RenderCapUnderPressure: cfg.Cache.RenderCapUnderPressure,
		PageSize:               cfg.Window.PageSize,
		FrameInterval:          cfg.Window.FrameInterval,
		BatchSize:              cfg.Window.BatchSize,
		ViewportRows:           cfg.Window.ViewportRows,
	}
}
