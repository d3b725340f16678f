package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/esgmap/internal/config"
	"github.com/JonMunkholm/esgmap/internal/core"
	"github.com/JonMunkholm/esgmap/internal/logging"
	"github.com/JonMunkholm/esgmap/internal/store"
	"github.com/JonMunkholm/esgmap/internal/web"
	"github.com/joho/godotenv"
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

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"history", cfg.Database.Enabled(),
		"max_concurrent_runs", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	var (
		recorder core.RunRecorder
		history  core.RunLister
		db       *store.Store
	)

	if cfg.Database.Enabled() {
		db, err = store.New(jobCtx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(jobCtx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}

		go db.StartRetention(jobCtx, store.RetentionConfig{
			Days:     cfg.Database.RetentionDays,
			Interval: cfg.Database.RetentionInterval,
		})

		recorder = core.MultiRecorder{db, core.LogRecorder{}}
		history = db
	} else {
		mem := core.NewMemoryHistory(cfg.Database.HistoryLimit)
		slog.Info("run history kept in memory", "limit", cfg.Database.HistoryLimit)
		recorder = core.MultiRecorder{mem, core.LogRecorder{}}
		history = mem
	}

	service, err := core.NewService(cfg, recorder)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}
	slog.Info("mapping loaded", "mapping", cfg.Mapping.String())

	server := web.NewServer(service, history, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for active runs to finish recording (with timeout)
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		cancelJobs()
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
