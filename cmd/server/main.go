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

	"github.com/JonMunkholm/tenderdesk/internal/config"
	"github.com/JonMunkholm/tenderdesk/internal/core"
	"github.com/JonMunkholm/tenderdesk/internal/logging"
	"github.com/JonMunkholm/tenderdesk/internal/metrics"
	"github.com/JonMunkholm/tenderdesk/internal/store/postgres"
	"github.com/JonMunkholm/tenderdesk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	// Connect to database
	ctx := context.Background()
	pool, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Validate already parsed these; errors cannot occur here
	locked, _ := cfg.Import.LockedStatuses()
	baseline, _ := cfg.Comparison.Baseline()

	var m *metrics.Metrics
	var observer core.Observer
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Prefix)
		observer = m
	}

	service := core.NewService(postgres.New(pool), core.Options{
		Limiter:         core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		Guard:           core.GuardBidStatuses(locked...),
		DefaultBaseline: baseline,
		MaxFileSize:     cfg.Import.MaxFileSize,
		ImportTimeout:   cfg.Import.Timeout,
		Observer:        observer,
	})

	// Start history purge
	scheduler, err := service.StartHistoryPurge(core.HistoryConfig{
		Retention: cfg.History.Retention(),
		Schedule:  cfg.History.PurgeSchedule,
	})
	if err != nil {
		slog.Error("failed to start history purge", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg, m, pool.Ping)

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

		// Stop scheduling purges; wait for a running one
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			slog.Warn("history purge did not finish in time")
		}

		// Stop accepting requests, then wait for imports already running
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		importStatus := service.Limiter().Status()
		if importStatus.Active > 0 {
			slog.Info("waiting for imports to complete", "active", importStatus.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
