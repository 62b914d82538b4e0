package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	httpadapter "github.com/couchcryptid/hydro-telemetry-service/internal/adapter/http"
	"github.com/couchcryptid/hydro-telemetry-service/internal/app"
	"github.com/couchcryptid/hydro-telemetry-service/internal/config"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	engine, err := app.New(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	// Without the scheduler there is no snapshot to wait for; readiness then
	// only requires a loadable inventory.
	var ready sharedobs.ReadinessChecker = engine.Merger
	if cfg.MaterializeEnabled {
		ready = engine.Materializer
	} else {
		logger.Info("snapshot materialization disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, engine.Merger, engine.History, engine.Timestamps, engine.Tiles, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start snapshot scheduler.
	if cfg.MaterializeEnabled {
		go func() {
			if err := engine.Materializer.Run(ctx, cfg.MaterializeInterval); err != nil {
				logger.Error("materializer error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := engine.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
