package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/ap"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/app"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/inventory"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/observability"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/procurement"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	deps, err := app.OpenDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("open dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("close dependencies", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	infra := app.Infrastructure{
		Backend:     deps.Backend,
		Numbers:     deps.Sequencer(),
		Idempotency: deps.Idempotency(cfg),
		Observer:    metrics,
	}

	var jobHandler *jobs.Handler
	if redisOpts, ok := deps.AsynqOpts(cfg); ok {
		client := jobs.NewClient(redisOpts)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		infra.Notifier = client

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	services := app.NewServices(cfg, infra, logger)
	if cfg.SeedSampleData {
		if err := app.Seed(ctx, services, logger); err != nil {
			logger.Error("seed sample data", slog.Any("error", err))
			os.Exit(1)
		}
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProcurementHandler: procurement.NewHandler(logger, services.Procurement),
		InventoryHandler:   inventory.NewHandler(logger, services.Inventory),
		APHandler:          ap.NewHandler(logger, services.AP),
		JobHandler:         jobHandler,
		Metrics:            metrics,
		StoreDriver:        deps.Backend.Driver(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", deps.Backend.Driver()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
