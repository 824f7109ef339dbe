package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/app"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/observability"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	redisOpts, ok := deps.AsynqOpts(cfg)
	if !ok {
		logger.Error("worker needs redis", slog.String("addr", cfg.RedisAddr))
		os.Exit(1)
	}

	observed := observability.NewMetrics()
	metrics := observed.Jobs()
	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: observed.Handler(), ReadTimeout: cfg.AppReadTimeout}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}
	notifyJob := jobs.NewPaymentNotifyJob(logger, metrics, nil)
	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskPaymentNotify, Handler: notifyJob.Handle},
	}
	var cron []jobs.CronRegistration

	// Scans read the shared document store; a memory store here would be empty.
	if cfg.StoreDriver == app.DriverPostgres {
		services := app.NewServices(cfg, app.Infrastructure{
			Backend: deps.Backend,
			Numbers: deps.Sequencer(),
		}, logger)
		overdueJob := &jobs.OverdueScanJob{Source: services.AP, Logger: logger, Metrics: metrics}
		stockJob := &jobs.LowStockScanJob{Source: services.Inventory, Logger: logger, Metrics: metrics}
		handlers = append(handlers,
			jobs.TaskHandler{Type: jobs.TaskOverdueScan, Handler: overdueJob.Handle},
			jobs.TaskHandler{Type: jobs.TaskLowStockScan, Handler: stockJob.Handle},
		)
		cron = append(cron,
			jobs.CronRegistration{Spec: cfg.OverdueScanCron, Task: jobs.NewOverdueScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			jobs.CronRegistration{Spec: cfg.LowStockScanCron, Task: jobs.NewLowStockScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		)
	} else {
		logger.Warn("scans disabled for the memory store", slog.String("store", cfg.StoreDriver))
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron:        cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
