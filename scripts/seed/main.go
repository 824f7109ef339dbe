// Command seed loads the sample suppliers and stock cards into the configured
// store without starting the API.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/app"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	if cfg.StoreDriver == app.DriverMemory {
		logger.Warn("memory store selected, seeded data is discarded on exit")
	}

	deps, err := app.OpenDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("open dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = deps.Close() }()

	services := app.NewServices(cfg, app.Infrastructure{Backend: deps.Backend, Numbers: deps.Sequencer()}, logger)
	if err := app.Seed(ctx, services, logger); err != nil {
		logger.Error("seed", slog.Any("error", err))
		os.Exit(1)
	}
}
