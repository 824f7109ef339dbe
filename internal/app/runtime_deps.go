package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/ap"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/platform/cache"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/platform/db"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/shared"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
)

// Dependencies holds the external connections a process runs on. Redis is
// optional: without it numbering and idempotency stay in process.
type Dependencies struct {
	Backend *store.Backend
	Pool    *pgxpool.Pool
	Redis   *redis.Client
}

// OpenDependencies connects the configured store and Redis.
func OpenDependencies(ctx context.Context, cfg *Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Backend: store.NewMemoryBackend()}
	if cfg.StoreDriver == DriverPostgres {
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		deps.Pool = pool
		deps.Backend = store.NewPostgresBackend(pool)
	}

	client, err := cache.New(ctx, cfg.RedisAddr, 0)
	if err != nil {
		logger.Warn("redis unavailable, using in-process counters", slog.Any("error", err))
		if cfg.StoreDriver == DriverPostgres {
			logger.Warn("document numbers restart with the process while redis is down")
		}
	} else {
		deps.Redis = client
	}
	return deps, nil
}

// Sequencer returns the document number source.
func (d *Dependencies) Sequencer() shared.Sequencer {
	if d.Redis != nil {
		return shared.NewRedisSequencer(d.Redis)
	}
	return shared.NewMemorySequencer()
}

// Idempotency returns the payment replay guard, or nil without Redis.
func (d *Dependencies) Idempotency(cfg *Config) ap.IdempotencyGuard {
	if d.Redis == nil {
		return nil
	}
	return shared.NewIdempotencyStore(d.Redis, cfg.IdempotencyTTL)
}

// AsynqOpts points asynq at the same Redis server.
func (d *Dependencies) AsynqOpts(cfg *Config) (asynq.RedisClientOpt, bool) {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr}, d.Redis != nil
}

// Close releases every connection.
func (d *Dependencies) Close() error {
	var firstErr error
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			firstErr = fmt.Errorf("close redis: %w", err)
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	return firstErr
}
