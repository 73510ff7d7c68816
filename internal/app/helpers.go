package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/repository/redisgeo"
)

var newPool = repository.NewPool

func connectDbWithRetry(
	ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration,
) (*pgxpool.Pool, error) {
	var lastErr error
	const attemptTimeout = 3 * time.Second
	for i := 1; i <= retries; i++ {
		retriesCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		pool, err := newPool(retriesCtx, dsn)
		cancel()
		if err == nil {
			logger.Info("db connected", logx.Int("attempt", i))
			return pool, nil
		}
		lastErr = err
		logger.Warn("db connect failed",
			logx.Int("attempt", i),
			logx.Int("retries", retries),
			logx.Err(err),
		)
		if i < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", retries, lastErr)
}

// connectRedis returns nil when redis is not configured: the store scan and log-only
// notifications take over.
func connectRedis(ctx context.Context, logger logx.Logger, cfg config.Redis) (*redis.Client, error) {
	if !cfg.Enabled() {
		logger.Info("redis disabled, location index and pub/sub are off")
		return nil, nil
	}
	rdb, err := redisgeo.NewClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("redis connect %s: %w", cfg.Addr, err)
	}
	logger.Info("redis connected", logx.String("addr", cfg.Addr))
	return rdb, nil
}
