package redis

import (
	"context"
	"time"

	"knowledge-ledger/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

const (
	pingAttempts = 5
	pingBackoff  = time.Second
)

// New returns nil when REDIS.ADDR is empty; the reward code sequence, idempotency hints and the
// task client all degrade without it. An unreachable server is logged, never fatal.
func New(lc fx.Lifecycle, c *config.Config) *redis.Client {
	if c.Redis.Addr == "" {
		zap.L().Info("REDIS.ADDR not set, running without redis")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		PoolTimeout: c.Redis.PoolTimeout,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			waitReady(ctx, rdb, zap.L().With(zap.String("redis_addr", c.Redis.Addr), zap.Int("redis_db", c.Redis.DB)))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return rdb
}

func waitReady(ctx context.Context, rdb *redis.Client, log *zap.Logger) {
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		err := rdb.Ping(ctx).Err()
		if err == nil {
			log.Info("redis connected")
			return
		}
		log.Warn("redis not ready", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(pingBackoff * time.Duration(attempt)):
		}
	}
	log.Error("redis unreachable, continuing without a warm connection")
}
