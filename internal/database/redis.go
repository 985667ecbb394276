package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vijayg2124/affilink-performance-hub/internal/config"
	"go.uber.org/zap"
)

// RedisDB owns the client used for change-notification pub/sub and the
// snapshot mirror.
type RedisDB struct {
	Client *redis.Client
	logger *zap.Logger
}

// NewRedisDB connects to Redis and verifies it with a ping. A failure here
// is not fatal for the hub; callers fall back to in-process notifications.
func NewRedisDB(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisDB, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: 5 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connected",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.Int("pool_size", cfg.PoolSize),
	)

	return &RedisDB{
		Client: client,
		logger: logger,
	}, nil
}

// Close releases the client and its pooled connections.
func (r *RedisDB) Close() error {
	if r.Client != nil {
		r.logger.Info("redis connection closed")
		return r.Client.Close()
	}
	return nil
}

// Health reports whether Redis is reachable.
func (r *RedisDB) Health(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
