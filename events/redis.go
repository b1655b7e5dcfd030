package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/config"
)

// Channel is the Redis pub/sub channel external consumers listen on.
const Channel = "submitflow:events"

// RedisBus wraps a MemoryBus for in-process subscribers and additionally
// publishes every event as JSON on a Redis channel. Redis publish failures
// are logged and dropped; the in-process stream stays authoritative.
type RedisBus struct {
	*MemoryBus
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBus connects to Redis and returns the combined bus. The connection
// is verified eagerly so misconfiguration surfaces at startup.
func NewRedisBus(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisBus{
		MemoryBus: NewMemoryBus(),
		client:    client,
		logger:    logger.With(zap.String("component", "events")),
	}, nil
}

// Publish fans out locally and mirrors the event to Redis.
func (b *RedisBus) Publish(ctx context.Context, e Event) {
	b.MemoryBus.Publish(ctx, e)

	payload, err := json.Marshal(e)
	if err != nil {
		b.logger.Warn("event marshal failed", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, Channel, payload).Err(); err != nil {
		b.logger.Warn("redis publish failed", zap.Error(err))
	}
}

// Close closes the local bus and the Redis connection.
func (b *RedisBus) Close() error {
	b.MemoryBus.Close()
	return b.client.Close()
}
