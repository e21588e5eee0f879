package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"activation-server/internal/entitlement"
)

// Redis keys for cached entitlement status
const (
	// StatusKeyPrefix is the prefix for per-device status keys.
	// Format: activation:status:{deviceCode}
	StatusKeyPrefix = "activation:status"

	// StatusTTL bounds how stale a cached status can get. The database
	// reconciles on read, so an expired key only costs one extra query.
	StatusTTL = 24 * time.Hour
)

// RedisStatusCache mirrors the most recently derived device status into
// Redis so edge readers (dashboards, the websocket feed) can answer
// "what state is this device in" without a database round trip. Writes
// are best effort; the cache is never the authorization source.
type RedisStatusCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStatusCache connects to Redis and verifies connectivity. A
// failed ping is logged but not fatal; the cache starts degraded and
// recovers on its own once Redis is reachable.
func NewRedisStatusCache(addr, password string, db int, logger zerolog.Logger) *RedisStatusCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := &RedisStatusCache{
		client: client,
		logger: logger.With().Str("component", "RedisStatusCache").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Str("addr", addr).Msg("Redis unavailable, status cache degraded")
	} else {
		c.logger.Info().Str("addr", addr).Msg("Redis status cache connected")
	}

	return c
}

func statusKey(code string) string {
	return fmt.Sprintf("%s:%s", StatusKeyPrefix, code)
}

// SetStatus records the latest derived status for a device code. Errors
// are logged and swallowed: a missed cache write must never fail the
// entitlement operation that triggered it.
func (c *RedisStatusCache) SetStatus(ctx context.Context, code string, status entitlement.Status) {
	if err := c.client.Set(ctx, statusKey(code), string(status), StatusTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("device_code", code).Msg("Failed to cache device status")
	}
}

// GetStatus returns the cached status for a device code, or ("", false)
// on a miss or Redis error. Callers fall back to the database.
func (c *RedisStatusCache) GetStatus(ctx context.Context, code string) (entitlement.Status, bool) {
	val, err := c.client.Get(ctx, statusKey(code)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("device_code", code).Msg("Failed to read cached status")
		return "", false
	}
	return entitlement.Status(val), true
}

// Invalidate drops the cached status for a device code.
func (c *RedisStatusCache) Invalidate(ctx context.Context, code string) {
	if err := c.client.Del(ctx, statusKey(code)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("device_code", code).Msg("Failed to invalidate cached status")
	}
}

// Close releases the Redis connection.
func (c *RedisStatusCache) Close() error {
	return c.client.Close()
}
