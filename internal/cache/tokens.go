// Package cache keeps issued token rows in Redis so resolving a token only needs a
// primary key read of its sensor.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/septivank/energy-metering-ingress/internal/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPrefix = "sensor-token:"

// NewRedisClient creates a Redis client and ties it to the fx lifecycle
func NewRedisClient(lc fx.Lifecycle, logger *zap.Logger, addr, password string, database int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// the cache is optional on the read path, readings still resolve via Postgres
				logger.Warn("redis not reachable, token cache degraded", zap.String("addr", addr), zap.Error(err))
				return nil
			}
			logger.Info("redis connection established", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing redis connection")
			return client.Close()
		},
	})

	return client
}

// store is the subset of the Redis client used by TokenCache
type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// TokenCache is a token cache on Redis
type TokenCache struct {
	rdb store
}

// NewTokenCache creates a token cache on rdb
func NewTokenCache(rdb *redis.Client) *TokenCache {
	return &TokenCache{rdb: rdb}
}

type entry struct {
	Code       string    `json:"code"`
	SensorID   int64     `json:"sensor_id"`
	IssuedAt   time.Time `json:"issued_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

// Get returns the cached token row for code. A missing key is a miss, not an error.
func (c *TokenCache) Get(ctx context.Context, code string) (db.SensorToken, bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return db.SensorToken{}, false, nil
	}
	if err != nil {
		return db.SensorToken{}, false, fmt.Errorf("failed to read token cache: %w", err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return db.SensorToken{}, false, fmt.Errorf("failed to decode cached token: %w", err)
	}

	return db.SensorToken{
		Code:     e.Code,
		SensorID: e.SensorID,
		IssuedAt: e.IssuedAt,
		TTL:      time.Duration(e.TTLSeconds) * time.Second,
	}, true, nil
}

// Put stores tok under its code for ttl
func (c *TokenCache) Put(ctx context.Context, tok db.SensorToken, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	body, err := json.Marshal(entry{
		Code:       tok.Code,
		SensorID:   tok.SensorID,
		IssuedAt:   tok.IssuedAt,
		TTLSeconds: int64(tok.TTL / time.Second),
	})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := c.rdb.Set(ctx, keyPrefix+tok.Code, body, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}

	return nil
}
