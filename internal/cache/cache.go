// Package cache is a Redis mirror of recently served read models. Every
// operation is a no-op when Redis is not configured or unreachable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	CampaignsTTL = 24 * time.Hour
	SummaryTTL   = 24 * time.Hour
)

const ActiveCampaignsKey = "campaigns:active"

func RewardSummaryKey(userID string) string {
	return fmt.Sprintf("rewards:summary:%s", userID)
}

type Cache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// New connects to redisURL. An empty or unusable URL yields a disabled cache.
func New(redisURL string, logger *slog.Logger) *Cache {
	if redisURL == "" {
		logger.Info("redis not configured, caching disabled")
		return &Cache{logger: logger}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, caching disabled", "error", err)
		return &Cache{logger: logger}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis connection failed, caching disabled", "error", err)
		rdb.Close()
		return &Cache{logger: logger}
	}

	logger.Info("redis connected, caching enabled", "addr", opts.Addr)
	return &Cache{rdb: rdb, logger: logger}
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{rdb: rdb, logger: logger}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON decodes the value at key into dst. It reports false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Ping reports cache health. A disabled cache is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}
