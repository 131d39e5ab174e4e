// Package cache stores serialized report results. Keys embed the dataset
// fingerprint, so a reload never serves results of an earlier snapshot.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JoacoLucen/EPH-Insight-App/platform/config"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "reports:"
	defaultTTL = 30 * time.Minute
)

// Cache is a byte cache for report results.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key builds the cache key of a report for one dataset fingerprint.
func Key(fingerprint, report, params string) string {
	if params == "" {
		return keyPrefix + fingerprint + ":" + report
	}
	return keyPrefix + fingerprint + ":" + report + ":" + params
}

// RedisCache keeps results in Redis with a fixed time to live.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the configured Redis.
func NewRedisCache(cfg config.ReportCacheConfig) (*RedisCache, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCacheFromClient(redis.NewClient(opt), cfg.GetReportCacheTTL()), nil
}

// NewRedisCacheFromClient wraps an existing client. A non-positive ttl uses
// the default of 30 minutes.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached value and whether it was present.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Noop never stores anything. It is used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte) error         { return nil }

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = Noop{}
)
