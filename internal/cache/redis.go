// Resonate - Music Personalization and Embedding Workers
// Copyright 2026 Resonate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonatefm/resonate

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	// Enabled toggles the Redis cache; disabled deployments fall back
	// to the in-memory cache.
	Enabled bool `koanf:"enabled"`

	Addr       string `koanf:"addr"`
	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	DB         int    `koanf:"db"`
	MaxRetries int    `koanf:"max_retries"`

	DialTimeout time.Duration `koanf:"dial_timeout"`
	Timeout     time.Duration `koanf:"timeout"`

	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

// DefaultRedisConfig returns production defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:     true,
		Addr:        "127.0.0.1:6379",
		MaxRetries:  3,
		DialTimeout: 5 * time.Second,
		Timeout:     2 * time.Second,
		DefaultTTL:  time.Minute,
	}
}

// RedisCache implements Cache on a Redis server.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &RedisCache{client: client, defaultTTL: ttl}, nil
}

// Set writes a value with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get reads a value; a missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
