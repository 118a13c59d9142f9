// Package cache provides Redis-backed short-lived claims used to make
// side effects happen at most once across processes.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/vigil/pkg/lifecycle"
)

// Claimer grants exclusive, expiring ownership of a key.
type Claimer interface {
	// Claim reports true when the caller is the first to claim key within ttl.
	// A non-positive ttl uses the configured default.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Held reports whether key is currently claimed, without claiming it.
	Held(ctx context.Context, key string) (bool, error)
	// Release drops a claim so a later attempt can take it.
	Release(ctx context.Context, key string) error
}

// System is a Claimer with lifecycle coordination.
type System interface {
	lifecycle.ReadinessChecker
	Claimer

	Start(lc *lifecycle.Coordinator) error
}

type redisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
	ready  atomic.Bool
}

// New creates a Redis client. The connection is verified on startup.
func New(cfg *Config, logger *slog.Logger) System {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &redisCache{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.ClaimTTLDuration(),
		logger: logger.With("system", "cache"),
	}
}

func (c *redisCache) key(k string) string {
	return c.prefix + ":" + k
}

func (c *redisCache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	ok, err := c.client.SetNX(ctx, c.key(key), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (c *redisCache) Held(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return n > 0, nil
}

func (c *redisCache) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Ready() bool {
	return c.ready.Load()
}

func (c *redisCache) Start(lc *lifecycle.Coordinator) error {
	c.logger.Info("starting cache connection")

	lc.OnStartup(func() {
		if err := c.client.Ping(lc.Context()).Err(); err != nil {
			c.logger.Error("cache ping failed", "error", err)
			return
		}
		c.ready.Store(true)
		c.logger.Info("cache connection established")
	})

	lc.OnClose(func() {
		c.ready.Store(false)
		if err := c.client.Close(); err != nil {
			c.logger.Error("cache close failed", "error", err)
			return
		}
		c.logger.Info("cache connection closed")
	})

	return nil
}
