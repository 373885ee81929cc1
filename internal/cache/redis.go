// Package cache holds the Redis-backed principal cache and login limiter.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client. All methods are safe for concurrent use.
type Cache struct {
	client       *redis.Client
	principalTTL time.Duration
	now          func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithPrincipalTTL sets how long a resolved principal stays cached.
func WithPrincipalTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.principalTTL = ttl
		}
	}
}

// WithClock replaces time.Now for rate limit bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New connects to redisURL and pings it. Pool sizing comes from the URL
// (pool_size, min_idle_conns, ...) with small defaults otherwise.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = 10
	}
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = 2
	}
	if opt.ConnMaxIdleTime == 0 {
		opt.ConnMaxIdleTime = 5 * time.Minute
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewFromClient(client, opts...), nil
}

// NewFromClient wraps an existing client. The Cache takes ownership of it.
func NewFromClient(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		client:       client,
		principalTTL: defaultPrincipalTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping reports whether Redis is reachable. Used by /readyz.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the client to the audit publisher and worker, which share
// the connection pool.
func (c *Cache) Client() *redis.Client {
	return c.client
}
