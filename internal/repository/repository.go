// Package repository stores users and audit events in PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool defaults when no Option overrides them.
const (
	defaultMaxConns          = 10
	defaultMinConns          = 2
	defaultHealthCheckPeriod = 30 * time.Second
)

// Repository is the pgx-backed user store. It satisfies service.UserStore
// and the audit reader/writer interfaces.
type Repository struct {
	pool *pgxpool.Pool
}

// Option adjusts the pool configuration before it is opened.
type Option func(*pgxpool.Config)

// WithMaxConns caps the number of open connections.
func WithMaxConns(n int32) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// WithMinConns keeps n idle connections warm.
func WithMinConns(n int32) Option {
	return func(c *pgxpool.Config) {
		if n >= 0 {
			c.MinConns = n
		}
	}
}

// New opens a pool and verifies it with a ping.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = defaultMaxConns
	config.MinConns = defaultMinConns
	config.HealthCheckPeriod = defaultHealthCheckPeriod
	for _, opt := range opts {
		opt(config)
	}
	if config.MinConns > config.MaxConns {
		config.MinConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// Ping reports whether the database is reachable. Used by /readyz.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool exposes the pool to integration tests that need raw SQL.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}
