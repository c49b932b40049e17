// Package postgres owns the relational store connection: scripts,
// hooks, topics and rate limit counters.
package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"resonance/internal/adapters/config"
	"resonance/pkg/errors"
)

const (
	connMaxLifetime = time.Hour
	connMaxIdleTime = 30 * time.Minute
)

// Client wraps a pooled sqlx connection.
type Client struct {
	db *sqlx.DB
}

// NewClient connects, sizes the pool from config and verifies the link
// with a ping.
func NewClient(cfg config.PostgresConfig) (*Client, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns / 2)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	return &Client{db: db}, nil
}

// DB exposes the underlying pool for the repositories.
func (c *Client) DB() *sqlx.DB { return c.db }

func (c *Client) Close() error { return c.db.Close() }

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
