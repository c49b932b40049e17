// Package clickhouse owns the connection to the sample history store.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"resonance/internal/adapters/config"
	"resonance/pkg/errors"
)

// Client wraps the native ClickHouse connection. Engagement samples and
// trend snapshots live here; Postgres keeps the relational side.
type Client struct {
	conn driver.Conn
}

// NewClient connects with LZ4 compression and verifies the link with a
// ping before handing the client out.
func NewClient(cfg config.ClickHouseConfig) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to clickhouse")
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to ping clickhouse")
	}

	return &Client{conn: conn}, nil
}

// Conn exposes the native connection for batch writers and repos.
func (c *Client) Conn() driver.Conn { return c.conn }

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Health(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Exec runs a statement that returns no rows.
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	return c.conn.Exec(ctx, query, args...)
}

// Query selects rows into dest.
func (c *Client) Query(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return c.conn.Select(ctx, dest, query, args...)
}

// AsyncInsert appends one struct through the batch API, the fast path
// for single-row inserts.
func (c *Client) AsyncInsert(ctx context.Context, query string, data interface{}) error {
	batch, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	if err := batch.AppendStruct(data); err != nil {
		return err
	}
	return batch.Send()
}
