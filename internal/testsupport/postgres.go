package testsupport

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"resonance/internal/adapters/config"
	"resonance/internal/adapters/postgres"
)

// PostgresTestHelper hands repository tests a transaction that is
// rolled back on cleanup, so tests never leave rows behind.
type PostgresTestHelper struct {
	client *postgres.Client
	tx     *sqlx.Tx
	once   sync.Once
}

// NewPostgresTestHelper connects and opens the test transaction.
// Rollback and connection close are registered as test cleanups.
func NewPostgresTestHelper(t *testing.T, cfg config.PostgresConfig) *PostgresTestHelper {
	t.Helper()

	client, err := postgres.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}

	tx, err := client.DB().BeginTxx(context.Background(), nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("failed to start transaction: %v", err)
	}

	h := &PostgresTestHelper{client: client, tx: tx}
	t.Cleanup(h.Rollback)
	t.Cleanup(func() { _ = client.Close() })
	return h
}

// NewTestPostgres is the usual entry point: env-driven config plus a
// fresh helper, skipping when the integration environment is absent.
func NewTestPostgres(t *testing.T) *PostgresTestHelper {
	t.Helper()
	return NewPostgresTestHelper(t, LoadDatabaseConfigsFromEnv(t).Postgres)
}

// Tx returns the test transaction.
func (h *PostgresTestHelper) Tx() *sqlx.Tx { return h.tx }

// DB returns the underlying handle for tests that need it directly.
func (h *PostgresTestHelper) DB() *sqlx.DB { return h.client.DB() }

// Rollback discards the transaction; safe to call more than once.
func (h *PostgresTestHelper) Rollback() {
	h.once.Do(func() { _ = h.tx.Rollback() })
}

// Close is an alias for Rollback.
func (h *PostgresTestHelper) Close() { h.Rollback() }
