package testhelpers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDatabase is a disposable Postgres instance with the full schema
// applied, backed by a throwaway container.
type TestDatabase struct {
	Pool    *pgxpool.Pool
	cleanup func()
}

// Close terminates the container and releases the pool.
func (db *TestDatabase) Close() {
	if db.cleanup != nil {
		db.cleanup()
	}
}

// NewTestDatabase starts a Postgres container, applies the goose
// migrations from migrationsDir and returns a ready pool.
func NewTestDatabase(t *testing.T, migrationsDir string) *TestDatabase {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("outcry_test"),
		postgres.WithUsername("outcry"),
		postgres.WithPassword("outcry"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "failed to create connection pool")

	applyMigrations(t, pool, migrationsDir)

	return &TestDatabase{
		Pool: pool,
		cleanup: func() {
			pool.Close()
			if err := container.Terminate(ctx); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		},
	}
}

// applyMigrations runs goose over a database/sql handle derived from
// the pgx pool config. Goose does not speak pgx natively.
func applyMigrations(t *testing.T, pool *pgxpool.Pool, migrationsDir string) {
	t.Helper()

	connStr := stdlib.RegisterConnConfig(pool.Config().ConnConfig)
	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err, "failed to open sql.DB for goose")
	defer db.Close()

	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, migrationsDir), "failed to run migrations")
}

// CleanDatabase truncates every table so a shared container can be
// reused across tests.
func CleanDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	for _, query := range []string{
		"TRUNCATE TABLE bids CASCADE",
		"TRUNCATE TABLE auctions CASCADE",
		"TRUNCATE TABLE outbox_events CASCADE",
	} {
		_, err := pool.Exec(ctx, query)
		require.NoError(t, err, "failed to truncate: %s", query)
	}
}
