package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the subset of pgx execution methods shared by pools and
// transactions, so repository internals can run against either.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TransactionManager abstracts transaction creation so the domain
// layer does not depend on a concrete pool.
type TransactionManager interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// PostgresTransactionManager implements TransactionManager using pgx.
type PostgresTransactionManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresTransactionManager creates a new PostgreSQL transaction manager.
// lockTimeout: maximum time to wait for a row lock (0 = no timeout).
func NewPostgresTransactionManager(pool *pgxpool.Pool, lockTimeout time.Duration) *PostgresTransactionManager {
	return &PostgresTransactionManager{
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

// BeginTx starts a new transaction with the configured lock timeout.
func (m *PostgresTransactionManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if m.lockTimeout > 0 {
		timeoutMs := int(m.lockTimeout.Milliseconds())
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeoutMs))
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	return tx, nil
}
