package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const (
	// DBConnKey carries a request-scoped connection set by middleware.
	DBConnKey contextKey = "db_conn"
	// DBTxKey carries an open transaction for unit-of-work writes.
	DBTxKey contextKey = "db_tx"
)

// ConnFromContext retrieves the request-scoped database connection, if any.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TxFromContext retrieves the open transaction from context, if any.
// Repositories prefer it over the pool so that writes issued inside a
// unit of work commit or roll back together.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// TxManager runs a function inside a single transactional unit of work.
// Implementations must guarantee that either every write issued through
// the returned context commits, or none do.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PGTxManager is the pgx-backed TxManager. It begins a transaction,
// stores it in the context under DBTxKey, and commits when fn returns
// nil. Any error rolls the whole unit back.
type PGTxManager struct {
	pool *pgxpool.Pool
}

func NewPGTxManager(pool *pgxpool.Pool) *PGTxManager {
	return &PGTxManager{pool: pool}
}

func (m *PGTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested units of work join the ambient transaction.
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
