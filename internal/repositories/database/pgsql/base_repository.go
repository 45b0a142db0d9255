package pgsql

import (
	"context"
	"errors"
	"fmt"

	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	"github.com/SscSPs/curtain_escrow_app/internal/platform/txcontext"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool *pgxpool.Pool
}

// db returns the transaction of the unit of work in ctx, or the pool outside one.
func (r *BaseRepository) db(ctx context.Context) querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.Pool
}

// atomic runs fn in the unit of work in ctx, or in a short transaction of its own outside one.
func (r *BaseRepository) atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, r.Pool, func(tx pgx.Tx) error {
		txCtx, _ := txcontext.Begin(ctx, tx)
		return fn(txCtx)
	})
}

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// TxFromContext returns the pgx transaction of the unit of work in ctx.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	u, ok := txcontext.FromContext(ctx)
	if !ok {
		return nil, false
	}
	tx, ok := u.Handle.(pgx.Tx)
	return tx, ok
}

// TxManager runs units of work in PostgreSQL transactions.
type TxManager struct {
	BaseRepository
}

var _ portsrepo.TransactionManager = (*TxManager)(nil)

// NewTxManager creates a transaction manager on pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{BaseRepository: BaseRepository{Pool: pool}}
}

// WithinTx runs fn in one transaction. Callbacks registered with txcontext.AfterCommit run
// after a successful commit, with the caller's context.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	// Will be ignored if transaction is committed successfully
	defer m.Rollback(ctx, tx)

	txCtx, unit := txcontext.Begin(ctx, tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := m.Commit(ctx, tx); err != nil {
		return err
	}
	unit.Committed(ctx)
	return nil
}
