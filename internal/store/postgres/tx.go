package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type txKey struct{}

// TxFromContext extracts the transaction attached to ctx, or nil if
// none is in progress.
func TxFromContext(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// ContextWithTx returns a context carrying tx, the session-scoped
// transaction every mutating store call runs inside.
func ContextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// BeginTx starts a new transaction and attaches it to the returned
// context.
func (s *Store) BeginTx(ctx context.Context) (context.Context, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctx, fmt.Errorf("begin transaction: %w", err)
	}
	return ContextWithTx(ctx, tx), nil
}

// CommitTx commits the transaction carried by ctx.
func (s *Store) CommitTx(ctx context.Context) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}
	return tx.Commit()
}

// RollbackTx rolls back the transaction carried by ctx, if any.
func (s *Store) RollbackTx(ctx context.Context) error {
	tx := TxFromContext(ctx)
	if tx == nil {
		return nil
	}
	return tx.Rollback()
}

// WithTx runs fn inside a new transaction, committing on success and
// rolling back if fn returns an error. Callers use it where several
// writes must commit together (run submission with its jobs, bulk
// run deletion); single-row updates such as UpdateRun and UpdateJob are
// not wrapped in it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		_ = s.RollbackTx(txCtx)
		return err
	}

	return s.CommitTx(txCtx)
}

// querier is the sqlx-compatible subset of *sql.DB / *sql.Tx that row
// execution needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier returns the transaction in ctx if one is active, else the
// pooled connection, mirroring the teacher's BaseStore.Querier.
func (s *Store) Querier(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}
