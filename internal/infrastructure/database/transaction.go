package database

import (
	"context"
	"database/sql"
	"fmt"
)

// querier is the statement surface shared by *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

var (
	_ querier = (*sql.Conn)(nil)
	_ querier = (*sql.Tx)(nil)
)

// beginStatement returns the explicit BEGIN used in autocommit mode.
// Writers take the reserved lock up front so a busy database fails at
// BEGIN instead of midway through the unit of work.
func beginStatement(intent Intent) string {
	if intent == ReadWrite {
		return "BEGIN IMMEDIATE"
	}
	return "BEGIN"
}

// withTransaction runs fn inside an explicit transaction on a connection
// that has no implicit one.
//
// BEGIN is issued before fn runs. On success the transaction is committed.
// On failure it is rolled back, the error is logged, and fn's error is
// returned unchanged.
func (op *Operator) withTransaction(ctx context.Context, conn *sql.Conn, intent Intent, fn func(q querier) error) error {
	if _, err := conn.ExecContext(ctx, beginStatement(intent)); err != nil {
		return fmt.Errorf("%w: begin: %w", ErrTransaction, err)
	}

	if err := fn(conn); err != nil {
		op.rollback(ctx, conn)
		op.logError("transaction rolled back", "error", err)
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		op.rollback(ctx, conn)
		return fmt.Errorf("%w: commit: %w", ErrTransaction, err)
	}

	return nil
}

// rollback issues ROLLBACK even when ctx is already cancelled.
// The engine may have rolled back on its own; that error is only logged.
func (op *Operator) rollback(ctx context.Context, conn *sql.Conn) {
	if _, err := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); err != nil {
		op.logDebug("rollback after failure", "error", err)
	}
}

// withScope uses the connection as a scoped resource: fn runs inside a
// database/sql transaction that commits on clean exit and rolls back when
// fn fails.
func (op *Operator) withScope(ctx context.Context, conn *sql.Conn, fn func(q querier) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrTransaction, err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck // Engine may already have rolled back
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrTransaction, err)
	}
	return nil
}
