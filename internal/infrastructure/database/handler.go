package database

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// call describes one invocation of a public entry point.
type call struct {
	operation Operation
	intent    Intent
	statement string
	opts      callOptions

	// unobserved calls are logged but not passed to the observer.
	unobserved bool
}

// unitOfWork runs the statements of one call and returns the row count
// reported in its Event.
type unitOfWork func(ctx context.Context, q querier) (int64, error)

// run is the connection lifecycle every entry point goes through except
// SelectQuery:
//  1. open a connection for the call's intent and options
//  2. run work inside an explicit transaction (autocommit) or a scoped
//     database/sql transaction (default)
//  3. release the connection on every exit path
//  4. log failures and notify the observer (health checks are not observed)
func (op *Operator) run(ctx context.Context, c call, work unitOfWork) (int64, error) {
	start := time.Now()

	conn, err := op.connect(ctx, c.intent, c.opts)
	if err != nil {
		op.finish(ctx, c, 0, start, err)
		return 0, err
	}

	var n int64
	unit := func(q querier) error {
		var workErr error
		n, workErr = work(ctx, q)
		return workErr
	}

	if c.opts.autocommit {
		err = op.withTransaction(ctx, conn.conn, c.intent, unit)
	} else {
		err = op.withScope(ctx, conn.conn, unit)
	}

	if closeErr := conn.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("%w: closing connection: %w", ErrConnection, closeErr)
	}
	if err != nil {
		n = 0
	}

	op.finish(ctx, c, n, start, err)
	return n, err
}

// stream opens a read-only connection and hands it to a Rows.
//
// The connection is not released here on success; Rows releases it on
// exhaustion, error or Close, and reports the Event at that point.
func (op *Operator) stream(ctx context.Context, c call) (*Rows, error) {
	start := time.Now()

	conn, err := op.connect(ctx, c.intent, c.opts)
	if err != nil {
		op.finish(ctx, c, 0, start, err)
		return nil, err
	}

	sqlRows, err := conn.conn.QueryContext(ctx, c.statement)
	if err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		err = fmt.Errorf("%w: %w", ErrQuery, err)
		op.finish(ctx, c, 0, start, err)
		return nil, err
	}

	rows, err := newRows(sqlRows, conn, c.opts.asDict)
	if err != nil {
		op.finish(ctx, c, 0, start, err)
		return nil, err
	}
	rows.onClose = func(n int64, err error) {
		op.finish(ctx, c, n, start, err)
	}
	return rows, nil
}

// finish logs the outcome of a call and notifies the observer.
func (op *Operator) finish(ctx context.Context, c call, rows int64, start time.Time, err error) {
	ev := Event{
		ID:         uuid.NewString(),
		Operation:  c.operation,
		Intent:     c.intent,
		Database:   filepath.Base(op.cfg.Path),
		Statement:  c.statement,
		Autocommit: c.opts.autocommit,
		WALMode:    c.opts.walMode,
		Rows:       rows,
		Duration:   time.Since(start),
		At:         start.UTC(),
		Err:        err,
	}

	if err != nil {
		op.logError("database operation failed",
			"operation", c.operation,
			"intent", c.intent.String(),
			"path", op.cfg.Path,
			"error", err,
		)
	} else {
		op.logDebug("database operation completed",
			"operation", c.operation,
			"rows", rows,
			"duration", ev.Duration,
		)
	}

	if c.unobserved {
		return
	}
	if obs := op.getObserver(); obs != nil {
		obs.ObserveOperation(ctx, ev)
	}
}
