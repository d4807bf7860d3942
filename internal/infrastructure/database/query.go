package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ExecResult summarises a mutation.
type ExecResult struct {
	// RowsAffected is the number of rows changed. For bulk calls it is the
	// sum over all value tuples.
	RowsAffected int64

	// LastInsertID is the rowid of the last inserted row, when any.
	LastInsertID int64
}

// add folds a driver result into r.
// go-sqlite3 never fails RowsAffected or LastInsertId.
func (r *ExecResult) add(res sql.Result) {
	if n, err := res.RowsAffected(); err == nil {
		r.RowsAffected += n
	}
	if id, err := res.LastInsertId(); err == nil {
		r.LastInsertID = id
	}
}

// checkQuery rejects blank statements before a connection is opened.
func checkQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// ExecuteQuery runs a statement that takes no parameters and returns no
// rows: schema definition, DELETE, DROP and the like.
//
// Example:
//
//	_, err := op.ExecuteQuery(ctx, `CREATE TABLE Person (Email TEXT NOT NULL, Score INT)`)
func (op *Operator) ExecuteQuery(ctx context.Context, query string, opts ...Option) (ExecResult, error) {
	if err := checkQuery(query); err != nil {
		return ExecResult{}, err
	}

	c := call{
		operation: OpExecute,
		intent:    ReadWrite,
		statement: query,
		opts:      op.resolveOptions(opts),
	}

	var result ExecResult
	_, err := op.run(ctx, c, func(ctx context.Context, q querier) (int64, error) {
		res, err := q.ExecContext(ctx, query)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrQuery, err)
		}
		result.add(res)
		return result.RowsAffected, nil
	})
	if err != nil {
		return ExecResult{}, err
	}
	return result, nil
}

// InsertUpdateRow runs one parameterised mutation with a single tuple of
// bound values. Use BulkInsertUpdateRows for many tuples.
//
// Example:
//
//	_, err := op.InsertUpdateRow(ctx,
//	    "INSERT INTO Person VALUES (?, ?, ?, ?)",
//	    []any{"abc@email.com", "ab", "c", 95},
//	    database.WithAutocommit(true))
func (op *Operator) InsertUpdateRow(ctx context.Context, query string, values []any, opts ...Option) (ExecResult, error) {
	if err := checkQuery(query); err != nil {
		return ExecResult{}, err
	}

	c := call{
		operation: OpInsertUpdateRow,
		intent:    ReadWrite,
		statement: query,
		opts:      op.resolveOptions(opts),
	}

	var result ExecResult
	_, err := op.run(ctx, c, func(ctx context.Context, q querier) (int64, error) {
		res, err := q.ExecContext(ctx, query, values...)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrQuery, err)
		}
		result.add(res)
		return result.RowsAffected, nil
	})
	if err != nil {
		return ExecResult{}, err
	}
	return result, nil
}

// BulkInsertUpdateRows prepares query once and executes it for every tuple
// in values, in order, as a single unit of work. If any tuple fails the
// whole batch is rolled back.
//
// An empty values slice is a no-op and opens no connection.
func (op *Operator) BulkInsertUpdateRows(ctx context.Context, query string, values [][]any, opts ...Option) (ExecResult, error) {
	if err := checkQuery(query); err != nil {
		return ExecResult{}, err
	}
	if len(values) == 0 {
		return ExecResult{}, nil
	}

	c := call{
		operation: OpBulkInsertUpdateRows,
		intent:    ReadWrite,
		statement: query,
		opts:      op.resolveOptions(opts),
	}

	var result ExecResult
	_, err := op.run(ctx, c, func(ctx context.Context, q querier) (int64, error) {
		stmt, err := q.PrepareContext(ctx, query)
		if err != nil {
			return 0, fmt.Errorf("%w: preparing statement: %w", ErrQuery, err)
		}
		defer stmt.Close() //nolint:errcheck // Statement is scoped to this unit of work

		for i, tuple := range values {
			res, err := stmt.ExecContext(ctx, tuple...)
			if err != nil {
				return 0, fmt.Errorf("%w: row %d: %w", ErrQuery, i, err)
			}
			result.add(res)
		}
		return result.RowsAffected, nil
	})
	if err != nil {
		return ExecResult{}, err
	}
	return result, nil
}

// SelectQuery runs a read-only query and returns a lazy cursor over its rows.
//
// The returned Rows owns a read-only connection. It is released when the
// rows are exhausted, when iteration fails, or on Close, whichever comes
// first. Always defer Close when the loop may stop early.
//
// SelectQuery opens no explicit transaction; WithAutocommit has no effect.
// AsDict(true) populates Row.Record for every row.
func (op *Operator) SelectQuery(ctx context.Context, query string, opts ...Option) (*Rows, error) {
	if err := checkQuery(query); err != nil {
		return nil, err
	}

	c := call{
		operation: OpSelect,
		intent:    ReadOnly,
		statement: query,
		opts:      op.resolveOptions(opts),
	}
	return op.stream(ctx, c)
}

// SelectQueryFetchAll runs a read-only query and loads the whole result
// into memory. Prefer SelectQuery for large results.
func (op *Operator) SelectQueryFetchAll(ctx context.Context, query string, opts ...Option) (*ResultSet, error) {
	if err := checkQuery(query); err != nil {
		return nil, err
	}

	c := call{
		operation: OpSelectFetchAll,
		intent:    ReadOnly,
		statement: query,
		opts:      op.resolveOptions(opts),
	}

	var rs *ResultSet
	_, err := op.run(ctx, c, func(ctx context.Context, q querier) (int64, error) {
		rows, err := q.QueryContext(ctx, query)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrQuery, err)
		}
		rs, err = collectResultSet(rows, c.opts.asDict)
		if err != nil {
			return 0, err
		}
		return int64(rs.Len()), nil
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}
