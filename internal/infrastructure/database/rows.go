package database

import (
	"database/sql"
	"fmt"
	"iter"
	"strings"
)

// Record is a row keyed by the statement's column names.
type Record map[string]any

// Row is one result row.
//
// Values holds the columns positionally. Record is only populated when the
// call requested AsDict(true).
type Row struct {
	Values []any
	Record Record
}

// newRecord pairs columns with values. A repeated column name keeps the
// right-most value.
func newRecord(columns []string, values []any) Record {
	rec := make(Record, len(columns))
	for i, name := range columns {
		if i < len(values) {
			rec[name] = values[i]
		}
	}
	return rec
}

// Rows is a lazy cursor returned by SelectQuery.
//
// Rows owns its read-only connection and releases it when iteration reaches
// the end, when a row fails to scan, or when Close is called. Close is
// idempotent; callers that may stop early should defer it. Ranging over All
// releases the connection even on break.
//
// Rows is not safe for concurrent use and cannot be restarted.
type Rows struct {
	rows    *sql.Rows
	conn    *connection
	columns []string
	blob    []bool
	asDict  bool

	current Row
	count   int64
	err     error
	closed  bool

	// onClose reports the call outcome once the connection is released.
	onClose func(n int64, err error)
}

// newRows wraps an open cursor. On failure both rows and conn are released.
func newRows(rows *sql.Rows, conn *connection, asDict bool) (*Rows, error) {
	columns, err := rows.Columns()
	if err != nil {
		rows.Close() //nolint:errcheck // Best effort cleanup on error path
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: reading columns: %w", ErrQuery, err)
	}

	blob, err := blobColumns(rows, len(columns))
	if err != nil {
		rows.Close() //nolint:errcheck // Best effort cleanup on error path
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: reading column types: %w", ErrQuery, err)
	}

	return &Rows{
		rows:    rows,
		conn:    conn,
		columns: columns,
		blob:    blob,
		asDict:  asDict,
	}, nil
}

// Columns returns the column names of the result set.
func (r *Rows) Columns() []string {
	return r.columns
}

// Next advances to the next row. It returns false, and releases the
// connection, when the result set is exhausted or an error occurs.
func (r *Rows) Next() bool {
	if r.closed {
		return false
	}

	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.err = fmt.Errorf("%w: %w", ErrQuery, err)
		}
		r.Close() //nolint:errcheck // Error recorded in r.err
		return false
	}

	values, err := scanValues(r.rows, r.blob)
	if err != nil {
		r.err = fmt.Errorf("%w: scanning row: %w", ErrQuery, err)
		r.Close() //nolint:errcheck // Error recorded in r.err
		return false
	}

	r.current = Row{Values: values}
	if r.asDict {
		r.current.Record = newRecord(r.columns, values)
	}
	r.count++
	return true
}

// Row returns the row loaded by the last successful Next.
func (r *Rows) Row() Row {
	return r.current
}

// Err returns the error, if any, that ended iteration.
func (r *Rows) Err() error {
	return r.err
}

// Close releases the cursor and its connection. Calling Close more than
// once is a no-op.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.current = Row{}

	var closeErr error
	if err := r.rows.Close(); err != nil {
		closeErr = fmt.Errorf("%w: closing cursor: %w", ErrQuery, err)
	}
	if err := r.conn.Close(); err != nil && closeErr == nil {
		closeErr = fmt.Errorf("%w: closing connection: %w", ErrConnection, err)
	}
	if r.err == nil {
		r.err = closeErr
	}

	if r.onClose != nil {
		r.onClose(r.count, r.err)
	}
	return closeErr
}

// All returns an iterator over the remaining rows.
//
// The connection is released when the loop ends for any reason, including
// break. A failure is yielded once as a final (Row{}, err) pair.
//
//	for row, err := range rows.All() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(row.Values...)
//	}
func (r *Rows) All() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		defer r.Close() //nolint:errcheck // Error surfaced through r.Err

		if r.closed {
			yield(Row{}, ErrRowsClosed)
			return
		}

		for r.Next() {
			if !yield(r.current, nil) {
				return
			}
		}
		if err := r.Err(); err != nil {
			yield(Row{}, err)
		}
	}
}

// ResultSet is a fully materialised result from SelectQueryFetchAll.
type ResultSet struct {
	Columns []string
	Rows    []Row
	asDict  bool
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

// AsDict reports whether the call asked for key-value records.
func (rs *ResultSet) AsDict() bool {
	return rs.asDict
}

// Values returns the positional values of every row.
func (rs *ResultSet) Values() [][]any {
	out := make([][]any, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = row.Values
	}
	return out
}

// Records returns an iterator that builds a Record for each fetched row on
// demand. Nothing is re-read from the database.
func (rs *ResultSet) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, row := range rs.Rows {
			if !yield(newRecord(rs.Columns, row.Values)) {
				return
			}
		}
	}
}

// collectResultSet drains rows into memory and closes them.
func collectResultSet(rows *sql.Rows, asDict bool) (*ResultSet, error) {
	defer rows.Close() //nolint:errcheck // Errors surface through rows.Err

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns: %w", ErrQuery, err)
	}
	blob, err := blobColumns(rows, len(columns))
	if err != nil {
		return nil, fmt.Errorf("%w: reading column types: %w", ErrQuery, err)
	}

	rs := &ResultSet{Columns: columns, Rows: []Row{}, asDict: asDict}
	for rows.Next() {
		values, err := scanValues(rows, blob)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning row: %w", ErrQuery, err)
		}
		rs.Rows = append(rs.Rows, Row{Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return rs, nil
}

// blobColumns marks the columns declared as BLOB. Their []byte values are
// kept as bytes; every other []byte is returned as a string.
func blobColumns(rows *sql.Rows, n int) ([]bool, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	blob := make([]bool, n)
	for i, ct := range types {
		if i < n {
			blob[i] = strings.Contains(strings.ToUpper(ct.DatabaseTypeName()), "BLOB")
		}
	}
	return blob, nil
}

// scanValues reads the current row into a fresh slice.
func scanValues(rows *sql.Rows, blob []bool) ([]any, error) {
	values := make([]any, len(blob))
	dest := make([]any, len(blob))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok && !blob[i] {
			values[i] = string(b)
		}
	}
	return values, nil
}
