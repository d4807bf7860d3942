package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// Intent states whether a call only reads or may write.
// Each entry point passes its intent explicitly.
type Intent int

const (
	// ReadWrite opens the file for reading and writing, creating it if missing.
	ReadWrite Intent = iota

	// ReadOnly opens the file with mode=ro; writes fail inside the engine.
	ReadOnly
)

// String returns the intent name used in logs and events.
func (i Intent) String() string {
	switch i {
	case ReadOnly:
		return "read_only"
	case ReadWrite:
		return "read_write"
	default:
		return "unknown"
	}
}

// connection is one engine connection opened for a single call.
// The sql.DB is private to the connection and never pools beyond one handle.
type connection struct {
	db   *sql.DB
	conn *sql.Conn
}

// Close releases the pinned connection and its private handle.
func (c *connection) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
		c.conn = nil
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, err)
		}
		c.db = nil
	}
	return errors.Join(errs...)
}

// dsn builds the go-sqlite3 connection string for one call.
// See: https://github.com/mattn/go-sqlite3#connection-string
//
// The journal mode is only applied to read-write connections: it is a
// persistent property of the file, and a read-only handle cannot change it.
func (op *Operator) dsn(intent Intent, opts callOptions) string {
	params := url.Values{}

	if intent == ReadOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("mode", "rwc")
	}

	if op.cfg.BusyTimeout > 0 {
		params.Set("_busy_timeout", strconv.Itoa(op.cfg.BusyTimeout*msPerSecond))
	}
	if op.cfg.ForeignKeys {
		params.Set("_foreign_keys", "on")
	}
	if opts.walMode && intent == ReadWrite {
		params.Set("_journal_mode", "WAL")
		params.Set("_synchronous", "NORMAL")
	}

	return "file:" + op.cfg.Path + "?" + params.Encode()
}

// connect opens a fresh connection for one call.
//
// Any failure is wrapped in ErrConnection; no partially opened handle is
// returned.
func (op *Operator) connect(ctx context.Context, intent Intent, opts callOptions) (*connection, error) {
	if intent == ReadWrite {
		if dir := filepath.Dir(op.cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, dirPermissions); err != nil {
				return nil, fmt.Errorf("%w: creating database directory: %w", ErrConnection, err)
			}
		}
	}

	db, err := sql.Open(driverName, op.dsn(intent, opts))
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", ErrConnection, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	c := &connection{db: db, conn: conn}
	if err := conn.PingContext(ctx); err != nil {
		c.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: verifying connection: %w", ErrConnection, err)
	}

	return c, nil
}
