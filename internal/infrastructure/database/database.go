package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database configuration constants.
const (
	// driverName is the database/sql driver registered by go-sqlite3.
	driverName = "sqlite3"

	// dirPermissions is the permission mode for a database directory created on first write.
	dirPermissions = 0750

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// healthCheckTimeout bounds HealthCheck when the caller's context has no deadline.
	healthCheckTimeout = 5 * time.Second
)

// Config contains Operator configuration.
// These map to the database section of the sqliteop config file.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// It is not validated; the engine creates the file on first write.
	Path string

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	// Zero keeps the go-sqlite3 default of 5 seconds.
	BusyTimeout int

	// ForeignKeys enables foreign key enforcement on every connection.
	ForeignKeys bool

	// Autocommit is the default for calls that do not pass WithAutocommit.
	Autocommit bool

	// WALMode is the default for calls that do not pass WithWALMode.
	WALMode bool
}

// Logger is the logging capability the Operator needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Error(msg string, args ...any)
}

// Operator is a facade over one SQLite database file.
//
// It holds no connection between calls: every method opens its own
// connection, runs its unit of work inside a transaction, and releases the
// connection before returning. SelectQuery is the only exception; its
// connection belongs to the returned Rows until they are exhausted or closed.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Concurrent writers contend
//     on SQLite's own file locking; WAL mode lets readers run alongside one writer.
type Operator struct {
	cfg Config

	logger   Logger
	observer Observer
	mu       sync.RWMutex
}

// New creates an Operator for the database file at path using default settings.
func New(path string) *Operator {
	return NewWithConfig(Config{Path: path})
}

// NewWithConfig creates an Operator with explicit connection defaults.
func NewWithConfig(cfg Config) *Operator {
	return &Operator{cfg: cfg}
}

// Path returns the filesystem path to the database file.
func (op *Operator) Path() string {
	return op.cfg.Path
}

// SetLogger sets the logger used for operation diagnostics.
// If not set, failures are only reported through returned errors.
func (op *Operator) SetLogger(logger Logger) {
	op.mu.Lock()
	op.logger = logger
	op.mu.Unlock()
}

// SetObserver sets the observer notified after every operation.
// Use Observers to fan out to several sinks.
func (op *Operator) SetObserver(observer Observer) {
	op.mu.Lock()
	op.observer = observer
	op.mu.Unlock()
}

func (op *Operator) getLogger() Logger {
	op.mu.RLock()
	defer op.mu.RUnlock()
	return op.logger
}

func (op *Operator) getObserver() Observer {
	op.mu.RLock()
	defer op.mu.RUnlock()
	return op.observer
}

func (op *Operator) logError(msg string, args ...any) {
	if logger := op.getLogger(); logger != nil {
		logger.Error(msg, args...)
	}
}

func (op *Operator) logDebug(msg string, args ...any) {
	if logger := op.getLogger(); logger != nil {
		logger.Debug(msg, args...)
	}
}

// HealthCheck verifies the database file can be opened and queried.
// It opens a read-only connection, so a file that was never written fails.
// Health checks do not reach the observer, so polling them leaves
// operation statistics untouched.
func (op *Operator) HealthCheck(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
	}

	c := call{
		operation: OpHealthCheck,
		intent:    ReadOnly,
		statement: "SELECT 1",
		opts:      op.resolveOptions(nil),

		unobserved: true,
	}
	_, err := op.run(ctx, c, func(ctx context.Context, q querier) (int64, error) {
		var result int
		if err := q.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
			return 0, fmt.Errorf("database health check failed: %w", err)
		}
		return 1, nil
	})
	return err
}
