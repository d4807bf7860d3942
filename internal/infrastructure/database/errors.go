package database

import "errors"

// Domain errors for the database package.
//
// Engine errors (constraint violations, syntax errors, missing tables) are
// wrapped, not replaced: use errors.As with sqlite3.Error to inspect them.
//
//	if errors.Is(err, database.ErrConnection) {
//	    // the file could not be opened
//	}
var (
	// ErrConnection is returned when a connection to the database file cannot be opened.
	ErrConnection = errors.New("database: connection failed")

	// ErrTransaction is returned when BEGIN, COMMIT or ROLLBACK itself fails.
	ErrTransaction = errors.New("database: transaction failed")

	// ErrQuery is returned when a statement fails inside the engine.
	ErrQuery = errors.New("database: query failed")

	// ErrEmptyQuery is returned when a statement string is blank.
	ErrEmptyQuery = errors.New("database: empty query")

	// ErrRowsClosed is returned when reading from a Rows that was already released.
	ErrRowsClosed = errors.New("database: rows closed")
)
