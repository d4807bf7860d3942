package database

import (
	"context"
	"time"
)

// Operation names a public Operator entry point.
type Operation string

// Operations reported in events.
const (
	OpExecute              Operation = "execute_query"
	OpInsertUpdateRow      Operation = "insert_update_row"
	OpBulkInsertUpdateRows Operation = "bulk_insert_update_rows"
	OpSelect               Operation = "select_query"
	OpSelectFetchAll       Operation = "select_query_fetchall"
	OpMigrate              Operation = "migrate"
	OpHealthCheck          Operation = "health_check"
)

// Mutates reports whether the operation may change the database.
func (o Operation) Mutates() bool {
	switch o {
	case OpExecute, OpInsertUpdateRow, OpBulkInsertUpdateRows, OpMigrate:
		return true
	default:
		return false
	}
}

// Event describes one finished Operator call.
//
// Statement is the SQL text as given by the caller. Bound values are never
// included.
type Event struct {
	ID         string
	Operation  Operation
	Intent     Intent
	Database   string
	Statement  string
	Autocommit bool
	WALMode    bool

	// Rows is the number of rows affected by a mutation or returned by a read.
	Rows int64

	Duration time.Duration
	At       time.Time
	Err      error
}

// Succeeded reports whether the call returned without error.
func (e Event) Succeeded() bool {
	return e.Err == nil
}

// EventPayload is the JSON form of an Event used by publishers.
type EventPayload struct {
	ID         string  `json:"id"`
	Database   string  `json:"database"`
	Operation  string  `json:"operation"`
	Intent     string  `json:"intent"`
	Statement  string  `json:"statement"`
	Autocommit bool    `json:"autocommit"`
	WALMode    bool    `json:"wal_mode"`
	Rows       int64   `json:"rows"`
	DurationMS float64 `json:"duration_ms"`
	Timestamp  string  `json:"timestamp"`
	Error      string  `json:"error,omitempty"`
}

// Payload converts e into its JSON form.
func (e Event) Payload() EventPayload {
	p := EventPayload{
		ID:         e.ID,
		Database:   e.Database,
		Operation:  string(e.Operation),
		Intent:     e.Intent.String(),
		Statement:  e.Statement,
		Autocommit: e.Autocommit,
		WALMode:    e.WALMode,
		Rows:       e.Rows,
		DurationMS: float64(e.Duration.Microseconds()) / 1000,
		Timestamp:  e.At.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if e.Err != nil {
		p.Error = e.Err.Error()
	}
	return p
}

// Observer receives an Event after every Operator call.
//
// ObserveOperation runs synchronously on the caller's goroutine, after the
// connection has been released. Implementations must not block and must be
// safe for concurrent use.
type Observer interface {
	ObserveOperation(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// ObserveOperation calls f(ctx, ev).
func (f ObserverFunc) ObserveOperation(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Observers fans an event out to every non-nil observer in order.
type Observers []Observer

// ObserveOperation forwards ev to each observer.
func (obs Observers) ObserveOperation(ctx context.Context, ev Event) {
	for _, o := range obs {
		if o != nil {
			o.ObserveOperation(ctx, ev)
		}
	}
}
