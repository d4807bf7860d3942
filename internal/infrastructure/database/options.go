package database

// Option adjusts how a single call acquires and uses its connection.
// Options are resolved against the Operator's defaults before any
// connection is opened and are never forwarded to the statement itself.
type Option func(*callOptions)

// callOptions is the resolved per-call configuration.
type callOptions struct {
	autocommit bool
	walMode    bool
	asDict     bool
}

// WithAutocommit opens the connection without an implicit transaction and
// wraps the call in an explicit BEGIN/COMMIT, rolling back on failure.
func WithAutocommit(enabled bool) Option {
	return func(o *callOptions) {
		o.autocommit = enabled
	}
}

// WithWALMode requests write-ahead-log journal mode for the connection,
// letting readers proceed while a single writer is active.
func WithWALMode(enabled bool) Option {
	return func(o *callOptions) {
		o.walMode = enabled
	}
}

// AsDict makes read paths materialise each row as a Record keyed by
// column name in addition to its positional values.
func AsDict(enabled bool) Option {
	return func(o *callOptions) {
		o.asDict = enabled
	}
}

// resolveOptions applies opts on top of the operator defaults.
func (op *Operator) resolveOptions(opts []Option) callOptions {
	resolved := callOptions{
		autocommit: op.cfg.Autocommit,
		walMode:    op.cfg.WALMode,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}
