package database

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	debugs []string
}

func (l *recordingLogger) Debug(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

// eventRecorder collects observer events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) ObserveOperation(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// openTestOperator creates an Operator over a fresh temporary database path.
func openTestOperator(t *testing.T) *Operator {
	t.Helper()

	return NewWithConfig(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5,
		ForeignKeys: true,
	})
}

// testContext returns a context bounded for a single test.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNew(t *testing.T) {
	op := New("/some/where/db.sqlite3")

	if op.Path() != "/some/where/db.sqlite3" {
		t.Errorf("Path() = %q, want %q", op.Path(), "/some/where/db.sqlite3")
	}

	// No file is created until the first write.
	if _, err := os.Stat(op.Path()); !os.IsNotExist(err) {
		t.Error("New() must not touch the filesystem")
	}
}

func TestOperator_CreatesFileAndDirectoryOnFirstWrite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")
	op := New(dbPath)
	ctx := testContext(t)

	if _, err := op.ExecuteQuery(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	op := openTestOperator(t)
	ctx := testContext(t)

	t.Run("fails before the file exists", func(t *testing.T) {
		err := op.HealthCheck(ctx)
		if !errors.Is(err, ErrConnection) {
			t.Errorf("HealthCheck() error = %v, want ErrConnection", err)
		}
	})

	t.Run("succeeds after first write", func(t *testing.T) {
		if _, err := op.ExecuteQuery(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("ExecuteQuery() error = %v", err)
		}
		if err := op.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})
}

func TestHealthCheck_NotObserved(t *testing.T) {
	op := openTestOperator(t)
	ctx := testContext(t)

	var seen []Operation
	op.SetObserver(ObserverFunc(func(_ context.Context, ev Event) {
		seen = append(seen, ev.Operation)
	}))

	if _, err := op.ExecuteQuery(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if err := op.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	if len(seen) != 1 || seen[0] != OpExecute {
		t.Errorf("observed operations = %v, want only %v", seen, OpExecute)
	}
}

func TestIntent_String(t *testing.T) {
	tests := []struct {
		intent Intent
		want   string
	}{
		{ReadWrite, "read_write"},
		{ReadOnly, "read_only"},
		{Intent(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.intent.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperator_DSN(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		intent Intent
		opts   callOptions
		want   map[string]string
		absent []string
	}{
		{
			name:   "read only",
			cfg:    Config{Path: "/data/app.db"},
			intent: ReadOnly,
			want:   map[string]string{"mode": "ro"},
			absent: []string{"_journal_mode", "_busy_timeout", "_foreign_keys"},
		},
		{
			name:   "read write with busy timeout and foreign keys",
			cfg:    Config{Path: "/data/app.db", BusyTimeout: 3, ForeignKeys: true},
			intent: ReadWrite,
			want:   map[string]string{"mode": "rwc", "_busy_timeout": "3000", "_foreign_keys": "on"},
			absent: []string{"_journal_mode"},
		},
		{
			name:   "wal on read write",
			cfg:    Config{Path: "/data/app.db"},
			intent: ReadWrite,
			opts:   callOptions{walMode: true},
			want:   map[string]string{"mode": "rwc", "_journal_mode": "WAL", "_synchronous": "NORMAL"},
		},
		{
			name:   "wal not applied to read only",
			cfg:    Config{Path: "/data/app.db"},
			intent: ReadOnly,
			opts:   callOptions{walMode: true},
			want:   map[string]string{"mode": "ro"},
			absent: []string{"_journal_mode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewWithConfig(tt.cfg)
			dsn := op.dsn(tt.intent, tt.opts)

			prefix := "file:" + tt.cfg.Path + "?"
			if !strings.HasPrefix(dsn, prefix) {
				t.Fatalf("dsn = %q, want prefix %q", dsn, prefix)
			}
			params, err := url.ParseQuery(strings.TrimPrefix(dsn, prefix))
			if err != nil {
				t.Fatalf("ParseQuery() error = %v", err)
			}
			for k, v := range tt.want {
				if got := params.Get(k); got != v {
					t.Errorf("param %s = %q, want %q", k, got, v)
				}
			}
			for _, k := range tt.absent {
				if params.Has(k) {
					t.Errorf("param %s present, want absent", k)
				}
			}
		})
	}
}

func TestResolveOptions(t *testing.T) {
	op := NewWithConfig(Config{Path: "x.db", Autocommit: true, WALMode: true})

	t.Run("defaults from config", func(t *testing.T) {
		got := op.resolveOptions(nil)
		want := callOptions{autocommit: true, walMode: true}
		if got != want {
			t.Errorf("resolveOptions() = %+v, want %+v", got, want)
		}
	})

	t.Run("per call overrides", func(t *testing.T) {
		got := op.resolveOptions([]Option{WithAutocommit(false), WithWALMode(false), AsDict(true), nil})
		want := callOptions{autocommit: false, walMode: false, asDict: true}
		if got != want {
			t.Errorf("resolveOptions() = %+v, want %+v", got, want)
		}
	})
}

func TestOperator_LoggerReceivesFailures(t *testing.T) {
	op := openTestOperator(t)
	logger := &recordingLogger{}
	op.SetLogger(logger)
	ctx := testContext(t)

	if _, err := op.ExecuteQuery(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if logger.errorCount() != 0 {
		t.Errorf("error logs after success = %d, want 0", logger.errorCount())
	}

	if _, err := op.ExecuteQuery(ctx, "NOT VALID SQL"); err == nil {
		t.Fatal("ExecuteQuery() expected syntax error")
	}
	if logger.errorCount() == 0 {
		t.Error("expected failure to be logged")
	}
}
