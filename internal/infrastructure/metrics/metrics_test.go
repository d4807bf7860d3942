package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
)

func TestRecorder_ObserveOperation(t *testing.T) {
	rec := New("test")
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	rec.ObserveOperation(ctx, database.Event{
		Operation: database.OpInsertUpdateRow, Database: "app.db",
		Rows: 1, Duration: time.Millisecond, At: at,
	})
	rec.ObserveOperation(ctx, database.Event{
		Operation: database.OpInsertUpdateRow, Database: "app.db",
		Rows: 1, Duration: time.Millisecond, At: at,
	})
	rec.ObserveOperation(ctx, database.Event{
		Operation: database.OpSelect, Database: "app.db",
		Err: errors.New("no such table"), At: at,
	})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"insert ok", testutil.ToFloat64(rec.operations.WithLabelValues("app.db", "insert_update_row", "ok")), 2},
		{"select error", testutil.ToFloat64(rec.operations.WithLabelValues("app.db", "select_query", "error")), 1},
		{"insert rows", testutil.ToFloat64(rec.rows.WithLabelValues("app.db", "insert_update_row")), 2},
		{"last call", testutil.ToFloat64(rec.lastCall), float64(at.Unix())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(rec.duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestRecorder_WithOperator(t *testing.T) {
	rec := New("")
	op := database.New(t.TempDir() + "/metrics.db")
	op.SetObserver(rec)
	ctx := context.Background()

	if _, err := op.ExecuteQuery(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if _, err := op.BulkInsertUpdateRows(ctx, "INSERT INTO t VALUES (?)", [][]any{{1}, {2}, {3}}); err != nil {
		t.Fatalf("BulkInsertUpdateRows() error = %v", err)
	}

	got := testutil.ToFloat64(rec.rows.WithLabelValues("metrics.db", "bulk_insert_update_rows"))
	if got != 3 {
		t.Errorf("rows_total = %v, want 3", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	rec := New("sqliteop")
	rec.ObserveOperation(context.Background(), database.Event{
		Operation: database.OpExecute, Database: "app.db", Duration: time.Millisecond,
	})

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}

	for _, want := range []string{
		`sqliteop_operations_total{database="app.db",operation="execute_query",status="ok"} 1`,
		"sqliteop_operation_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
