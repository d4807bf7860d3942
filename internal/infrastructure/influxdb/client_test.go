package influxdb_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/nerrad567/sqliteop/internal/infrastructure/config"
	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
	"github.com/nerrad567/sqliteop/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "sqliteop-dev-token",
		Org:           "sqliteop",
		Bucket:        "operations",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client while disabled")
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
	client.Flush()
}

func TestWrite_NotConnectedIsNoop(t *testing.T) {
	client := &influxdb.Client{}

	// None of these may panic on a client without a write API.
	client.WriteOperation(database.Event{Operation: database.OpExecute})
	client.WritePoint("m", map[string]string{"a": "b"}, map[string]interface{}{"v": 1})
	client.WriteFileStats(influxdb.FileStats{Database: "app.db", SizeBytes: 1})
	client.Observer().ObserveOperation(context.Background(), database.Event{})
}

// TestObserver_WritesOperatorCalls runs real operator calls through the
// observer and flushes them to the server.
func TestObserver_WritesOperatorCalls(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	writeErrs := make(chan error, 10)
	client.SetOnError(func(err error) { writeErrs <- err })

	op := database.New(t.TempDir() + "/influx.db")
	op.SetObserver(client.Observer())

	ctx := context.Background()
	if _, err := op.ExecuteQuery(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if _, err := op.SelectQueryFetchAll(ctx, "SELECT * FROM t"); err != nil {
		t.Fatalf("SelectQueryFetchAll() error = %v", err)
	}

	client.Flush()

	select {
	case err := <-writeErrs:
		t.Errorf("async write error = %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}
