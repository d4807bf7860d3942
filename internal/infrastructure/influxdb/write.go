package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
)

// Measurements written by this package.
const (
	OperationMeasurement = "sqliteop_operations"
	FileMeasurement      = "sqliteop_files"
)

// operationPoint converts an operator event into a point.
//
// Tags stay low cardinality: database, operation, intent, status and the
// two mode flags. Statement text is never written.
func operationPoint(ev database.Event) *write.Point {
	status := "ok"
	if !ev.Succeeded() {
		status = "error"
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(
		OperationMeasurement,
		map[string]string{
			"database":   ev.Database,
			"operation":  string(ev.Operation),
			"intent":     ev.Intent.String(),
			"status":     status,
			"autocommit": boolTag(ev.Autocommit),
			"wal":        boolTag(ev.WALMode),
		},
		map[string]interface{}{
			"duration_ms": float64(ev.Duration.Microseconds()) / 1000,
			"rows":        ev.Rows,
		},
		at,
	)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// WriteOperation records one operator call. The write is non-blocking;
// points are batched and sent asynchronously.
func (c *Client) WriteOperation(ev database.Event) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(operationPoint(ev))
}

// FileStats is one sample of the database file on disk.
type FileStats struct {
	Database  string
	Exists    bool
	SizeBytes int64
	WALFile   bool
}

func fileFields(st FileStats) map[string]interface{} {
	return map[string]interface{}{
		"exists":     st.Exists,
		"size_bytes": st.SizeBytes,
		"wal_file":   st.WALFile,
	}
}

// WriteFileStats records a sample of the database file under
// FileMeasurement, tagged by database name.
func (c *Client) WriteFileStats(st FileStats) {
	c.WritePoint(FileMeasurement, map[string]string{"database": st.Database}, fileFields(st))
}

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
