package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/nerrad567/sqliteop/internal/infrastructure/influxdb"
)

// SystemStatus represents the complete status response.
type SystemStatus struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          SinkStatus     `json:"mqtt"`
	InfluxDB      SinkStatus     `json:"influxdb"`
	Database      DatabaseStatus `json:"database"`
	Operations    OperationStats `json:"operations"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// SinkStatus describes an optional event sink.
type SinkStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`

	// Subscriptions counts active MQTT subscriptions.
	Subscriptions int `json:"subscriptions,omitempty"`
}

// DatabaseStatus describes the database file on disk. The Operator keeps
// no connections open, so there is no pool to report.
type DatabaseStatus struct {
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"size_bytes"`
	WALFile   bool   `json:"wal_file"`
}

// handleStatus returns runtime, sink and operation statistics.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Operations: s.hub.Stats(),
	}

	if s.mqtt != nil {
		status.MQTT = SinkStatus{
			Enabled:       true,
			Connected:     s.mqtt.IsConnected(),
			Subscriptions: s.mqtt.SubscriptionCount(),
		}
	}
	if s.influx != nil {
		status.InfluxDB = SinkStatus{Enabled: true, Connected: s.influx.IsConnected()}
	}

	db, err := databaseStatus(s.operator.Path())
	if err != nil {
		s.logger.Error("reading database file status", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "database file status unavailable")
		return
	}
	status.Database = db

	writeJSON(w, http.StatusOK, status)
}

// databaseStatus stats the database file and its -wal sidecar.
// A missing file is not an error: it is created on the first write.
func databaseStatus(path string) (DatabaseStatus, error) {
	st := DatabaseStatus{Path: path}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return st, nil
	case err != nil:
		return st, err
	}
	st.Exists = true
	st.SizeBytes = info.Size()

	if _, err := os.Stat(path + "-wal"); err == nil {
		st.WALFile = true
	}
	return st, nil
}

// sampleFileStats passes a sample of the database file to write every
// interval until ctx is cancelled.
func (s *Server) sampleFileStats(ctx context.Context, interval time.Duration, write func(influxdb.FileStats)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	path := s.operator.Path()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, err := databaseStatus(path)
			if err != nil {
				s.logger.Warn("sampling database file", "path", path, "error", err)
				continue
			}
			write(influxdb.FileStats{
				Database:  filepath.Base(path),
				Exists:    st.Exists,
				SizeBytes: st.SizeBytes,
				WALFile:   st.WALFile,
			})
		}
	}
}
