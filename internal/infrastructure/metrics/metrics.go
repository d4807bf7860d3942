package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
)

// DefaultNamespace prefixes every metric when none is configured.
const DefaultNamespace = "sqliteop"

// Recorder keeps Prometheus metrics for operator calls on its own registry.
//
// Recorder implements database.Observer and is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rows       *prometheus.CounterVec
	lastCall   prometheus.Gauge
}

// New creates a Recorder whose metrics are prefixed with namespace.
// The registry also carries the Go runtime and process collectors.
func New(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of operator calls.",
		}, []string{"database", "operation", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time from connection open to release for operator calls.",
			// Local SQLite calls: smallest bucket is 100us, biggest is ~6.5s.
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 9),
		}, []string{"database", "operation"}),

		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows affected by mutations or returned by reads.",
		}, []string{"database", "operation"}),

		lastCall: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_operation_timestamp_seconds",
			Help:      "Unix time of the most recently finished operator call.",
		}),
	}

	r.registry.MustRegister(
		r.operations,
		r.duration,
		r.rows,
		r.lastCall,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveOperation implements database.Observer.
func (r *Recorder) ObserveOperation(_ context.Context, ev database.Event) {
	status := "ok"
	if !ev.Succeeded() {
		status = "error"
	}
	op := string(ev.Operation)

	r.operations.WithLabelValues(ev.Database, op, status).Inc()
	r.duration.WithLabelValues(ev.Database, op).Observe(ev.Duration.Seconds())
	if ev.Rows > 0 {
		r.rows.WithLabelValues(ev.Database, op).Add(float64(ev.Rows))
	}
	if !ev.At.IsZero() {
		r.lastCall.Set(float64(ev.At.Add(ev.Duration).Unix()))
	}
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
