// Package metrics exposes sqliteop operator calls as Prometheus metrics.
//
// Usage:
//
//	rec := metrics.New(cfg.Metrics.Namespace)
//	op.SetObserver(rec)
//	mux.Handle("/metrics", rec.Handler())
package metrics
