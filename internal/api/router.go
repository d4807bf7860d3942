package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the component checks behind /api/v1/health.
const healthCheckTimeout = 2 * time.Second

// Component health states reported by /api/v1/health.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
	healthError    = "error"
	healthDisabled = "disabled"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, "no route for "+r.URL.Path)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// ComponentHealth is the health of one dependency.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Components map[string]ComponentHealth `json:"components"`
}

// handleHealth checks the database file and any configured sinks.
// Responds 503 when a configured component fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     healthOK,
		Version:    s.version,
		Components: make(map[string]ComponentHealth, 3),
	}

	check := func(name string, enabled bool, fn func(context.Context) error) {
		if !enabled {
			resp.Components[name] = ComponentHealth{Status: healthDisabled}
			return
		}
		if err := fn(ctx); err != nil {
			resp.Status = healthDegraded
			resp.Components[name] = ComponentHealth{Status: healthError, Error: err.Error()}
			return
		}
		resp.Components[name] = ComponentHealth{Status: healthOK}
	}

	check("database", true, s.operator.HealthCheck)
	check("mqtt", s.mqtt != nil, func(ctx context.Context) error { return s.mqtt.HealthCheck(ctx) })
	check("influxdb", s.influx != nil, func(ctx context.Context) error { return s.influx.HealthCheck(ctx) })

	status := http.StatusOK
	if resp.Status != healthOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
