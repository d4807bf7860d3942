// Package api implements the monitoring HTTP and WebSocket server for sqliteop.
//
// This package provides:
//   - Health and status endpoints covering the database file and the
//     optional MQTT and InfluxDB sinks
//   - A WebSocket hub that streams Operator events to subscribed clients
//   - The Prometheus scrape endpoint when a metrics recorder is configured
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Routes
//
//	GET /api/v1/health   component health, 503 when any component fails
//	GET /api/v1/status   runtime, uptime and operation counters
//	GET /api/v1/ws       WebSocket event stream
//	GET /metrics         Prometheus exposition
//
// # WebSocket Channels
//
// Clients subscribe with {"type":"subscribe","payload":{"channels":[...]}}.
// Every Operator call is broadcast on "operation". Successful mutations are
// also sent on "change" and failures on "error".
//
// # Graceful Degradation
//
// MQTT, InfluxDB and metrics are optional. A missing sink is reported as
// "disabled" and never fails the health check.
package api
