// Package server provides the gateway's HTTP server: Gin routing mounted on
// a ServeMux, served over HTTP/1.1 and cleartext HTTP/2 (h2c).
//
// # Middleware
//
// Server-level middleware (server/middleware) wraps every route:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation, echo and context propagation
//   - Tracing, Metrics: OpenTelemetry server spans and request instruments
//   - CORS: cross-origin headers and preflight
//   - BodySizeLimit: request body ceiling (200MB by default)
//   - RateLimit: token bucket admission, global or per client
//   - RequestLogger: one log line per request
//
// # Endpoints
//
// RegisterDefaultEndpoints adds /health, /liveness, /readiness, /info,
// /version and /metrics (server/endpoint).
package server
