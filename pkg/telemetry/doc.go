// Package telemetry groups the observability packages for permafrost.
//
//   - logging: structured slog logger built from config
//   - metrics: Prometheus metrics on a private registry
//   - health: liveness/readiness endpoints for the daemon
//
// Components receive the logger and collector explicitly; nothing in here
// reads global state beyond slog's default logger.
package telemetry
