// Package health provides liveness and readiness endpoints for the
// permafrost daemon.
//
// The daemon registers one probe per dependency and serves three endpoints
// next to /metrics:
//
//   - /health: the process is alive
//   - /ready: every registered probe passes (503 otherwise)
//   - /version: build information
//
// Usage:
//
//	checker := health.New(5 * time.Second)
//	checker.Register("statestore", func(ctx context.Context) error {
//	    _, err := store.Load(ctx)
//	    return err
//	})
//
//	mux.HandleFunc("/health", checker.LivenessHandler())
//	mux.HandleFunc("/ready", checker.ReadinessHandler())
//	mux.HandleFunc("/version", health.VersionHandler(version, commit, buildTime))
package health
