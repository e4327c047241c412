package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ReadinessCheck reports whether a dependency (database, session store) is reachable.
type ReadinessCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

// healthHandler answers liveness probes, and readiness probes when checks are configured.
func healthHandler(logger *slog.Logger, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				failed[name] = "unavailable"
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}

		if r.Method == http.MethodHead {
			w.WriteHeader(code)
			return
		}
		body := map[string]any{"status": status}
		if len(failed) > 0 {
			body["checks"] = failed
		}
		WriteJSON(w, code, body)
	}
}
