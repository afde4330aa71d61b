package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady runs every readiness check and fails if any does.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(s.deps.Ready)+1)
	for _, c := range s.deps.Ready {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}
	checks["rate_limiter"] = "ok"

	writeJSON(w, code, map[string]any{
		"status":         status,
		"timestamp":      time.Now().Format(time.RFC3339),
		"checks":         checks,
		"active_clients": s.rateLimiter.ActiveClients(),
		"requests":       s.tracer.GetMetrics().TotalRequests,
	})
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
