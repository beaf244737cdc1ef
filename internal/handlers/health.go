package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/partyhop/backend/internal/logging"
)

const pingTimeout = 2 * time.Second

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Checks are probed on every request, keyed by component name.
	Checks map[string]Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	payload := map[string]string{
		"status": "ok",
	}
	status := http.StatusOK

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := h.Checks[name].Ping(pingCtx)
		cancel()
		if err != nil {
			logging.FromContext(ctx).Warn("health check failed", "component", name, "error", err)
			payload[name] = "unavailable"
			payload["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		payload[name] = "ok"
	}

	respondJSON(ctx, w, status, payload)
}
