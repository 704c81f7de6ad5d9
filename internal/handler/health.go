package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Check is a named readiness probe
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks []Check
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler. Nil probes are reported as not configured.
func NewHealthHandler(logger *slog.Logger, checks ...Check) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthHandler{
		checks: checks,
		logger: logger,
	}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz - liveness only
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz. Returns 200 only if every configured dependency answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	healthy := true
	for _, c := range h.checks {
		if c.Ping == nil {
			checks[c.Name] = "not configured"
			continue
		}
		if err := c.Ping(ctx); err != nil {
			checks[c.Name] = "error: " + err.Error()
			healthy = false
			h.logger.Warn("readiness check failed",
				slog.String("check", c.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		checks[c.Name] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !healthy {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadinessResponse{
		Status: status,
		Checks: checks,
	})
}
