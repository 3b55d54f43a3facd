package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports the reachability of the API's dependencies
type HealthHandler struct {
	required map[string]HealthCheck
	optional map[string]HealthCheck
	timeout  time.Duration
}

// NewHealthHandler creates a health handler. A failing required check turns
// the response into a 503; optional checks only report "degraded".
func NewHealthHandler(required, optional map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		required: required,
		optional: optional,
		timeout:  2 * time.Second,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string)}
	code := http.StatusOK

	for name, check := range h.required {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "unavailable: " + err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	for name, check := range h.optional {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "degraded: " + err.Error()
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
			continue
		}
		resp.Checks[name] = "ok"
	}

	WriteJSON(w, code, resp)
}
