package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

// CheckFunc reports whether one dependency is reachable.
type CheckFunc func(ctx context.Context) error

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	service string
	version string
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new handler
func NewHealthHandler(service, version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		service: service,
		version: version,
		checks:  make(map[string]CheckFunc),
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// AddCheck registers a readiness dependency
func (h *HealthHandler) AddCheck(name string, check CheckFunc) *HealthHandler {
	h.checks[name] = check
	return h
}

// HealthResponse is the body of both probes
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: h.service, Version: h.version})
}

// Ready handles GET /ready. Every registered check must pass.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ready", Service: h.service, Version: h.version, Checks: map[string]string{}}
	code := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "not ready"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}
