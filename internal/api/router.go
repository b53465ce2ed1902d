// Package api assembles the clinical HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/api/handlers"
	"github.com/medassist/clinical-core/internal/api/middleware"
)

// RouterConfig holds everything the router mounts.
type RouterConfig struct {
	ServiceName string
	APIKeys     map[string]string
	Engines     *handlers.EngineHandler
	Labor       *handlers.LaborHandler
	Health      *handlers.HealthHandler
	// Metrics serves /metrics when set
	Metrics http.Handler
	// Recorder observes every request when set
	Recorder middleware.HTTPRecorder
	Logger   *zap.Logger
}

// NewRouter builds the chi router: probes and metrics without auth, engines
// and labor records under /api/v1 behind API key auth.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	if cfg.Recorder != nil {
		r.Use(middleware.Metrics(cfg.Recorder))
	}

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		if cfg.Engines != nil {
			cfg.Engines.RegisterRoutes(r)
		}
		if cfg.Labor != nil {
			r.Mount("/labor", cfg.Labor.Routes())
		}
	})

	return r
}
