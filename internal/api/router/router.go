package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ovidijusr/shieldai/internal/api/handlers"
	"github.com/ovidijusr/shieldai/internal/api/middleware"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/pkg/metrics"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Audit  *handlers.AuditHandler
}

func New(log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.DefaultCORS())
	r.Use(metrics.Middleware)

	// Health checks
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)

	// Prometheus metrics
	r.Handle("/metrics", metrics.Handler())

	// Audits
	r.Route("/api/v1/audits", func(r chi.Router) {
		r.Post("/", h.Audit.Run)
		r.Get("/{id}", h.Audit.Get)
		r.Post("/{id}/findings/{findingID}/fix/preview", h.Audit.PreviewFix)
		r.Post("/{id}/findings/{findingID}/fix/apply", h.Audit.ApplyFix)
	})

	return r
}
