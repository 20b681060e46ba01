package http

import (
	"github.com/go-chi/chi/v5"
)

// Handlers groups the API handlers mounted by Mount.
type Handlers struct {
	Data      *DataHandler
	Analytics *AnalyticsHandler
	Metrics   *MetricsHandler
	Pipeline  *PipelineHandler
	Health    *HealthHandler
}

// Mount registers every API route on r, which is expected to be the /api
// sub-router.
func (h Handlers) Mount(r chi.Router) {
	r.Mount("/data", h.Data.Routes())
	r.Get("/analytics", h.Analytics.GetAnalytics)
	r.Mount("/metrics", h.Metrics.Routes())
	r.Mount("/pipeline", h.Pipeline.Routes())

	r.Get("/health", h.Health.HealthCheck)
	r.Get("/health/ready", h.Health.ReadinessCheck)
	r.Get("/health/live", h.Health.LivenessCheck)
	r.Get("/version", h.Health.Version)
}
