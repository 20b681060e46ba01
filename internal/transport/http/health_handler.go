package http

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"dailyanalytics/internal/services"
)

// HealthHandler serves the probe endpoints under /api/health and the build
// info under /api/version. Probe answers are never cached.
type HealthHandler struct {
	probes *services.HealthService
	logger *slog.Logger
}

func NewHealthHandler(probes *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		probes: probes,
		logger: logger.With(slog.String("component", "health_api")),
	}
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}

// HealthCheck is the cheap overall status.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	render.JSON(w, r, h.probes.HealthCheck(r.Context()))
}

// ReadinessCheck reports each dependency. Load balancers get 503 while any
// of them is not_ready; degraded still counts as ready.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	ctx := r.Context()
	status := h.probes.ReadinessCheck(ctx)

	if status.Status != "ready" {
		var failing []string
		for name, dep := range status.Services {
			if dep.Status == "not_ready" {
				failing = append(failing, name)
			}
		}
		sort.Strings(failing)
		h.logger.WarnContext(ctx, "Answering readiness with 503",
			slog.Any("failing", failing),
			slog.String("request_id", middleware.GetReqID(ctx)))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// LivenessCheck includes runtime stats; it never consults dependencies.
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	render.JSON(w, r, h.probes.LivenessCheck(r.Context()))
}

func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.probes.Version())
}
