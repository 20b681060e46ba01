package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "dailyanalytics/internal/errors"
	"dailyanalytics/internal/middleware"
)

// MetricRequest is the body of POST /api/metrics. A missing metric_value is
// stored as NULL.
type MetricRequest struct {
	MetricName  string   `json:"metric_name" validate:"required,max=255"`
	MetricValue *float64 `json:"metric_value"`
}

// MetricsHandler reads and writes analytics_data rows.
type MetricsHandler struct {
	service      AnalyticsServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(service AnalyticsServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "metrics_handler")),
		errorHandler: errorHandler,
	}
}

// Routes sets up the metrics routes
func (h *MetricsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/recent", h.GetRecent)
	r.Post("/", h.CreateMetric)
	return r
}

// GetRecent handles GET /api/metrics/recent
func (h *MetricsHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.RecentMetrics(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"data":  rows,
		"count": len(rows),
	})
}

// CreateMetric handles POST /api/metrics
func (h *MetricsHandler) CreateMetric(w http.ResponseWriter, r *http.Request) {
	var req MetricRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	m, err := h.service.RecordMetric(r.Context(), req.MetricName, req.MetricValue)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, m)
}
