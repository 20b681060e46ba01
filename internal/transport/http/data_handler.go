package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "dailyanalytics/internal/errors"
	"dailyanalytics/internal/middleware"
)

// DataHandler serves dataset reports.
type DataHandler struct {
	service      DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDataHandler creates a new data handler with RFC 7807 error handling
func NewDataHandler(service DataServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DataHandler {
	return &DataHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the data routes
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetData)
	r.Get("/analytics-report", h.GetAnalyticsReport)
	r.Post("/reload", h.Reload)
	return r
}

// GetData handles GET /api/data. The summary is present only when a dataset
// is loaded.
func (h *DataHandler) GetData(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Report(r.Context()))
}

// GetAnalyticsReport handles GET /api/data/analytics-report
func (h *DataHandler) GetAnalyticsReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.AnalyticsReport(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, report)
}

// Reload handles POST /api/data/reload
func (h *DataHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "reload requested",
		slog.String("request_id", middleware.GetReqID(ctx)))

	if !h.service.Reload(ctx) {
		h.errorHandler.HandleError(w, r, apierrors.ErrDatasetNotFound)
		return
	}
	render.JSON(w, r, h.service.Report(ctx))
}
