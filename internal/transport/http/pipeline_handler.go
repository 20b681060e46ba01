package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "dailyanalytics/internal/errors"
	"dailyanalytics/internal/jobs"
	"dailyanalytics/internal/middleware"
	"dailyanalytics/internal/services"
)

const maxListLimit = 500

// PipelineHandler manages training jobs.
type PipelineHandler struct {
	service      PipelineServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewPipelineHandler creates a pipeline handler.
func NewPipelineHandler(service PipelineServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PipelineHandler {
	return &PipelineHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("handler", "pipeline")),
		errorHandler: errorHandler,
	}
}

// Routes returns the job routes
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/jobs", h.SubmitJob)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{id}", h.GetJob)
	r.Delete("/jobs/{id}", h.CancelJob)
	r.Get("/datasets", h.ListDatasets)
	return r
}

// SubmitJob handles POST /api/pipeline/jobs and answers 202 with the
// pending job.
func (h *PipelineHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	ctx, span := otel.Tracer("pipeline-handler").Start(ctx, "pipeline_handler.submit_job",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/pipeline/jobs"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	var req services.TrainRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		span.RecordError(err)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	job, err := h.service.Submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	span.SetAttributes(attribute.String("job.id", job.ID))

	h.logger.InfoContext(ctx, "training job accepted",
		slog.String("request_id", reqID),
		slog.String("job_id", job.ID))

	w.Header().Set("Location", "/api/pipeline/jobs/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, job)
}

// ListJobs handles GET /api/pipeline/jobs?status=&kind=&since=&limit=
func (h *PipelineHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseJobFilter(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	list, err := h.service.Jobs(filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	render.JSON(w, r, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/pipeline/jobs/{id}
func (h *PipelineHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, job)
}

// CancelJob handles DELETE /api/pipeline/jobs/{id}
func (h *PipelineHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.service.Cancel(id)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "training job cancelled",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("job_id", id))
	render.JSON(w, r, job)
}

func parseJobFilter(r *http.Request) (jobs.Filter, error) {
	q := r.URL.Query()
	filter := jobs.Filter{
		Status: jobs.Status(q.Get("status")),
		Kind:   q.Get("kind"),
	}

	switch filter.Status {
	case "", jobs.StatusPending, jobs.StatusRunning, jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusCancelled:
	default:
		return filter, apierrors.ErrValidation("status", fmt.Sprintf("unknown status %q", filter.Status))
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxListLimit {
			return filter, apierrors.ErrValidation("limit", fmt.Sprintf("limit must be between 0 and %d", maxListLimit))
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apierrors.ErrValidation("since", "since must be an RFC 3339 timestamp")
		}
		filter.Since = t
	}
	return filter, nil
}

// ListDatasets handles GET /api/pipeline/datasets
func (h *PipelineHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.service.Datasets(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}
