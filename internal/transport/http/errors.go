package http

import (
	"errors"
	"net/http"

	"dailyanalytics/internal/dataset"
	apierrors "dailyanalytics/internal/errors"
	"dailyanalytics/internal/jobs"
	"dailyanalytics/internal/services"
	"dailyanalytics/internal/storage"
)

// mapServiceError translates service and domain errors into API errors.
// Unknown errors pass through and render as 500.
func mapServiceError(err error) error {
	var apiErr *apierrors.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, storage.ErrInvalidMetric):
		return apierrors.NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error())
	case errors.Is(err, storage.ErrQueryFailed):
		return apierrors.Storage("query", err)
	case errors.Is(err, dataset.ErrUnsupportedFormat), errors.Is(err, dataset.ErrEmptyDataset):
		return apierrors.Parsing("load dataset", err)
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrPathNotAllowed):
		return apierrors.ErrValidation("file_path", err.Error())
	case errors.Is(err, services.ErrFileNotFound), errors.Is(err, services.ErrNoDataLoaded):
		return apierrors.ErrDatasetNotFound
	case errors.Is(err, jobs.ErrJobNotFound):
		return apierrors.ErrJobNotFound
	case errors.Is(err, jobs.ErrQueueFull):
		return apierrors.ErrQueueFull
	case errors.Is(err, jobs.ErrQueueStopped):
		return apierrors.ErrServiceUnavailable
	case errors.Is(err, jobs.ErrNotCancellable):
		return apierrors.New(http.StatusConflict, "CONFLICT", "Job cannot be cancelled")
	}
	return err
}
