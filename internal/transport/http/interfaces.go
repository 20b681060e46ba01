package http

import (
	"context"

	"dailyanalytics/internal/dataprocessing"
	"dailyanalytics/internal/files"
	"dailyanalytics/internal/jobs"
	"dailyanalytics/internal/services"
	"dailyanalytics/internal/storage"
)

// DataServiceInterface defines the interface for dataset reports
type DataServiceInterface interface {
	Report(ctx context.Context) services.DataResponse
	AnalyticsReport(ctx context.Context) (dataprocessing.AnalyticsReport, error)
	Reload(ctx context.Context) bool
}

// AnalyticsServiceInterface defines the interface for chart and metric operations
type AnalyticsServiceInterface interface {
	Analytics(ctx context.Context) (*services.AnalyticsPayload, error)
	RecentMetrics(ctx context.Context) ([]storage.Metric, error)
	RecordMetric(ctx context.Context, name string, value *float64) (storage.Metric, error)
}

// PipelineServiceInterface defines the interface for training jobs
type PipelineServiceInterface interface {
	Submit(ctx context.Context, req services.TrainRequest) (*jobs.Job, error)
	Job(id string) (*jobs.Job, error)
	Jobs(filter jobs.Filter) ([]*jobs.Job, error)
	Cancel(id string) (*jobs.Job, error)
	Datasets(ctx context.Context) ([]files.FileInfo, error)
}

var (
	_ DataServiceInterface      = (*services.DataService)(nil)
	_ AnalyticsServiceInterface = (*services.AnalyticsService)(nil)
	_ PipelineServiceInterface  = (*services.PipelineService)(nil)
)
