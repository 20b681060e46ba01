package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dailyanalytics/internal/dataprocessing"
	"dailyanalytics/internal/files"
	"dailyanalytics/internal/jobs"
	"dailyanalytics/internal/services"
	"dailyanalytics/internal/storage"
)

// MockDataService is a mock implementation of DataServiceInterface
type MockDataService struct {
	mock.Mock
}

func (m *MockDataService) Report(ctx context.Context) services.DataResponse {
	args := m.Called()
	return args.Get(0).(services.DataResponse)
}

func (m *MockDataService) AnalyticsReport(ctx context.Context) (dataprocessing.AnalyticsReport, error) {
	args := m.Called()
	return args.Get(0).(dataprocessing.AnalyticsReport), args.Error(1)
}

func (m *MockDataService) Reload(ctx context.Context) bool {
	args := m.Called()
	return args.Bool(0)
}

// MockAnalyticsService is a mock implementation of AnalyticsServiceInterface
type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) Analytics(ctx context.Context) (*services.AnalyticsPayload, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AnalyticsPayload), args.Error(1)
}

func (m *MockAnalyticsService) RecentMetrics(ctx context.Context) ([]storage.Metric, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Metric), args.Error(1)
}

func (m *MockAnalyticsService) RecordMetric(ctx context.Context, name string, value *float64) (storage.Metric, error) {
	args := m.Called(name, value)
	return args.Get(0).(storage.Metric), args.Error(1)
}

// MockPipelineService is a mock implementation of PipelineServiceInterface
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) Submit(ctx context.Context, req services.TrainRequest) (*jobs.Job, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockPipelineService) Job(id string) (*jobs.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockPipelineService) Jobs(filter jobs.Filter) ([]*jobs.Job, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*jobs.Job), args.Error(1)
}

func (m *MockPipelineService) Cancel(id string) (*jobs.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockPipelineService) Datasets(ctx context.Context) ([]files.FileInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]files.FileInfo), args.Error(1)
}
