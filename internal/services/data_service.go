package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/dataprocessing"
)

// DataResponse is the body of GET /api/data.
type DataResponse struct {
	dataprocessing.Report
	Summary *dataprocessing.SummaryReport `json:"summary,omitempty"`
}

// DataService serves reports for the configured data file.
type DataService struct {
	dataFile  string
	processor *dataprocessing.DataProcessor
	advanced  *dataprocessing.AdvancedProcessor
	logger    *slog.Logger

	loadOnce sync.Once
}

// NewDataService creates a data service for dataFile. The file is loaded
// lazily on first use.
func NewDataService(dataFile string, processor *dataprocessing.DataProcessor, advanced *dataprocessing.AdvancedProcessor, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("DataService initialized", slog.String("data_file", dataFile))

	return &DataService{
		dataFile:  dataFile,
		processor: processor,
		advanced:  advanced,
		logger:    logger.With(slog.String("component", "data_service")),
	}
}

func (s *DataService) ensureLoaded() {
	s.loadOnce.Do(func() {
		if s.dataFile != "" && config.FileExists(s.dataFile) {
			s.processor.LoadData(s.dataFile)
		}
	})
}

// Reload reads the data file again.
func (s *DataService) Reload(ctx context.Context) bool {
	s.ensureLoaded()
	s.logger.InfoContext(ctx, "Reloading data file", slog.String("data_file", s.dataFile))
	return s.processor.LoadData(s.dataFile)
}

// Report returns the status report, with a summary when data is loaded.
func (s *DataService) Report(ctx context.Context) DataResponse {
	s.ensureLoaded()

	resp := DataResponse{Report: s.processor.GenerateReport()}
	if summary, ok := s.processor.GenerateSummaryReport(); ok {
		resp.Summary = summary
	}

	s.logger.DebugContext(ctx, "Data report generated", slog.Bool("has_summary", resp.Summary != nil))
	return resp
}

// AnalyticsReport runs the loaded dataset through the advanced processor and
// returns its report.
func (s *DataService) AnalyticsReport(ctx context.Context) (dataprocessing.AnalyticsReport, error) {
	s.ensureLoaded()

	d := s.processor.ProcessLoaded()
	if d == nil {
		return dataprocessing.AnalyticsReport{}, ErrNoDataLoaded
	}
	if _, err := s.advanced.ProcessLargeDataset(ctx, d); err != nil {
		return dataprocessing.AnalyticsReport{}, fmt.Errorf("process dataset: %w", err)
	}
	return s.advanced.GenerateAnalyticsReport(), nil
}
