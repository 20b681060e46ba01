package dataprocessing

import (
	"log/slog"
	"sync"
	"time"

	"dailyanalytics/internal/dataset"
)

// DataProcessor holds at most one loaded dataset.
type DataProcessor struct {
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	data *dataset.Dataset
}

// NewDataProcessor creates a processor with nothing loaded.
func NewDataProcessor(logger *slog.Logger) *DataProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataProcessor{
		logger: logger.With(slog.String("component", "data_processor")),
		now:    time.Now,
	}
}

// LoadData reads path into the processor. It returns true iff the file exists
// and parses as tabular data; any failure is logged and the previous dataset
// is kept.
func (p *DataProcessor) LoadData(path string) bool {
	d, err := dataset.Load(path)
	if err != nil {
		p.logger.Error("Error loading data",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}

	p.mu.Lock()
	p.data = d
	p.mu.Unlock()

	p.logger.Info("Data loaded successfully",
		slog.String("path", path),
		slog.Int("rows", d.NumRows()),
		slog.Int("columns", d.NumColumns()))
	return true
}

// ProcessData returns d unchanged.
func (p *DataProcessor) ProcessData(d *dataset.Dataset) *dataset.Dataset {
	return d
}

// ProcessLoaded returns a copy of the loaded dataset, or nil.
func (p *DataProcessor) ProcessLoaded() *dataset.Dataset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data.Clone()
}

// Loaded reports whether a dataset has been loaded.
func (p *DataProcessor) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data != nil
}

// GenerateReport returns a success report stamped with the current time.
func (p *DataProcessor) GenerateReport() Report {
	return Report{Status: StatusSuccess, Timestamp: p.now()}
}

// GenerateSummaryReport describes the loaded dataset. The boolean is false
// when nothing is loaded.
func (p *DataProcessor) GenerateSummaryReport() (*SummaryReport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.data == nil {
		return nil, false
	}
	return &SummaryReport{
		TotalRecords: p.data.NumRows(),
		Columns:      append([]string(nil), p.data.Columns...),
		GeneratedAt:  p.now(),
	}, true
}
