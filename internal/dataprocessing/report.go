package dataprocessing

import "time"

// StatusSuccess is the only status reports carry.
const StatusSuccess = "success"

// Report is the minimal status report.
type Report struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SummaryReport describes a loaded dataset.
type SummaryReport struct {
	TotalRecords int       `json:"total_records"`
	Columns      []string  `json:"columns"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// AnalyticsReport is produced by AdvancedProcessor.
type AnalyticsReport struct {
	Status             string             `json:"status"`
	Timestamp          time.Time          `json:"timestamp"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	DataQualityScore   float64            `json:"data_quality_score"`
}
