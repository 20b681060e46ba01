package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"dailyanalytics/internal/storage"
	ws "dailyanalytics/internal/websocket"
)

// ChartDataset is one Chart.js dataset. A nil entry is a gap.
type ChartDataset struct {
	Label string     `json:"label"`
	Data  []*float64 `json:"data"`
}

// ChartData is the Chart.js data object.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// AnalyticsPayload is the body of GET /api/analytics.
type AnalyticsPayload struct {
	LineChartData ChartData `json:"lineChartData"`
	BarChartData  ChartData `json:"barChartData"`
	PieChartData  ChartData `json:"pieChartData"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// AnalyticsService builds dashboard payloads from recent metrics.
type AnalyticsService struct {
	repo   storage.Repository
	hub    Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

// NewAnalyticsService creates the service. hub may be nil.
func NewAnalyticsService(repo storage.Repository, hub Broadcaster, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		repo:   repo,
		hub:    hub,
		logger: logger.With(slog.String("component", "analytics_service")),
		now:    time.Now,
	}
}

// RecentMetrics returns the last seven days of metrics, newest first.
func (s *AnalyticsService) RecentMetrics(ctx context.Context) ([]storage.Metric, error) {
	rows, err := s.repo.Recent(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent metrics: %w", err)
	}
	if rows == nil {
		rows = []storage.Metric{}
	}
	return rows, nil
}

// RecordMetric stores a metric and publishes it to stream subscribers.
func (s *AnalyticsService) RecordMetric(ctx context.Context, name string, value *float64) (storage.Metric, error) {
	m, err := s.repo.Insert(ctx, name, value)
	if err != nil {
		return storage.Metric{}, fmt.Errorf("record metric: %w", err)
	}

	s.logger.InfoContext(ctx, "Metric recorded",
		slog.Int64("id", m.ID),
		slog.String("metric_name", m.MetricName))

	if s.hub != nil {
		if err := s.hub.BroadcastJSONContext(ctx, ws.TypeMetric, m); err != nil {
			s.logger.WarnContext(ctx, "Failed to broadcast metric", slog.String("error", err.Error()))
		}
	}
	return m, nil
}

// Analytics returns line, bar and pie chart data.
//
// The line chart has one label per day and one dataset per metric holding
// that day's latest value. The bar chart holds each metric's latest value and
// the pie chart each positive latest value as a percentage of their sum.
// Rows with a NULL value are ignored.
func (s *AnalyticsService) Analytics(ctx context.Context) (*AnalyticsPayload, error) {
	rows, err := s.RecentMetrics(ctx)
	if err != nil {
		return nil, err
	}

	payload := &AnalyticsPayload{
		LineChartData: lineChartData(rows),
		BarChartData:  barChartData(rows),
		PieChartData:  pieChartData(rows),
		GeneratedAt:   s.now().UTC(),
	}
	return payload, nil
}

const dayLayout = "2006-01-02"

// rows are newest first, so the first value seen for a key is the latest.
func lineChartData(rows []storage.Metric) ChartData {
	type key struct{ name, day string }
	latest := make(map[key]float64)
	var names, days []string

	for _, m := range rows {
		if m.MetricValue == nil {
			continue
		}
		k := key{m.MetricName, m.CreatedAt.Format(dayLayout)}
		if _, ok := latest[k]; ok {
			continue
		}
		latest[k] = *m.MetricValue
		if !slices.Contains(names, k.name) {
			names = append(names, k.name)
		}
		if !slices.Contains(days, k.day) {
			days = append(days, k.day)
		}
	}
	slices.Sort(names)
	slices.Sort(days)

	out := ChartData{Labels: nonNil(days), Datasets: []ChartDataset{}}
	for _, name := range names {
		ds := ChartDataset{Label: name, Data: make([]*float64, len(days))}
		for i, day := range days {
			if v, ok := latest[key{name, day}]; ok {
				ds.Data[i] = &v
			}
		}
		out.Datasets = append(out.Datasets, ds)
	}
	return out
}

// latestValues returns metric names in sorted order and their newest value.
func latestValues(rows []storage.Metric) ([]string, map[string]float64) {
	latest := make(map[string]float64)
	var names []string
	for _, m := range rows {
		if m.MetricValue == nil {
			continue
		}
		if _, ok := latest[m.MetricName]; ok {
			continue
		}
		latest[m.MetricName] = *m.MetricValue
		names = append(names, m.MetricName)
	}
	slices.Sort(names)
	return names, latest
}

func barChartData(rows []storage.Metric) ChartData {
	names, latest := latestValues(rows)
	ds := ChartDataset{Label: "Latest value", Data: make([]*float64, len(names))}
	for i, name := range names {
		v := latest[name]
		ds.Data[i] = &v
	}
	return ChartData{Labels: nonNil(names), Datasets: []ChartDataset{ds}}
}

func pieChartData(rows []storage.Metric) ChartData {
	names, latest := latestValues(rows)

	var labels []string
	total := 0.0
	for _, name := range names {
		if latest[name] > 0 {
			labels = append(labels, name)
			total += latest[name]
		}
	}

	ds := ChartDataset{Label: "Share (%)", Data: make([]*float64, len(labels))}
	for i, name := range labels {
		share := math.Round(latest[name]/total*10000) / 100
		ds.Data[i] = &share
	}
	return ChartData{Labels: nonNil(labels), Datasets: []ChartDataset{ds}}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
