package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/services"
)

// ErrNoData is returned when rendering before data has been loaded.
var ErrNoData = errors.New("no analytics data loaded")

const (
	dashboardSheet = "Dashboard"
	lineSheet      = "LineData"
	barSheet       = "BarData"
	pieSheet       = "PieData"
)

// AnalyticsDashboard loads /api/analytics and renders it as charts.
type AnalyticsDashboard struct {
	client     *Client
	outputPath string
	logger     *slog.Logger

	mu     sync.RWMutex
	data   *services.AnalyticsPayload
	charts []string
}

// NewAnalyticsDashboard creates a dashboard. When outputPath is set,
// Initialize renders to it after loading.
func NewAnalyticsDashboard(client *Client, outputPath string, logger *slog.Logger) *AnalyticsDashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsDashboard{
		client:     client,
		outputPath: outputPath,
		logger:     logger.With(slog.String("component", "analytics_dashboard")),
	}
}

// Initialize loads the data and, if an output path is configured, renders
// the charts.
func (d *AnalyticsDashboard) Initialize(ctx context.Context) error {
	d.logger.InfoContext(ctx, "Analytics dashboard initialized")

	if err := d.LoadData(ctx); err != nil {
		return err
	}
	if d.outputPath == "" {
		return nil
	}
	return d.RenderCharts(d.outputPath)
}

// LoadData fetches the chart payload. Errors are logged and returned; the
// previously loaded data is kept.
func (d *AnalyticsDashboard) LoadData(ctx context.Context) error {
	var payload services.AnalyticsPayload
	if err := d.client.GetJSON(ctx, config.AnalyticsEndpoint, &payload); err != nil {
		d.logger.ErrorContext(ctx, "Error loading data", slog.String("error", err.Error()))
		return fmt.Errorf("load analytics: %w", err)
	}

	d.mu.Lock()
	d.data = &payload
	d.mu.Unlock()

	d.logger.DebugContext(ctx, "Analytics data loaded",
		slog.Int("days", len(payload.LineChartData.Labels)),
		slog.Int("metrics", len(payload.BarChartData.Labels)))
	return nil
}

// Data returns the loaded payload, or nil.
func (d *AnalyticsDashboard) Data() *services.AnalyticsPayload {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data
}

// Charts returns the titles of the charts written by the last render.
func (d *AnalyticsDashboard) Charts() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.charts...)
}

type chartSpec struct {
	title string
	sheet string
	typ   excelize.ChartType
	data  services.ChartData
	cell  string
}

// RenderCharts writes the line, bar and pie charts to an XLSX workbook at
// path. Charts without labels are skipped; their data sheets are still
// written.
func (d *AnalyticsDashboard) RenderCharts(path string) error {
	data := d.Data()
	if data == nil {
		return ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dashboardSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	specs := []chartSpec{
		{title: "Metrics over time", sheet: lineSheet, typ: excelize.Line, data: data.LineChartData, cell: "A1"},
		{title: "Latest values", sheet: barSheet, typ: excelize.Col, data: data.BarChartData, cell: "A22"},
		{title: "Share of latest values", sheet: pieSheet, typ: excelize.Pie, data: data.PieChartData, cell: "K1"},
	}

	var rendered []string
	for _, spec := range specs {
		if err := writeChartData(f, spec.sheet, spec.data); err != nil {
			return err
		}
		if len(spec.data.Labels) == 0 || len(spec.data.Datasets) == 0 {
			d.logger.Debug("Skipping empty chart", slog.String("chart", spec.title))
			continue
		}
		if err := f.AddChart(dashboardSheet, spec.cell, buildChart(spec)); err != nil {
			return fmt.Errorf("add %s chart: %w", spec.sheet, err)
		}
		rendered = append(rendered, spec.title)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	d.mu.Lock()
	d.charts = rendered
	d.mu.Unlock()

	d.logger.Info("Charts rendered",
		slog.String("path", path),
		slog.Int("charts", len(rendered)))
	return nil
}

// writeChartData lays out labels in column A and one column per dataset.
// Gaps are left blank.
func writeChartData(f *excelize.File, sheet string, data services.ChartData) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	header := []interface{}{"Label"}
	for _, ds := range data.Datasets {
		header = append(header, ds.Label)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	for i, label := range data.Labels {
		row := []interface{}{label}
		for _, ds := range data.Datasets {
			if i < len(ds.Data) && ds.Data[i] != nil {
				row = append(row, *ds.Data[i])
			} else {
				row = append(row, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func buildChart(spec chartSpec) *excelize.Chart {
	last := len(spec.data.Labels) + 1
	categories := fmt.Sprintf("'%s'!$A$2:$A$%d", spec.sheet, last)

	chart := &excelize.Chart{
		Type:      spec.typ,
		Title:     []excelize.RichTextRun{{Text: spec.title}},
		Dimension: excelize.ChartDimension{Width: 640, Height: 360},
		Legend:    excelize.ChartLegend{Position: "bottom"},
	}
	for j := range spec.data.Datasets {
		col, _ := excelize.ColumnNumberToName(j + 2)
		chart.Series = append(chart.Series, excelize.ChartSeries{
			Name:       fmt.Sprintf("'%s'!$%s$1", spec.sheet, col),
			Categories: categories,
			Values:     fmt.Sprintf("'%s'!$%s$2:$%s$%d", spec.sheet, col, col, last),
		})
		if spec.typ == excelize.Pie {
			// a pie shows a single series
			break
		}
	}
	return chart
}
