// Command processor loads a dataset, runs it through the basic and advanced
// processors and writes the processed copy and its reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/dataprocessing"
	"dailyanalytics/internal/exporter"
	"dailyanalytics/internal/files"
	"dailyanalytics/internal/infrastructure"
	"dailyanalytics/internal/validation"
)

// options are the resolved command line flags.
type options struct {
	InputPath string
	OutputDir string
	BOM       bool
}

// outputs lists the files a run produced.
type outputs struct {
	ProcessedCSV string
	ReportJSON   string
	MetricsCSV   string
}

// processingReport is the JSON document written next to the processed data.
type processingReport struct {
	Report    dataprocessing.Report          `json:"report"`
	Summary   *dataprocessing.SummaryReport  `json:"summary"`
	Analytics dataprocessing.AnalyticsReport `json:"analytics"`
}

func main() {
	inPath := flag.String("in", "", "input dataset (.csv or .xlsx); defaults to the configured data file")
	outDir := flag.String("out", "", "output directory; defaults to data/reports")
	bom := flag.Bool("bom", true, "prefix the processed CSV with a UTF-8 BOM")
	latest := flag.Bool("latest", false, "process the most recently modified dataset in the data directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	paths, err := cfg.Paths.Resolve()
	if err != nil {
		logger.Error("Failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts := options{InputPath: *inPath, OutputDir: *outDir, BOM: *bom}
	if *latest {
		datasets, err := files.NewDiscovery(paths.DataDir).FindDatasets("")
		if err != nil {
			logger.Error("Failed to list datasets", slog.String("error", err.Error()))
			os.Exit(1)
		}
		newest, ok := files.GetLatestFile(datasets)
		if !ok {
			logger.Error("No datasets found", slog.String("data_dir", paths.DataDir))
			os.Exit(1)
		}
		opts.InputPath = filepath.Join(paths.DataDir, filepath.FromSlash(newest.Path))
	}
	if opts.InputPath == "" {
		opts.InputPath = paths.DataFile
	}
	if opts.OutputDir == "" {
		opts.OutputDir = paths.ReportsDir
	}

	out, err := run(context.Background(), opts, logger)
	if err != nil {
		logger.Error("Processing failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Processing completed",
		slog.String("processed_csv", out.ProcessedCSV),
		slog.String("report_json", out.ReportJSON),
		slog.String("metrics_csv", out.MetricsCSV))
}

func run(ctx context.Context, opts options, logger *slog.Logger) (*outputs, error) {
	validator := validation.NewFileValidator(logger)
	if err := validator.ValidateDatasetFile(opts.InputPath); err != nil {
		return nil, err
	}
	if err := validator.ValidateOutputDirectory(opts.OutputDir); err != nil {
		return nil, err
	}

	processor := dataprocessing.NewDataProcessor(logger)
	if !processor.LoadData(opts.InputPath) {
		return nil, fmt.Errorf("could not load %s", opts.InputPath)
	}

	d := processor.ProcessData(processor.ProcessLoaded())

	advanced := dataprocessing.NewAdvancedProcessor(nil, logger, nil)
	processed, err := advanced.ProcessLargeDataset(ctx, d)
	if err != nil {
		return nil, err
	}

	summary, _ := processor.GenerateSummaryReport()
	report := processingReport{
		Report:    processor.GenerateReport(),
		Summary:   summary,
		Analytics: advanced.GenerateAnalyticsReport(),
	}

	base := strings.TrimSuffix(filepath.Base(opts.InputPath), filepath.Ext(opts.InputPath))
	out := &outputs{
		ProcessedCSV: filepath.Join(opts.OutputDir, base+"_processed.csv"),
		ReportJSON:   filepath.Join(opts.OutputDir, base+"_report.json"),
		MetricsCSV:   filepath.Join(opts.OutputDir, base+"_metrics.csv"),
	}

	writer := exporter.NewCSVWriter(opts.OutputDir)
	if err := writer.WriteDataset(out.ProcessedCSV, processed, opts.BOM); err != nil {
		return nil, fmt.Errorf("write processed data: %w", err)
	}
	if err := writer.WriteJSON(out.ReportJSON, report); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	metrics := report.Analytics.PerformanceMetrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	metrics["data_quality_score"] = report.Analytics.DataQualityScore
	if err := writer.WriteMetrics(out.MetricsCSV, metrics); err != nil {
		return nil, fmt.Errorf("write metrics: %w", err)
	}

	return out, nil
}
