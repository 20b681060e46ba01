package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/dataprocessing"
	"dailyanalytics/internal/services"
)

// toolset holds the dependencies of the MCP tool handlers.
type toolset struct {
	paths     *config.Paths
	analytics *services.AnalyticsService
	pipeline  *services.PipelineService
	logger    *slog.Logger
}

// datasetReport is the result of the dataset_report tool.
type datasetReport struct {
	FilePath  string                         `json:"file_path"`
	Report    dataprocessing.Report          `json:"report"`
	Summary   *dataprocessing.SummaryReport  `json:"summary"`
	Analytics dataprocessing.AnalyticsReport `json:"analytics"`
}

func newMCPServer(t *toolset) *server.MCPServer {
	s := server.NewMCPServer(
		config.AppName,
		config.AppVersion,
		server.WithLogging(),
		server.WithRecovery(),
	)

	datasetTool := mcp.NewTool("dataset_report",
		mcp.WithDescription("Loads a CSV or XLSX dataset from the data directory and reports its record count, columns and data quality score."),
		mcp.WithString("file_path",
			mcp.Description("Dataset path relative to the data directory. Defaults to the configured data file."),
		),
	)

	listTool := mcp.NewTool("list_datasets",
		mcp.WithDescription("Lists the CSV and XLSX datasets in the data directory. Returned paths can be passed to dataset_report and train_model."),
	)

	analyticsTool := mcp.NewTool("analytics_report",
		mcp.WithDescription("Returns line, bar and pie chart data built from the last seven days of stored metrics."),
	)

	recordTool := mcp.NewTool("record_metric",
		mcp.WithDescription("Stores one metric value in the analytics table."),
		mcp.WithString("metric_name",
			mcp.Description("Metric name, at most 255 characters."),
			mcp.Required(),
		),
		mcp.WithNumber("metric_value",
			mcp.Description("Metric value. Omit to store NULL."),
		),
	)

	trainTool := mcp.NewTool("train_model",
		mcp.WithDescription("Trains a random forest regressor on a dataset, evaluates it on a held-out split and saves the model."),
		mcp.WithString("file_path",
			mcp.Description("Training dataset path relative to the data directory."),
			mcp.Required(),
		),
		mcp.WithString("target_column",
			mcp.Description("Column to predict."),
			mcp.DefaultString("target"),
		),
	)

	s.AddTool(listTool, t.handleListDatasets)
	s.AddTool(datasetTool, t.handleDatasetReport)
	s.AddTool(analyticsTool, t.handleAnalyticsReport)
	s.AddTool(recordTool, t.handleRecordMetric)
	s.AddTool(trainTool, t.handleTrainModel)
	return s
}

func (t *toolset) handleListDatasets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	datasets, err := t.pipeline.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(datasets)
}

func (t *toolset) handleDatasetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := t.paths.DataFile
	if p, ok := request.Params.Arguments["file_path"].(string); ok && p != "" {
		resolved, err := t.pipeline.ResolveDataPath(p)
		if err != nil {
			return nil, err
		}
		path = resolved
	}

	processor := dataprocessing.NewDataProcessor(t.logger)
	if !processor.LoadData(path) {
		return nil, fmt.Errorf("failed to load dataset %s", filepath.Base(path))
	}

	advanced := dataprocessing.NewAdvancedProcessor(nil, t.logger, nil)
	if _, err := advanced.ProcessLargeDataset(ctx, processor.ProcessData(processor.ProcessLoaded())); err != nil {
		return nil, err
	}

	summary, _ := processor.GenerateSummaryReport()
	return jsonResult(datasetReport{
		FilePath:  path,
		Report:    processor.GenerateReport(),
		Summary:   summary,
		Analytics: advanced.GenerateAnalyticsReport(),
	})
}

func (t *toolset) handleAnalyticsReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := t.analytics.Analytics(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(payload)
}

func (t *toolset) handleRecordMetric(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments

	name, ok := args["metric_name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("missing or invalid required argument: metric_name (string)")
	}

	var value *float64
	if v, ok := args["metric_value"].(float64); ok {
		value = &v
	}

	m, err := t.analytics.RecordMetric(ctx, name, value)
	if err != nil {
		return nil, err
	}
	return jsonResult(m)
}

func (t *toolset) handleTrainModel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments

	p, ok := args["file_path"].(string)
	if !ok || p == "" {
		return nil, fmt.Errorf("missing or invalid required argument: file_path (string)")
	}
	target, _ := args["target_column"].(string)

	path, err := t.pipeline.ResolveDataPath(p)
	if err != nil {
		return nil, err
	}

	modelPath := t.paths.ModelPath(fmt.Sprintf("model_%s.gob", time.Now().UTC().Format("20060102T150405")))
	result, err := t.pipeline.Train(ctx, path, target, modelPath, func(percent int, message string) {
		t.logger.DebugContext(ctx, "Training progress",
			slog.Int("progress", percent),
			slog.String("message", message))
	})
	if err != nil {
		return nil, err
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}
