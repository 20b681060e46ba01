package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/files"
	"dailyanalytics/internal/ml"
	"dailyanalytics/internal/services"
	"dailyanalytics/internal/shared/testutil"
	"dailyanalytics/internal/storage"
)

func newTestToolset(t *testing.T) *toolset {
	t.Helper()
	pathsCfg := config.Default().Paths
	pathsCfg.BaseDir = t.TempDir()
	paths, err := pathsCfg.Resolve()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg := ml.DefaultPipelineConfig()
	cfg.NEstimators = 5

	return &toolset{
		paths:     paths,
		analytics: services.NewAnalyticsService(storage.NewMemoryRepository(), nil, logger),
		pipeline:  services.NewPipelineService(cfg, paths, 1, nil, nil, logger),
		logger:    logger,
	}
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestHandleListDatasets(t *testing.T) {
	ts := newTestToolset(t)
	testutil.WriteTrainingCSV(t, ts.paths.DataDir, "train.csv", 40)

	res, err := ts.handleListDatasets(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var found []files.FileInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "train.csv", found[0].Path)
	assert.Equal(t, files.FormatCSV, found[0].Format)
}

func TestHandleDatasetReport(t *testing.T) {
	ts := newTestToolset(t)
	testutil.WriteFile(t, ts.paths.DataDir, filepath.Base(ts.paths.DataFile), "a,b\n1,2\n3,\n")

	res, err := ts.handleDatasetReport(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var report datasetReport
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &report))
	assert.Equal(t, ts.paths.DataFile, report.FilePath)
	assert.Equal(t, "success", report.Report.Status)
	require.NotNil(t, report.Summary)
	assert.Equal(t, 2, report.Summary.TotalRecords)
	assert.InDelta(t, 0.75, report.Analytics.DataQualityScore, 1e-9)
}

func TestHandleDatasetReport_Errors(t *testing.T) {
	ts := newTestToolset(t)

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr error
	}{
		{name: "default file missing", args: nil},
		{name: "escapes data dir", args: map[string]interface{}{"file_path": "../secrets.csv"}, wantErr: services.ErrPathNotAllowed},
		{name: "unknown file", args: map[string]interface{}{"file_path": "nope.csv"}, wantErr: services.ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ts.handleDatasetReport(context.Background(), callRequest(tt.args))
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRecordMetricAndAnalyticsReport(t *testing.T) {
	ts := newTestToolset(t)
	ctx := context.Background()

	res, err := ts.handleRecordMetric(ctx, callRequest(map[string]interface{}{
		"metric_name":  "Revenue",
		"metric_value": 125.5,
	}))
	require.NoError(t, err)

	var m storage.Metric
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &m))
	assert.Equal(t, "Revenue", m.MetricName)
	require.NotNil(t, m.MetricValue)
	assert.Equal(t, 125.5, *m.MetricValue)

	_, err = ts.handleRecordMetric(ctx, callRequest(map[string]interface{}{}))
	assert.Error(t, err)

	res, err = ts.handleAnalyticsReport(ctx, callRequest(nil))
	require.NoError(t, err)

	var payload services.AnalyticsPayload
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &payload))
	assert.Equal(t, []string{"Revenue"}, payload.BarChartData.Labels)
}

func TestHandleTrainModel(t *testing.T) {
	ts := newTestToolset(t)
	testutil.WriteTrainingCSV(t, ts.paths.DataDir, "train.csv", 40)

	res, err := ts.handleTrainModel(context.Background(), callRequest(map[string]interface{}{
		"file_path":     "train.csv",
		"target_column": "target",
	}))
	require.NoError(t, err)

	var result services.TrainResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &result))
	assert.Equal(t, 40, result.Rows)
	require.NotNil(t, result.Performance)
	assert.Greater(t, result.Performance.R2Score, 0.8)
	assert.FileExists(t, result.ModelPath)
	assert.Equal(t, ts.paths.ModelsDir, filepath.Dir(result.ModelPath))

	_, err = ts.handleTrainModel(context.Background(), callRequest(map[string]interface{}{}))
	assert.Error(t, err)

	_, err = ts.handleTrainModel(context.Background(), callRequest(map[string]interface{}{
		"file_path":     "train.csv",
		"target_column": "price",
	}))
	assert.ErrorIs(t, err, ml.ErrTargetMissing)
}

func TestNewMCPServer(t *testing.T) {
	assert.NotNil(t, newMCPServer(newTestToolset(t)))
}
