package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyanalytics/internal/dataset"
	"dailyanalytics/internal/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "daily.csv")
	require.NoError(t, os.WriteFile(in, []byte("date,value\n2024-01-01,10\n2024-01-02,\n"), 0644))

	outDir := filepath.Join(dir, "reports")
	out, err := run(context.Background(), options{InputPath: in, OutputDir: outDir, BOM: true}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "daily_processed.csv"), out.ProcessedCSV)

	processed, err := dataset.Load(out.ProcessedCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "value"}, processed.Columns)
	assert.Equal(t, 2, processed.NumRows())

	raw, err := os.ReadFile(out.ProcessedCSV)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}))

	data, err := os.ReadFile(out.ReportJSON)
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal(data, &report))

	assert.Equal(t, "success", report["report"].(map[string]any)["status"])
	summary := report["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["total_records"])
	analytics := report["analytics"].(map[string]any)
	assert.InDelta(t, 0.75, analytics["data_quality_score"], 1e-9)
	assert.Contains(t, analytics["performance_metrics"], "processing_time")

	metrics, err := dataset.Load(out.MetricsCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"metric", "value"}, metrics.Columns)
	assert.Equal(t, "data_quality_score", metrics.Rows[0][0])
	assert.Equal(t, "processing_time", metrics.Rows[1][0])
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing input", func(t *testing.T) {
		_, err := run(context.Background(), options{
			InputPath: filepath.Join(dir, "missing.csv"),
			OutputDir: dir,
		}, testLogger())
		assert.ErrorIs(t, err, validation.ErrNotExist)
	})

	t.Run("unsupported input", func(t *testing.T) {
		in := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(in, []byte("a\n1\n"), 0644))
		_, err := run(context.Background(), options{InputPath: in, OutputDir: dir}, testLogger())
		assert.ErrorIs(t, err, validation.ErrUnsupportedFormat)
	})

	t.Run("cancelled", func(t *testing.T) {
		in := filepath.Join(dir, "ok.csv")
		require.NoError(t, os.WriteFile(in, []byte("a\n1\n"), 0644))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := run(ctx, options{InputPath: in, OutputDir: dir}, testLogger())
		assert.ErrorIs(t, err, context.Canceled)
		assert.NoFileExists(t, filepath.Join(dir, "ok_processed.csv"))
	})
}
