package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/dataset"
	"dailyanalytics/internal/jobs"
	"dailyanalytics/internal/ml"
	"dailyanalytics/internal/shared/testutil"
	ws "dailyanalytics/internal/websocket"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default().Paths
	cfg.BaseDir = base
	paths, err := cfg.Resolve()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

func smallPipelineConfig() ml.PipelineConfig {
	cfg := ml.DefaultPipelineConfig()
	cfg.NEstimators = 10
	return cfg
}

func TestPipelineService_ResolveDataPath(t *testing.T) {
	paths := testPaths(t)
	testutil.WriteTrainingCSV(t, paths.DataDir, "train.csv", 5)
	logger, _ := newTestLogger()
	svc := NewPipelineService(smallPipelineConfig(), paths, 1, nil, nil, logger)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "relative path", input: "train.csv", want: filepath.Join(paths.DataDir, "train.csv")},
		{name: "absolute path inside", input: filepath.Join(paths.DataDir, "train.csv"), want: filepath.Join(paths.DataDir, "train.csv")},
		{name: "empty", input: "  ", wantErr: ErrInvalidInput},
		{name: "escapes data dir", input: "../secret.csv", wantErr: ErrPathNotAllowed},
		{name: "absolute outside", input: "/etc/passwd", wantErr: ErrPathNotAllowed},
		{name: "missing file", input: "nope.csv", wantErr: ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ResolveDataPath(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipelineService_Datasets(t *testing.T) {
	paths := testPaths(t)
	testutil.WriteTrainingCSV(t, paths.DataDir, "b.csv", 3)
	testutil.WriteTrainingCSV(t, paths.DataDir, "a.csv", 3)
	require.NoError(t, os.WriteFile(filepath.Join(paths.DataDir, "notes.txt"), []byte("x"), 0644))
	logger, _ := newTestLogger()
	svc := NewPipelineService(smallPipelineConfig(), paths, 1, nil, nil, logger)

	found, err := svc.Datasets(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "a.csv", found[0].Path)
	assert.Equal(t, "b.csv", found[1].Path)

	resolved, err := svc.ResolveDataPath(found[0].Path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.DataDir, "a.csv"), resolved)

	require.NoError(t, os.RemoveAll(paths.DataDir))
	_, err = svc.Datasets(context.Background())
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestPipelineService_Train(t *testing.T) {
	paths := testPaths(t)
	path := testutil.WriteTrainingCSV(t, paths.DataDir, "train.csv", 60)
	logger, _ := newTestLogger()
	svc := NewPipelineService(smallPipelineConfig(), paths, 1, nil, nil, logger)

	var mu sync.Mutex
	var steps []int
	progress := func(pct int, _ string) {
		mu.Lock()
		steps = append(steps, pct)
		mu.Unlock()
	}

	modelPath := paths.ModelPath("direct.gob")
	result, err := svc.Train(context.Background(), path, "", modelPath, progress)
	require.NoError(t, err)

	assert.Equal(t, 60, result.Rows)
	assert.Equal(t, modelPath, result.ModelPath)
	assert.Greater(t, result.Performance.R2Score, 0.9)
	assert.Len(t, result.Performance.FeatureImportance, 2)
	assert.FileExists(t, modelPath)
	assert.Equal(t, []int{10, 30, 50, 80, 90}, steps)
}

func TestPipelineService_TrainErrors(t *testing.T) {
	paths := testPaths(t)
	path := testutil.WriteTrainingCSV(t, paths.DataDir, "train.csv", 20)
	logger, _ := newTestLogger()
	svc := NewPipelineService(smallPipelineConfig(), paths, 1, nil, nil, logger)

	_, err := svc.Train(context.Background(), path, "missing", "", nil)
	assert.ErrorIs(t, err, ml.ErrTargetMissing)

	_, err = svc.Train(context.Background(), filepath.Join(paths.DataDir, "none.csv"), "", "", nil)
	assert.Error(t, err)

	nan := testutil.WriteFile(t, paths.DataDir, "nan.csv", "x,target\n1,2\n2,NaN\n3,6\n4,8\n")
	_, err = svc.Train(context.Background(), nan, "", paths.ModelPath("nan.gob"), nil)
	assert.ErrorIs(t, err, dataset.ErrNotFinite)
	assert.NoFileExists(t, paths.ModelPath("nan.gob"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Train(ctx, path, "", "", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineService_SubmitCompletes(t *testing.T) {
	paths := testPaths(t)
	testutil.WriteTrainingCSV(t, paths.DataDir, "train.csv", 40)

	hub := &MockBroadcaster{}
	hub.On("BroadcastJSONContext", mock.Anything, ws.TypeJob, mock.AnythingOfType("*jobs.Job")).Return(nil)

	logger, _ := newTestLogger()
	svc := NewPipelineService(smallPipelineConfig(), paths, 2, hub, nil, logger)
	svc.Start(context.Background())
	defer svc.Stop(5 * time.Second)

	job, err := svc.Submit(context.Background(), TrainRequest{FilePath: "train.csv"})
	require.NoError(t, err)
	assert.Equal(t, JobKindTrain, job.Kind)
	assert.NotEmpty(t, job.ID)
	assert.Len(t, job.TraceID, 36, "submissions without a request trace get a generated one")

	require.Eventually(t, func() bool {
		j, err := svc.Job(job.ID)
		return err == nil && j.Status.Terminal()
	}, 10*time.Second, 20*time.Millisecond)

	done, err := svc.Job(job.ID)
	require.NoError(t, err)
	require.Equal(t, jobs.StatusCompleted, done.Status, done.Error)
	assert.Equal(t, 100, done.Progress)
	assert.FileExists(t, paths.ModelPath(fmt.Sprintf("model_%s.gob", job.ID)))

	result, ok := done.Result.(*TrainResult)
	require.True(t, ok)
	assert.Equal(t, 40, result.Rows)

	list, err := svc.Jobs(jobs.Filter{Kind: JobKindTrain})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	hub.AssertCalled(t, "BroadcastJSONContext", mock.Anything, ws.TypeJob, mock.Anything)
}

func TestPipelineService_SubmitRejectsBadPath(t *testing.T) {
	paths := testPaths(t)
	logger, _ := newTestLogger()
	svc := NewPipelineService(smallPipelineConfig(), paths, 1, nil, nil, logger)

	_, err := svc.Submit(context.Background(), TrainRequest{FilePath: "../../etc/passwd"})
	assert.ErrorIs(t, err, ErrPathNotAllowed)

	testutil.WriteFile(t, paths.DataDir, "blob.bin", "\x00\x01\x02")
	_, err = svc.Submit(context.Background(), TrainRequest{FilePath: "blob.bin"})
	assert.ErrorIs(t, err, dataset.ErrUnsupportedFormat)

	testutil.WriteFile(t, paths.DataDir, "empty.csv", "")
	_, err = svc.Submit(context.Background(), TrainRequest{FilePath: "empty.csv"})
	assert.ErrorIs(t, err, dataset.ErrEmptyDataset)

	_, err = svc.Cancel("unknown")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}
