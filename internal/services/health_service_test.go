package services

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyanalytics/internal/storage"
)

type failingRepository struct {
	*storage.MemoryRepository
}

func (failingRepository) Recent(context.Context) ([]storage.Metric, error) {
	return nil, errors.New("connection refused")
}

func TestHealthService_HealthCheck(t *testing.T) {
	logger, _ := newTestLogger()
	hs := NewHealthService("1.2.3", "today", nil, nil, nil, nil, logger)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Nil(t, status.Services)
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name        string
		repo        storage.Repository
		writeData   bool
		removeData  bool
		wantStatus  string
		wantService map[string]string
	}{
		{
			name:       "all ready",
			repo:       storage.NewMemoryRepository(),
			writeData:  true,
			wantStatus: statusReady,
			wantService: map[string]string{
				"storage":   statusReady,
				"websocket": statusReady,
				"jobs":      statusReady,
				"data":      statusReady,
			},
		},
		{
			name:       "missing data file degrades",
			repo:       storage.NewMemoryRepository(),
			wantStatus: statusReady,
			wantService: map[string]string{
				"data": statusDegraded,
			},
		},
		{
			name:       "missing data dir is not ready",
			repo:       storage.NewMemoryRepository(),
			removeData: true,
			wantStatus: statusNotReady,
			wantService: map[string]string{
				"data": statusNotReady,
			},
		},
		{
			name:       "storage failure is not ready",
			repo:       failingRepository{storage.NewMemoryRepository()},
			writeData:  true,
			wantStatus: statusNotReady,
			wantService: map[string]string{
				"storage": statusNotReady,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := testPaths(t)
			if tt.writeData {
				require.NoError(t, os.WriteFile(paths.DataFile, []byte("a\n1\n"), 0644))
			}
			if tt.removeData {
				require.NoError(t, os.RemoveAll(paths.DataDir))
			}

			logger, _ := newTestLogger()
			pipeline := NewPipelineService(smallPipelineConfig(), paths, 1, nil, nil, logger)
			hs := NewHealthService("dev", "", paths, tt.repo, fixedCounter(2), pipeline, logger)

			status := hs.ReadinessCheck(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			for name, want := range tt.wantService {
				assert.Equal(t, want, status.Services[name].Status, name)
			}
		})
	}
}

func TestHealthService_LivenessAndVersion(t *testing.T) {
	logger, _ := newTestLogger()
	paths := testPaths(t)
	pipeline := NewPipelineService(smallPipelineConfig(), paths, 1, nil, nil, logger)
	hs := NewHealthService("1.0.0", "2024-01-01", paths, nil, fixedCounter(3), pipeline, logger)

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	require.NotNil(t, live.Runtime)
	assert.Positive(t, live.Runtime.Goroutines)

	v := hs.Version()
	assert.Equal(t, "1.0.0", v["version"])
	assert.Equal(t, "2024-01-01", v["build_time"])
	assert.Equal(t, 3, v["websocket_clients"])
	assert.Contains(t, v, "jobs")
}
