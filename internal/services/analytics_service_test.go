package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dailyanalytics/internal/storage"
	ws "dailyanalytics/internal/websocket"
)

func f(v float64) *float64 { return &v }

func TestAnalyticsService_Analytics(t *testing.T) {
	clock := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	repo := storage.NewMemoryRepository(storage.WithClock(now))
	ctx := context.Background()

	insert := func(at time.Time, name string, v *float64) {
		clock = at
		_, err := repo.Insert(ctx, name, v)
		require.NoError(t, err)
	}
	day1 := time.Date(2024, 5, 9, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	insert(day1, "Revenue", f(100))
	insert(day1.Add(time.Hour), "Revenue", f(150))
	insert(day1, "Users", f(10))
	insert(day2, "Revenue", f(300))
	insert(day2, "Pending", nil)
	clock = day2.Add(time.Hour)

	logger, _ := newTestLogger()
	svc := NewAnalyticsService(repo, nil, logger)
	svc.now = now

	payload, err := svc.Analytics(ctx)
	require.NoError(t, err)

	line := payload.LineChartData
	assert.Equal(t, []string{"2024-05-09", "2024-05-10"}, line.Labels)
	require.Len(t, line.Datasets, 2)
	assert.Equal(t, "Revenue", line.Datasets[0].Label)
	assert.Equal(t, []*float64{f(150), f(300)}, line.Datasets[0].Data)
	assert.Equal(t, "Users", line.Datasets[1].Label)
	assert.Equal(t, []*float64{f(10), nil}, line.Datasets[1].Data)

	bar := payload.BarChartData
	assert.Equal(t, []string{"Revenue", "Users"}, bar.Labels)
	require.Len(t, bar.Datasets, 1)
	assert.Equal(t, []*float64{f(300), f(10)}, bar.Datasets[0].Data)

	pie := payload.PieChartData
	assert.Equal(t, []string{"Revenue", "Users"}, pie.Labels)
	assert.Equal(t, []*float64{f(96.77), f(3.23)}, pie.Datasets[0].Data)

	assert.Equal(t, clock, payload.GeneratedAt)
}

func TestAnalyticsService_EmptyRepository(t *testing.T) {
	logger, _ := newTestLogger()
	svc := NewAnalyticsService(storage.NewMemoryRepository(), nil, logger)

	payload, err := svc.Analytics(context.Background())
	require.NoError(t, err)
	assert.Empty(t, payload.LineChartData.Labels)
	assert.NotNil(t, payload.LineChartData.Labels)
	assert.Empty(t, payload.BarChartData.Labels)

	rows, err := svc.RecentMetrics(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
}

func TestAnalyticsService_RecordMetricBroadcasts(t *testing.T) {
	hub := &MockBroadcaster{}
	hub.On("BroadcastJSONContext", mock.Anything, ws.TypeMetric, mock.AnythingOfType("storage.Metric")).
		Return(nil).Once()

	logger, _ := newTestLogger()
	svc := NewAnalyticsService(storage.NewMemoryRepository(), hub, logger)

	m, err := svc.RecordMetric(context.Background(), "Revenue", f(12.5))
	require.NoError(t, err)
	assert.Equal(t, "Revenue", m.MetricName)
	hub.AssertExpectations(t)
}

func TestAnalyticsService_RecordMetricBroadcastFailureIsLogged(t *testing.T) {
	hub := &MockBroadcaster{}
	hub.On("BroadcastJSONContext", mock.Anything, ws.TypeMetric, mock.Anything).
		Return(errors.New("hub down"))

	logger, logs := newTestLogger()
	svc := NewAnalyticsService(storage.NewMemoryRepository(), hub, logger)

	_, err := svc.RecordMetric(context.Background(), "Revenue", nil)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Failed to broadcast metric")
}

func TestAnalyticsService_RecordMetricInvalid(t *testing.T) {
	hub := &MockBroadcaster{}
	logger, _ := newTestLogger()
	svc := NewAnalyticsService(storage.NewMemoryRepository(), hub, logger)

	_, err := svc.RecordMetric(context.Background(), "", f(1))
	assert.ErrorIs(t, err, storage.ErrInvalidMetric)
	hub.AssertNotCalled(t, "BroadcastJSONContext", mock.Anything, mock.Anything, mock.Anything)
}
