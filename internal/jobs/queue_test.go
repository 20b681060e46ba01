package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, q *Queue, id string, want Status) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = q.Get(id)
		return err == nil && job.Status == want
	}, 2*time.Second, 5*time.Millisecond, "job %s never reached %s", id, want)
	return job
}

func TestQueue(t *testing.T) {
	t.Run("completes job with result and progress", func(t *testing.T) {
		var mu sync.Mutex
		var seen []int

		runner := func(ctx context.Context, job *Job, progress ProgressFunc) (any, error) {
			progress(50, "halfway")
			return map[string]string{"file": job.Params["file_path"]}, nil
		}
		q := NewQueue(1, nil, runner, nil, WithListener(func(j *Job) {
			mu.Lock()
			seen = append(seen, j.Progress)
			mu.Unlock()
		}))
		q.Start(context.Background())
		defer q.Stop(time.Second)

		job, err := q.Enqueue(&Job{Kind: "train", Params: map[string]string{"file_path": "data.csv"}})
		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, StatusPending, job.Status)

		done := waitForStatus(t, q, job.ID, StatusCompleted)
		assert.Equal(t, 100, done.Progress)
		assert.Equal(t, map[string]string{"file": "data.csv"}, done.Result)
		assert.NotNil(t, done.StartedAt)
		assert.NotNil(t, done.CompletedAt)

		mu.Lock()
		assert.Contains(t, seen, 50)
		mu.Unlock()
	})

	t.Run("runner error marks job failed", func(t *testing.T) {
		q := NewQueue(1, nil, func(context.Context, *Job, ProgressFunc) (any, error) {
			return nil, errors.New("boom")
		}, nil)
		q.Start(context.Background())
		defer q.Stop(time.Second)

		job, err := q.Enqueue(&Job{Kind: "train"})
		require.NoError(t, err)

		failed := waitForStatus(t, q, job.ID, StatusFailed)
		assert.Equal(t, "boom", failed.Error)
	})

	t.Run("panic marks job failed", func(t *testing.T) {
		q := NewQueue(1, nil, func(context.Context, *Job, ProgressFunc) (any, error) {
			panic("kaboom")
		}, nil)
		q.Start(context.Background())
		defer q.Stop(time.Second)

		job, err := q.Enqueue(&Job{Kind: "train"})
		require.NoError(t, err)

		failed := waitForStatus(t, q, job.ID, StatusFailed)
		assert.Contains(t, failed.Error, "kaboom")
	})

	t.Run("cancel running job", func(t *testing.T) {
		started := make(chan struct{})
		q := NewQueue(1, nil, func(ctx context.Context, _ *Job, _ ProgressFunc) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}, nil)
		q.Start(context.Background())
		defer q.Stop(time.Second)

		job, err := q.Enqueue(&Job{Kind: "train"})
		require.NoError(t, err)
		<-started

		cancelled, err := q.Cancel(job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)

		// the runner's context error must not overwrite the cancellation
		time.Sleep(20 * time.Millisecond)
		got, err := q.Get(job.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)

		_, err = q.Cancel(job.ID)
		assert.ErrorIs(t, err, ErrNotCancellable)
	})

	t.Run("cancel pending job skips execution", func(t *testing.T) {
		var ran sync.Map
		release := make(chan struct{})
		q := NewQueue(1, nil, func(ctx context.Context, j *Job, _ ProgressFunc) (any, error) {
			ran.Store(j.ID, true)
			<-release
			return nil, nil
		}, nil)
		q.Start(context.Background())
		defer q.Stop(time.Second)

		first, err := q.Enqueue(&Job{ID: "first"})
		require.NoError(t, err)
		waitForStatus(t, q, first.ID, StatusRunning)

		second, err := q.Enqueue(&Job{ID: "second"})
		require.NoError(t, err)
		_, err = q.Cancel(second.ID)
		require.NoError(t, err)

		close(release)
		waitForStatus(t, q, first.ID, StatusCompleted)
		time.Sleep(20 * time.Millisecond)

		_, ok := ran.Load("second")
		assert.False(t, ok)
	})

	t.Run("full queue fails job", func(t *testing.T) {
		q := NewQueue(1, nil, nil, nil, WithCapacity(1))
		// not started: nothing drains the buffer

		_, err := q.Enqueue(&Job{ID: "a"})
		require.NoError(t, err)

		_, err = q.Enqueue(&Job{ID: "b"})
		assert.ErrorIs(t, err, ErrQueueFull)

		b, err := q.Get("b")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, b.Status)
		assert.Equal(t, ErrQueueFull.Error(), b.Error)
	})

	t.Run("enqueue after stop", func(t *testing.T) {
		q := NewQueue(1, nil, nil, nil)
		q.Start(context.Background())
		require.NoError(t, q.Stop(time.Second))
		require.NoError(t, q.Stop(time.Second))

		_, err := q.Enqueue(&Job{})
		assert.ErrorIs(t, err, ErrQueueStopped)
	})

	t.Run("unknown job", func(t *testing.T) {
		q := NewQueue(1, nil, nil, nil)
		_, err := q.Get("missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
		_, err = q.Cancel("missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestQueue_StopTimeoutCancelsRunningJobs(t *testing.T) {
	started := make(chan struct{})
	q := NewQueue(1, nil, func(ctx context.Context, _ *Job, _ ProgressFunc) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil)
	q.Start(context.Background())

	job, err := q.Enqueue(&Job{})
	require.NoError(t, err)
	<-started

	assert.Error(t, q.Stop(20*time.Millisecond))
	waitForStatus(t, q, job.ID, StatusFailed)
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(&Job{ID: "1", Kind: "train", Status: StatusCompleted, CreatedAt: base}))
	require.NoError(t, s.Create(&Job{ID: "2", Kind: "train", Status: StatusFailed, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Create(&Job{ID: "3", Kind: "export", Status: StatusCompleted, CreatedAt: base.Add(2 * time.Hour)}))
	assert.ErrorIs(t, s.Create(&Job{ID: "1"}), ErrJobExists)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"3", "2", "1"}},
		{"by status", Filter{Status: StatusCompleted}, []string{"3", "1"}},
		{"by kind", Filter{Kind: "train"}, []string{"2", "1"}},
		{"since", Filter{Since: base.Add(30 * time.Minute)}, []string{"3", "2"}},
		{"limit", Filter{Limit: 1}, []string{"3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(tt.filter)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, j := range got {
				ids[i] = j.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Create(&Job{ID: "1", Params: map[string]string{"k": "v"}}))

	got, err := s.Get("1")
	require.NoError(t, err)
	got.Params["k"] = "changed"
	got.Status = StatusFailed

	again, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Params["k"])
	assert.Empty(t, again.Status)

	require.NoError(t, s.Delete("1"))
	assert.ErrorIs(t, s.Delete("1"), ErrJobNotFound)
	assert.ErrorIs(t, s.Update(&Job{ID: "1"}), ErrJobNotFound)
}
