package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"dailyanalytics/internal/infrastructure"
)

// ProgressFunc reports job progress in percent with a short message.
type ProgressFunc func(progress int, message string)

// Runner executes a job. The returned value is stored as the job result.
type Runner func(ctx context.Context, job *Job, progress ProgressFunc) (any, error)

// Listener observes every status or progress change of a job.
type Listener func(job *Job)

// Queue manages async job execution on a fixed set of workers.
type Queue struct {
	mu      sync.Mutex
	jobs    chan string
	workers int
	wg      sync.WaitGroup
	store   Store
	runner  Runner
	logger  *slog.Logger
	metrics *infrastructure.AnalyticsMetrics

	listeners []Listener

	started  bool
	stopped  bool
	shutdown chan struct{}
	cancel   context.CancelFunc
	running  map[string]context.CancelFunc
}

// Option configures a Queue.
type Option func(*Queue)

// WithCapacity sets the buffer size; default is 2x workers.
func WithCapacity(n int) Option {
	return func(q *Queue) { q.jobs = make(chan string, n) }
}

// WithMetrics records job outcomes.
func WithMetrics(m *infrastructure.AnalyticsMetrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// WithListener registers l for job updates.
func WithListener(l Listener) Option {
	return func(q *Queue) { q.listeners = append(q.listeners, l) }
}

// NewQueue creates a new job queue
func NewQueue(workers int, store Store, runner Runner, logger *slog.Logger, opts ...Option) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		jobs:     make(chan string, workers*2),
		workers:  workers,
		store:    store,
		runner:   runner,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
		running:  make(map[string]context.CancelFunc),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Start begins processing jobs
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop gracefully shuts down the job queue. Running jobs are cancelled if
// they do not finish within timeout.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.shutdown)
	cancel := q.cancel
	q.mu.Unlock()

	q.logger.Info("stopping job queue")

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped gracefully")
		if cancel != nil {
			cancel()
		}
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		if cancel != nil {
			cancel()
		}
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue stores job as pending and hands it to a worker. An empty ID is
// filled with a UUID. When the buffer is full the job is stored as failed
// and ErrQueueFull is returned.
func (q *Queue) Enqueue(job *Job) (*Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = StatusPending
	job.CreatedAt = time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return nil, ErrQueueStopped
	}

	if err := q.store.Create(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobs <- job.ID:
		q.logger.Info("job enqueued",
			slog.String("job_id", job.ID),
			slog.String("kind", job.Kind))
		q.notifyLocked(job)
		return job.Clone(), nil
	default:
		job.Status = StatusFailed
		job.Error = ErrQueueFull.Error()
		now := time.Now()
		job.CompletedAt = &now
		if err := q.store.Update(job); err != nil {
			q.logger.Error("failed to update job", slog.String("error", err.Error()))
		}
		q.record(context.Background(), job)
		q.notifyLocked(job)
		return nil, ErrQueueFull
	}
}

// Get retrieves a job by ID
func (q *Queue) Get(id string) (*Job, error) {
	return q.store.Get(id)
}

// List returns jobs matching the filter
func (q *Queue) List(filter Filter) ([]*Job, error) {
	return q.store.List(filter)
}

// Cancel cancels a pending or running job.
func (q *Queue) Cancel(id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCancellable, id, job.Status)
	}

	job.Status = StatusCancelled
	job.Message = "Job cancelled"
	now := time.Now()
	job.CompletedAt = &now
	if err := q.store.Update(job); err != nil {
		return nil, err
	}

	if cancel, ok := q.running[id]; ok {
		cancel()
	}

	q.logger.Info("job cancelled", slog.String("job_id", id))
	q.record(context.Background(), job)
	q.notifyLocked(job)
	return job, nil
}

// Stats returns queue statistics
func (q *Queue) Stats() map[string]int {
	q.mu.Lock()
	active := len(q.running)
	q.mu.Unlock()

	return map[string]int{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": active,
	}
}

func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case id := <-q.jobs:
			q.process(ctx, id, logger)
		}
	}
}

func (q *Queue) process(ctx context.Context, id string, logger *slog.Logger) {
	logger = logger.With(slog.String("job_id", id))

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	job, ok := q.begin(id, cancel, logger)
	if !ok {
		return
	}

	if job.TraceID != "" {
		jobCtx = infrastructure.WithTraceID(jobCtx, job.TraceID)
	}

	logger.Info("processing job started", slog.String("kind", job.Kind))

	progress := func(p int, msg string) {
		q.mu.Lock()
		defer q.mu.Unlock()
		cur, err := q.store.Get(id)
		if err != nil || cur.Status != StatusRunning {
			return
		}
		cur.Progress = min(max(p, 0), 100)
		cur.Message = msg
		if err := q.store.Update(cur); err != nil {
			logger.Error("failed to update job progress", slog.String("error", err.Error()))
			return
		}
		q.notifyLocked(cur)
	}

	result, err := q.run(jobCtx, job.Clone(), progress)
	q.finish(jobCtx, id, result, err, logger)
}

// run calls the runner and turns a panic into an error.
func (q *Queue) run(ctx context.Context, job *Job, progress ProgressFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job processing panicked: %v", r)
		}
	}()
	if q.runner == nil {
		return nil, errors.New("no job runner configured")
	}
	return q.runner(ctx, job, progress)
}

// begin moves a pending job to running. Jobs cancelled while queued are
// skipped.
func (q *Queue) begin(id string, cancel context.CancelFunc, logger *slog.Logger) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.Get(id)
	if err != nil {
		logger.Error("queued job disappeared", slog.String("error", err.Error()))
		return nil, false
	}
	if job.Status != StatusPending {
		logger.Debug("skipping job", slog.String("status", string(job.Status)))
		return nil, false
	}

	job.Status = StatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Progress = 0
	job.Message = "Job started"
	if err := q.store.Update(job); err != nil {
		logger.Error("failed to update job status", slog.String("error", err.Error()))
		return nil, false
	}

	q.running[id] = cancel
	q.notifyLocked(job)
	return job, true
}

func (q *Queue) finish(ctx context.Context, id string, result any, runErr error, logger *slog.Logger) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.running, id)

	job, err := q.store.Get(id)
	if err != nil {
		logger.Error("failed to load finished job", slog.String("error", err.Error()))
		return
	}
	if job.Status == StatusCancelled {
		logger.Info("processing job cancelled")
		return
	}

	now := time.Now()
	job.CompletedAt = &now
	if runErr != nil {
		logger.Error("job failed", slog.String("error", runErr.Error()))
		job.Status = StatusFailed
		job.Error = runErr.Error()
		job.Message = "Job failed"
	} else {
		job.Status = StatusCompleted
		job.Progress = 100
		job.Message = "Job completed successfully"
		job.Result = result
		logger.Info("processing job completed")
	}

	if err := q.store.Update(job); err != nil {
		logger.Error("failed to update job completion", slog.String("error", err.Error()))
	}
	q.record(context.WithoutCancel(ctx), job)
	q.notifyLocked(job)
}

func (q *Queue) record(ctx context.Context, job *Job) {
	if q.metrics == nil {
		return
	}
	q.metrics.JobsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", job.Kind),
		attribute.String("status", string(job.Status)),
	))
}

// notifyLocked must be called with q.mu held. Listeners receive a copy.
func (q *Queue) notifyLocked(job *Job) {
	for _, l := range q.listeners {
		l(job.Clone())
	}
}
