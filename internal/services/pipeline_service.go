package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/dataset"
	"dailyanalytics/internal/files"
	"dailyanalytics/internal/infrastructure"
	"dailyanalytics/internal/jobs"
	"dailyanalytics/internal/ml"
	ws "dailyanalytics/internal/websocket"
)

// JobKindTrain identifies model training jobs.
const JobKindTrain = "train_model"

// TrainRequest describes one training run. FilePath is relative to the data
// directory unless absolute.
type TrainRequest struct {
	FilePath     string `json:"file_path" validate:"required"`
	TargetColumn string `json:"target_column,omitempty" validate:"omitempty,max=255"`
}

// TrainResult is the outcome of a training run.
type TrainResult struct {
	Performance *ml.Performance `json:"performance"`
	ModelPath   string          `json:"model_path"`
	Rows        int             `json:"rows"`
	Duration    string          `json:"duration"`
}

// PipelineService trains models, directly or through the job queue.
type PipelineService struct {
	cfg       ml.PipelineConfig
	dataDir   string
	modelsDir string
	queue     *jobs.Queue
	hub       Broadcaster
	metrics   *infrastructure.AnalyticsMetrics
	logger    *slog.Logger
}

// NewPipelineService creates the service and its job queue. hub and metrics
// may be nil. Call Start before submitting jobs.
func NewPipelineService(cfg ml.PipelineConfig, paths *config.Paths, workers int, hub Broadcaster, metrics *infrastructure.AnalyticsMetrics, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PipelineService{
		cfg:       cfg,
		dataDir:   paths.DataDir,
		modelsDir: paths.ModelsDir,
		hub:       hub,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "pipeline_service")),
	}
	s.queue = jobs.NewQueue(workers, jobs.NewMemoryStore(), s.runJob, logger,
		jobs.WithMetrics(metrics),
		jobs.WithListener(s.onJobUpdate))
	return s
}

// Start starts the job workers.
func (s *PipelineService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop stops the job workers.
func (s *PipelineService) Stop(timeout time.Duration) error {
	return s.queue.Stop(timeout)
}

// ResolveDataPath maps a request path into the data directory. Paths that
// escape it are rejected.
func (s *PipelineService) ResolveDataPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: file_path is required", ErrInvalidInput)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.dataDir, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(s.dataDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathNotAllowed, p)
	}
	if !config.FileExists(p) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, p)
	}
	return p, nil
}

// Submit checks that req names a loadable dataset and enqueues a training
// job for it.
func (s *PipelineService) Submit(ctx context.Context, req TrainRequest) (*jobs.Job, error) {
	path, err := s.ResolveDataPath(req.FilePath)
	if err != nil {
		return nil, err
	}
	if _, err := dataset.Load(path); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", filepath.Base(path), err)
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	job := &jobs.Job{
		Kind: JobKindTrain,
		Params: map[string]string{
			"file_path":     path,
			"target_column": req.TargetColumn,
		},
		TraceID: infrastructure.GetTraceID(ctx),
	}
	job, err = s.queue.Enqueue(job)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Training job submitted",
		slog.String("job_id", job.ID),
		slog.String("file_path", path))
	return job, nil
}

// Job returns a job by ID.
func (s *PipelineService) Job(id string) (*jobs.Job, error) {
	return s.queue.Get(id)
}

// Jobs lists jobs, newest first.
func (s *PipelineService) Jobs(filter jobs.Filter) ([]*jobs.Job, error) {
	return s.queue.List(filter)
}

// Cancel cancels a pending or running job.
func (s *PipelineService) Cancel(id string) (*jobs.Job, error) {
	return s.queue.Cancel(id)
}

// Datasets lists the CSV and XLSX files in the data directory. Paths are
// relative to it and can be passed as TrainRequest.FilePath.
func (s *PipelineService) Datasets(ctx context.Context) ([]files.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := files.NewDiscovery(s.dataDir).FindDatasets("")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}
	return found, nil
}

// QueueStats reports queue occupancy.
func (s *PipelineService) QueueStats() map[string]int {
	return s.queue.Stats()
}

func (s *PipelineService) runJob(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (any, error) {
	if job.Kind != JobKindTrain {
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}
	modelPath := filepath.Join(s.modelsDir, fmt.Sprintf("model_%s.gob", job.ID))
	return s.Train(ctx, job.Params["file_path"], job.Params["target_column"], modelPath, progress)
}

// Train loads path, trains and evaluates a model and saves it to modelPath.
// An empty targetColumn uses the configured one. progress may be nil.
func (s *PipelineService) Train(ctx context.Context, path, targetColumn, modelPath string, progress jobs.ProgressFunc) (*TrainResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	start := time.Now()

	cfg := s.cfg
	if targetColumn != "" {
		cfg.TargetColumn = targetColumn
	}
	pipeline := ml.NewPipeline(cfg, s.logger, s.metrics)

	progress(10, "Loading dataset")
	d, err := dataset.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	progress(30, "Preparing data")
	split, err := pipeline.PrepareData(d)
	if err != nil {
		return nil, fmt.Errorf("prepare data: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress(50, "Training model")
	if err := pipeline.TrainModel(ctx, split.XTrain, split.YTrain, split.FeatureNames); err != nil {
		return nil, err
	}

	progress(80, "Evaluating model")
	perf, err := pipeline.EvaluateModel(split.XTest, split.YTest)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	if modelPath != "" {
		progress(90, "Saving model")
		if err := pipeline.SaveModel(modelPath); err != nil {
			return nil, fmt.Errorf("save model: %w", err)
		}
	}

	elapsed := time.Since(start)
	s.logger.InfoContext(ctx, "Training finished",
		slog.String("file_path", path),
		slog.Float64("mse", perf.MSE),
		slog.Float64("r2_score", perf.R2Score),
		slog.Duration("duration", elapsed))

	return &TrainResult{
		Performance: perf,
		ModelPath:   modelPath,
		Rows:        d.NumRows(),
		Duration:    elapsed.String(),
	}, nil
}

func (s *PipelineService) onJobUpdate(job *jobs.Job) {
	if s.hub == nil {
		return
	}
	ctx := context.Background()
	if job.TraceID != "" {
		ctx = infrastructure.WithTraceID(ctx, job.TraceID)
	}
	err := s.hub.BroadcastJSONContext(ctx, ws.TypeJob, job)
	if err != nil && !errors.Is(err, ws.ErrHubStopped) {
		s.logger.WarnContext(ctx, "Failed to broadcast job update", slog.String("error", err.Error()))
	}
}
