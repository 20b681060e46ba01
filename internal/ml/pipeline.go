// Package ml implements the regression pipeline: feature preparation, a
// seeded train/test split, a random forest regressor, evaluation and model
// persistence.
package ml

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sync"
	"time"

	"dailyanalytics/internal/dataset"
	"dailyanalytics/internal/infrastructure"
)

var (
	// ErrTargetMissing is returned when the dataset lacks the target column.
	ErrTargetMissing = errors.New("target column missing")
	// ErrNotEnoughRows is returned when fewer than two rows are available.
	ErrNotEnoughRows = errors.New("not enough rows to split")
	// ErrNoFeatures is returned when the target is the only column.
	ErrNoFeatures = errors.New("dataset has no feature columns")
	// ErrModelNotTrained is returned by operations that need a fitted model.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrNonFiniteScore is returned when evaluation overflows to NaN or Inf.
	ErrNonFiniteScore = errors.New("evaluation produced a non-finite score")
)

// PipelineConfig holds the pipeline hyperparameters.
type PipelineConfig struct {
	NEstimators  int
	RandomState  int64
	TestSize     float64
	TargetColumn string
	MaxDepth     int
	// Workers bounds concurrent tree fitting; 0 uses every CPU.
	Workers int
}

// DefaultPipelineConfig mirrors the defaults of the regressor: 100 trees,
// seed 42, 20% test split, "target" column.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		NEstimators:  100,
		RandomState:  42,
		TestSize:     0.2,
		TargetColumn: "target",
	}
}

// Performance is the evaluation result.
type Performance struct {
	MSE               float64            `json:"mse"`
	R2Score           float64            `json:"r2_score"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
}

// Pipeline trains and evaluates a random forest regressor. Methods are safe
// for concurrent use; training holds the lock only to publish the model.
type Pipeline struct {
	cfg     PipelineConfig
	logger  *slog.Logger
	metrics *infrastructure.AnalyticsMetrics

	mu                sync.RWMutex
	model             *RandomForestRegressor
	featureNames      []string
	featureImportance map[string]float64
	performance       *Performance
}

// NewPipeline creates an untrained pipeline. metrics may be nil.
func NewPipeline(cfg PipelineConfig, logger *slog.Logger, metrics *infrastructure.AnalyticsMetrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "ml_pipeline")),
		metrics: metrics,
	}
}

// PrepareData runs the feature hook, separates the target column and splits
// rows into train and test sets.
func (p *Pipeline) PrepareData(d *dataset.Dataset) (*Split, error) {
	if d == nil {
		return nil, dataset.ErrEmptyDataset
	}
	features := p.engineerFeatures(d)

	target := features.ColumnIndex(p.cfg.TargetColumn)
	if target < 0 {
		return nil, fmt.Errorf("%w: %q", ErrTargetMissing, p.cfg.TargetColumn)
	}
	if features.NumRows() < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughRows, features.NumRows())
	}

	var names []string
	var cols []int
	for j, c := range features.Columns {
		if j != target {
			names = append(names, c)
			cols = append(cols, j)
		}
	}
	if len(cols) == 0 {
		return nil, ErrNoFeatures
	}

	X := make([][]float64, features.NumRows())
	y := make([]float64, features.NumRows())
	for i := range features.Rows {
		row := make([]float64, len(cols))
		for k, j := range cols {
			v, err := dataset.ParseFloat(features.Cell(i, j))
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", features.Columns[j], i+1, err)
			}
			row[k] = v
		}
		X[i] = row

		v, err := dataset.ParseFloat(features.Cell(i, target))
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", p.cfg.TargetColumn, i+1, err)
		}
		y[i] = v
	}

	split, err := TrainTestSplit(X, y, p.cfg.TestSize, p.cfg.RandomState)
	if err != nil {
		return nil, err
	}
	split.FeatureNames = names
	return split, nil
}

// engineerFeatures is the feature engineering hook. It returns d unchanged.
func (p *Pipeline) engineerFeatures(d *dataset.Dataset) *dataset.Dataset {
	return d
}

// TrainModel fits a new forest and records per-feature importances keyed by
// featureNames.
func (p *Pipeline) TrainModel(ctx context.Context, XTrain [][]float64, yTrain []float64, featureNames []string) error {
	if len(XTrain) > 0 && len(featureNames) != len(XTrain[0]) {
		return fmt.Errorf("train: %d feature names for %d features", len(featureNames), len(XTrain[0]))
	}

	model := NewRandomForestRegressor(
		WithNEstimators(p.cfg.NEstimators),
		WithRandomState(p.cfg.RandomState),
		WithMaxDepth(p.cfg.MaxDepth),
		WithWorkers(p.cfg.Workers),
	)

	start := time.Now()
	if err := model.Fit(ctx, XTrain, yTrain); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	elapsed := time.Since(start)

	if p.metrics != nil {
		p.metrics.ModelTrainingDuration.Record(ctx, elapsed.Seconds())
	}

	importance := make(map[string]float64, len(featureNames))
	for i, name := range featureNames {
		importance[name] = model.FeatureImportances[i]
	}

	p.mu.Lock()
	p.model = model
	p.featureNames = append([]string(nil), featureNames...)
	p.featureImportance = importance
	p.performance = nil
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "Model trained",
		slog.Int("n_estimators", model.NEstimators),
		slog.Int("rows", len(XTrain)),
		slog.Duration("duration", elapsed))
	return nil
}

// EvaluateModel scores the model on a held-out set.
func (p *Pipeline) EvaluateModel(XTest [][]float64, yTest []float64) (*Performance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.model.Trained() {
		return nil, ErrModelNotTrained
	}
	if len(XTest) != len(yTest) {
		return nil, fmt.Errorf("evaluate: X has %d rows, y has %d", len(XTest), len(yTest))
	}

	pred := p.model.Predict(XTest)
	mse, r2 := MeanSquaredError(yTest, pred), R2Score(yTest, pred)
	if !isFinite(mse) || !isFinite(r2) {
		return nil, fmt.Errorf("%w: mse=%v r2=%v", ErrNonFiniteScore, mse, r2)
	}
	p.performance = &Performance{
		MSE:               mse,
		R2Score:           r2,
		FeatureImportance: maps.Clone(p.featureImportance),
	}

	out := *p.performance
	return &out, nil
}

// Predict returns model predictions for X.
func (p *Pipeline) Predict(X [][]float64) ([]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.model.Trained() {
		return nil, ErrModelNotTrained
	}
	return p.model.Predict(X), nil
}

// FeatureImportance returns a copy of the importances of the current model.
func (p *Pipeline) FeatureImportance() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.featureImportance)
}

// Performance returns the last evaluation, or nil.
func (p *Pipeline) Performance() *Performance {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.performance == nil {
		return nil
	}
	out := *p.performance
	return &out
}

// Run prepares d, trains on the training split and evaluates on the test split.
func (p *Pipeline) Run(ctx context.Context, d *dataset.Dataset) (*Performance, error) {
	split, err := p.PrepareData(d)
	if err != nil {
		return nil, fmt.Errorf("prepare data: %w", err)
	}
	if err := p.TrainModel(ctx, split.XTrain, split.YTrain, split.FeatureNames); err != nil {
		return nil, err
	}
	return p.EvaluateModel(split.XTest, split.YTest)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
