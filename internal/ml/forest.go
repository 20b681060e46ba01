package ml

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForestRegressor averages bootstrap-trained regression trees.
type RandomForestRegressor struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Bootstrap       bool
	RandomState     int64
	// Workers bounds concurrent tree fitting; <= 0 uses GOMAXPROCS.
	Workers int

	Trees []*RegressionTree
	// FeatureImportances sums to 1 when at least one split was made.
	FeatureImportances []float64
}

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

func WithNEstimators(n int) ForestOption   { return func(rf *RandomForestRegressor) { rf.NEstimators = n } }
func WithRandomState(s int64) ForestOption { return func(rf *RandomForestRegressor) { rf.RandomState = s } }
func WithMaxDepth(d int) ForestOption      { return func(rf *RandomForestRegressor) { rf.MaxDepth = d } }
func WithBootstrap(b bool) ForestOption    { return func(rf *RandomForestRegressor) { rf.Bootstrap = b } }
func WithWorkers(n int) ForestOption       { return func(rf *RandomForestRegressor) { rf.Workers = n } }

// NewRandomForestRegressor returns a forest of 100 unlimited-depth trees
// seeded with 42.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     42,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains every tree concurrently. Tree i draws its bootstrap sample and
// feature order from seed RandomState+i, so results do not depend on
// scheduling.
func (rf *RandomForestRegressor) Fit(ctx context.Context, X [][]float64, y []float64) error {
	if len(X) == 0 {
		return errors.New("random forest: empty X")
	}
	if len(X) != len(y) {
		return fmt.Errorf("random forest: X has %d rows, y has %d", len(X), len(y))
	}
	if rf.NEstimators <= 0 {
		return fmt.Errorf("random forest: n_estimators must be positive, got %d", rf.NEstimators)
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return fmt.Errorf("random forest: row %d has %d features, want %d", i, len(X[i]), p)
		}
	}

	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*RegressionTree, rf.NEstimators)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	n := len(X)
	for i := 0; i < rf.NEstimators; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rng := rand.New(rand.NewSource(rf.RandomState + int64(i)))
			sample := make([]int, n)
			for j := range sample {
				if rf.Bootstrap {
					sample[j] = rng.Intn(n)
				} else {
					sample[j] = j
				}
			}

			tree := &RegressionTree{
				MaxDepth:        rf.MaxDepth,
				MinSamplesSplit: rf.MinSamplesSplit,
				MinSamplesLeaf:  rf.MinSamplesLeaf,
			}
			if err := tree.Fit(X, y, sample, rng); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.Trees = trees
	rf.FeatureImportances = aggregateImportances(trees, p)
	return nil
}

// aggregateImportances normalises each tree's impurity decreases, averages
// them over the forest and normalises the result.
func aggregateImportances(trees []*RegressionTree, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, t := range trees {
		total := 0.0
		for _, v := range t.Importances {
			total += v
		}
		if total == 0 {
			continue
		}
		for f, v := range t.Importances {
			out[f] += v / total
		}
	}

	sum := 0.0
	for _, v := range out {
		sum += v
	}
	if sum > 0 {
		for f := range out {
			out[f] /= sum
		}
	}
	return out
}

// Predict averages the tree predictions for each row of X.
func (rf *RandomForestRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if len(rf.Trees) == 0 {
		return out
	}
	for i, x := range X {
		s := 0.0
		for _, t := range rf.Trees {
			s += t.Predict(x)
		}
		out[i] = s / float64(len(rf.Trees))
	}
	return out
}

// Trained reports whether Fit has completed.
func (rf *RandomForestRegressor) Trained() bool {
	return rf != nil && len(rf.Trees) > 0
}
