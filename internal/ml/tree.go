package ml

import (
	"errors"
	"math/rand"
	"sort"
)

// Node is one node of a regression tree stored in a flat slice. Leaves have
// Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Samples   int
}

// IsLeaf reports whether n is a leaf.
func (n Node) IsLeaf() bool { return n.Feature < 0 }

// RegressionTree is a CART tree grown with the squared error criterion.
type RegressionTree struct {
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int

	Nodes     []Node
	NFeatures int
	// Importances holds the total weighted impurity decrease per feature.
	Importances []float64
}

// NewRegressionTree returns a tree with sklearn-like defaults.
func NewRegressionTree() *RegressionTree {
	return &RegressionTree{MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

// Fit grows the tree on the rows of X selected by sample. A row may appear
// more than once in sample (bootstrap). A nil sample uses every row once.
func (t *RegressionTree) Fit(X [][]float64, y []float64, sample []int, rng *rand.Rand) error {
	if len(X) == 0 {
		return errors.New("regression tree: empty X")
	}
	if len(X) != len(y) {
		return errors.New("regression tree: X and y length mismatch")
	}
	if sample == nil {
		sample = make([]int, len(X))
		for i := range sample {
			sample[i] = i
		}
	}

	t.NFeatures = len(X[0])
	t.Nodes = t.Nodes[:0]
	t.Importances = make([]float64, t.NFeatures)

	b := &treeBuilder{tree: t, X: X, y: y, rng: rng}
	b.build(append([]int(nil), sample...), 0)
	return nil
}

// Predict returns the leaf value reached by x.
func (t *RegressionTree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the depth of the deepest leaf; a single leaf has depth 0.
func (t *RegressionTree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

type treeBuilder struct {
	tree *RegressionTree
	X    [][]float64
	y    []float64
	rng  *rand.Rand
}

type split struct {
	feature   int
	threshold float64
	position  int
	decrease  float64
}

// build appends the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	sse := sumSq - sum*sum/n

	self := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: -1, Value: sum / n, Samples: len(idx)})

	t := b.tree
	if len(idx) < t.MinSamplesSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) || sse <= 1e-12 {
		return self
	}

	best, ok := b.bestSplit(idx, sse)
	if !ok {
		return self
	}

	b.sortBy(idx, best.feature)
	left := append([]int(nil), idx[:best.position]...)
	right := append([]int(nil), idx[best.position:]...)

	t.Importances[best.feature] += best.decrease

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	t.Nodes[self].Feature = best.feature
	t.Nodes[self].Threshold = best.threshold
	t.Nodes[self].Left = l
	t.Nodes[self].Right = r
	return self
}

// bestSplit scans every feature in a random order with a sorted sweep over
// cumulative sums. Ties keep the first feature visited.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (split, bool) {
	var (
		best  split
		found bool
	)

	features := make([]int, b.tree.NFeatures)
	for i := range features {
		features[i] = i
	}
	if b.rng != nil {
		b.rng.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })
	}

	minLeaf := max(b.tree.MinSamplesLeaf, 1)
	total, totalSq := 0.0, 0.0
	for _, i := range idx {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	n := len(idx)

	for _, f := range features {
		b.sortBy(idx, f)

		leftSum, leftSq := 0.0, 0.0
		for k := 1; k < n; k++ {
			yi := b.y[idx[k-1]]
			leftSum += yi
			leftSq += yi * yi

			lo, hi := b.X[idx[k-1]][f], b.X[idx[k]][f]
			if lo == hi || k < minLeaf || n-k < minLeaf {
				continue
			}

			rightSum, rightSq := total-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(k)) + (rightSq - rightSum*rightSum/float64(n-k))
			decrease := parentSSE - sse

			if !found || decrease > best.decrease {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				best = split{feature: f, threshold: threshold, position: k, decrease: decrease}
				found = true
			}
		}
	}

	if found && best.decrease < 0 {
		best.decrease = 0
	}
	return best, found
}

func (b *treeBuilder) sortBy(idx []int, f int) {
	sort.SliceStable(idx, func(i, j int) bool {
		return b.X[idx[i]][f] < b.X[idx[j]][f]
	})
}
