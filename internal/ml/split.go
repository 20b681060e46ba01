package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// Split is a train/test partition of a feature matrix and target.
type Split struct {
	XTrain       [][]float64
	XTest        [][]float64
	YTrain       []float64
	YTest        []float64
	FeatureNames []string
}

// TrainTestSplit shuffles rows with seed and moves ceil(n*testSize) of them
// into the test set. Both sides keep at least one row.
func TrainTestSplit(X [][]float64, y []float64, testSize float64, seed int64) (*Split, error) {
	n := len(X)
	if n != len(y) {
		return nil, fmt.Errorf("split: X has %d rows, y has %d", n, len(y))
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrNotEnoughRows, n)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, fmt.Errorf("split: test size must be in (0, 1), got %v", testSize)
	}

	nTest := int(math.Ceil(float64(n) * testSize))
	nTest = min(max(nTest, 1), n-1)

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	s := &Split{
		XTest:  make([][]float64, 0, nTest),
		YTest:  make([]float64, 0, nTest),
		XTrain: make([][]float64, 0, n-nTest),
		YTrain: make([]float64, 0, n-nTest),
	}
	for k, i := range perm {
		if k < nTest {
			s.XTest = append(s.XTest, X[i])
			s.YTest = append(s.YTest, y[i])
		} else {
			s.XTrain = append(s.XTrain, X[i])
			s.YTrain = append(s.YTrain, y[i])
		}
	}
	return s, nil
}
