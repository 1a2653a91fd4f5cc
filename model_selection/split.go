// Package model_selection provides data splitting utilities.
package model_selection

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

// Split holds the two disjoint row subsets produced by TrainTestSplit.
// TrainIndex and TestIndex are row positions in the input.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest []float64

	TrainIndex, TestIndex []int
}

// TrainTestSplit shuffles the rows of X and y with a generator seeded by seed
// and puts the first ceil(testSize*n) rows of the permutation in the test set.
// The same seed and input always give the same split. No stratification.
func TrainTestSplit(X mat.Matrix, y []float64, testSize float64, seed int64) (*Split, error) {
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	n, nFeatures := X.Dims()
	if len(y) != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, len(y), 0)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, errors.NewValidationError("test_size",
			"leaves an empty train or test set", testSize)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	s := &Split{
		XTrain:     mat.NewDense(nTrain, nFeatures, nil),
		XTest:      mat.NewDense(nTest, nFeatures, nil),
		YTrain:     make([]float64, nTrain),
		YTest:      make([]float64, nTest),
		TestIndex:  perm[:nTest],
		TrainIndex: perm[nTest:],
	}

	row := make([]float64, nFeatures)
	for i, idx := range s.TestIndex {
		mat.Row(row, idx, X)
		s.XTest.SetRow(i, row)
		s.YTest[i] = y[idx]
	}
	for i, idx := range s.TrainIndex {
		mat.Row(row, idx, X)
		s.XTrain.SetRow(i, row)
		s.YTrain[i] = y[idx]
	}

	return s, nil
}

// YTrainMatrix returns YTrain as an n×1 column for estimators.
func (s *Split) YTrainMatrix() *mat.Dense {
	return mat.NewDense(len(s.YTrain), 1, s.YTrain)
}

// YTestMatrix returns YTest as an n×1 column.
func (s *Split) YTestMatrix() *mat.Dense {
	return mat.NewDense(len(s.YTest), 1, s.YTest)
}
