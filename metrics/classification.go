package metrics

import (
	"sort"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy は正解率（予測が完全一致した割合）を計算する
// 部分一致やクラスごとの重み付けは行わない
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}

	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("Accuracy", n, yPred.Len(), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}

	return float64(correct) / float64(n), nil
}

// AccuracyMatrix は n×1 行列形式の入力に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("AccuracyMatrix", "empty matrix")
	}
	if cTrue != 1 || cPred != 1 {
		return 0, errors.NewValueError("AccuracyMatrix", "must be a column vector (n×1 matrix)")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AccuracyMatrix", rTrue, rPred, 0)
	}

	return Accuracy(
		mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)),
		mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)),
	)
}

// AccuracyLabels computes accuracy over decoded label sequences.
func AccuracyLabels(yTrue, yPred []string) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("AccuracyLabels", "empty labels")
	}
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("AccuracyLabels", len(yTrue), len(yPred), 0)
	}

	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// Confusion is a confusion matrix over string labels.
// Counts[i][j] is the number of samples of Labels[i] predicted as Labels[j].
type Confusion struct {
	Labels []string
	Counts [][]int
}

// ConfusionMatrix builds the confusion matrix of the labels seen in either
// sequence, sorted lexicographically.
func ConfusionMatrix(yTrue, yPred []string) (*Confusion, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "empty labels")
	}
	if len(yPred) != len(yTrue) {
		return nil, errors.NewDimensionError("ConfusionMatrix", len(yTrue), len(yPred), 0)
	}

	seen := make(map[string]struct{})
	for i := range yTrue {
		seen[yTrue[i]] = struct{}{}
		seen[yPred[i]] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	counts := make([][]int, len(labels))
	for i := range counts {
		counts[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		counts[index[yTrue[i]]][index[yPred[i]]]++
	}

	return &Confusion{Labels: labels, Counts: counts}, nil
}

// Total returns the number of samples counted.
func (c *Confusion) Total() int {
	total := 0
	for _, row := range c.Counts {
		for _, v := range row {
			total += v
		}
	}
	return total
}
