// Package neighbors implements nearest-neighbor classifiers.
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/core/model"
	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

// KNeighborsClassifier implements majority-vote classification over the k
// nearest training samples
// Compatible with scikit-learn's KNeighborsClassifier (algorithm="brute", weights="uniform")
type KNeighborsClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	nNeighbors int     // Number of neighbors (k)
	p          float64 // Minkowski power (2 = Euclidean, 1 = Manhattan)

	// Model parameters
	X_        *mat.Dense // Training samples
	y_        []int      // Class index per training sample
	classes_  []float64  // Sorted class labels
	nClasses_ int        // Number of classes
}

var _ model.ProbabilisticClassifier = (*KNeighborsClassifier)(nil)

// KNeighborsOption is a functional option for KNeighborsClassifier
type KNeighborsOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates a new KNeighborsClassifier
func NewKNeighborsClassifier(opts ...KNeighborsOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
		p:          2,
	}

	for _, opt := range opts {
		opt(knn)
	}

	return knn
}

// WithNNeighbors sets the number of neighbors
func WithNNeighbors(k int) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.nNeighbors = k
	}
}

// WithP sets the Minkowski power of the distance
func WithP(p float64) KNeighborsOption {
	return func(knn *KNeighborsClassifier) {
		knn.p = p
	}
}

func (knn *KNeighborsClassifier) validate() error {
	if knn.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", knn.nNeighbors)
	}
	if knn.p < 1 {
		return errors.NewValidationError("p", "must be >= 1", knn.p)
	}
	return nil
}

// Fit stores the training samples
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if err := knn.validate(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("KNeighborsClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("KNeighborsClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("KNeighborsClassifier.Fit", fmt.Sprintf("y must be a column vector: got shape (%d, %d)", yRows, yCols))
	}

	knn.state.Reset()

	seen := make(map[float64]bool)
	knn.classes_ = knn.classes_[:0]
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		if !seen[label] {
			seen[label] = true
			knn.classes_ = append(knn.classes_, label)
		}
	}
	sort.Float64s(knn.classes_)
	knn.nClasses_ = len(knn.classes_)

	index := make(map[float64]int, knn.nClasses_)
	for i, c := range knn.classes_ {
		index[c] = i
	}
	knn.y_ = make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		knn.y_[i] = index[y.At(i, 0)]
	}
	knn.X_ = mat.DenseCopyOf(X)

	knn.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (knn *KNeighborsClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := knn.state.RequireFitted("KNeighborsClassifier", method); err != nil {
		return err
	}
	_, c := X.Dims()
	if err := knn.state.RequireFeatures("KNeighborsClassifier."+method, c); err != nil {
		return err
	}
	_, nTrain := knn.state.Dimensions()
	if knn.nNeighbors > nTrain {
		return errors.NewValidationError("n_neighbors", fmt.Sprintf("must be <= n_samples_fit (%d)", nTrain), knn.nNeighbors)
	}
	return nil
}

// KNeighbors returns the indices of the k nearest training samples of x,
// nearest first. Equal distances keep training order.
func (knn *KNeighborsClassifier) KNeighbors(x []float64) []int {
	nTrain, _ := knn.X_.Dims()
	order := make([]int, nTrain)
	dist := make([]float64, nTrain)
	for i := 0; i < nTrain; i++ {
		order[i] = i
		dist[i] = floats.Distance(x, knn.X_.RawRowView(i), knn.p)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dist[order[a]] < dist[order[b]]
	})
	return order[:knn.nNeighbors]
}

// votes counts the neighbor classes of every row of X
func (knn *KNeighborsClassifier) votes(X mat.Matrix) *mat.Dense {
	nSamples, nFeatures := X.Dims()
	counts := mat.NewDense(nSamples, knn.nClasses_, nil)
	row := make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		for _, j := range knn.KNeighbors(row) {
			c := knn.y_[j]
			counts.Set(i, c, counts.At(i, c)+1)
		}
	}
	return counts
}

// Predict returns the majority class among the k nearest neighbors; vote
// ties go to the smallest class
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}

	counts := knn.votes(X)
	nSamples, _ := counts.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, knn.classes_[floats.MaxIdx(counts.RawRowView(i))])
	}
	return predictions, nil
}

// PredictProba returns the fraction of neighbors in each class, one column
// per class in Classes order
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := knn.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	counts := knn.votes(X)
	counts.Scale(1/float64(knn.nNeighbors), counts)
	return counts, nil
}

// Score returns the mean accuracy on the given test data and labels
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := knn.Predict(X)
	if err != nil {
		return 0.0
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples)
}

// Classes returns the sorted class labels seen during Fit
func (knn *KNeighborsClassifier) Classes() []float64 {
	out := make([]float64, len(knn.classes_))
	copy(out, knn.classes_)
	return out
}

// GetParams returns the hyperparameters
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"p":           knn.p,
		"weights":     "uniform",
		"algorithm":   "brute",
	}
}

// SetParams sets the hyperparameters
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_neighbors":
			knn.nNeighbors, ok = value.(int)
		case "p":
			knn.p, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	return knn.validate()
}
