// Package tree implements CART decision trees for classification.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/core/model"
	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

// DecisionTreeClassifier implements a CART classification tree
// Compatible with scikit-learn's DecisionTreeClassifier
type DecisionTreeClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	criterion       string // Split quality: "gini", "entropy"
	maxDepth        int    // Maximum depth (0 = unlimited)
	minSamplesSplit int    // Minimum samples required to split a node
	minSamplesLeaf  int    // Minimum samples required in a leaf
	maxFeatures     int    // Features considered per split (0 = all)
	randomState     int64  // Random seed

	// Model parameters
	nodes               []node    // Flattened tree, root at index 0
	classes_            []float64 // Sorted class labels
	nClasses_           int       // Number of classes
	nFeatures_          int       // Number of features
	featureImportances_ []float64 // Normalized impurity decrease per feature
	depth_              int       // Depth of the fitted tree
	nLeaves_            int       // Number of leaves

	// Internal state
	rand *rand.Rand
}

var (
	_ model.ProbabilisticClassifier = (*DecisionTreeClassifier)(nil)
	_ model.FeatureImporter = (*DecisionTreeClassifier)(nil)
)

// node is a tree node. Leaves have feature == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     []float64 // class distribution of the training samples reaching the node
	nSamples  int
	impurity  float64
}

// DecisionTreeOption is a functional option for DecisionTreeClassifier
type DecisionTreeOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new DecisionTreeClassifier
func NewDecisionTreeClassifier(opts ...DecisionTreeOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     0,
		randomState:     -1,
	}

	for _, opt := range opts {
		opt(dt)
	}

	return dt
}

// WithCriterion sets the split quality measure ("gini" or "entropy")
func WithCriterion(criterion string) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum depth of the tree (0 = unlimited)
func WithMaxDepth(depth int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples required to split a node
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples required in a leaf
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features drawn at each split (0 = all)
func WithMaxFeatures(n int) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = n
	}
}

// WithRandomState sets the random seed used to draw candidate features
func WithRandomState(seed int64) DecisionTreeOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}
	if dt.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0", dt.maxDepth)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	if dt.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", dt.maxFeatures)
	}
	return nil
}

// Fit builds the tree from the training data
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("y must be a column vector: got shape (%d, %d)", yRows, yCols))
	}

	if dt.randomState >= 0 {
		dt.rand = rand.New(rand.NewSource(dt.randomState))
	} else {
		dt.rand = rand.New(rand.NewSource(rand.Int63()))
	}

	dt.state.Reset()
	dt.extractClasses(y)
	dt.nFeatures_ = nFeatures

	b := &builder{
		dt:          dt,
		X:           mat.DenseCopyOf(X),
		y:           make([]int, nSamples),
		importances: make([]float64, nFeatures),
	}
	index := make(map[float64]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		index[c] = i
	}
	for i := 0; i < nSamples; i++ {
		b.y[i] = index[y.At(i, 0)]
	}

	samples := make([]int, nSamples)
	for i := range samples {
		samples[i] = i
	}

	dt.nodes = dt.nodes[:0]
	dt.depth_ = 0
	dt.nLeaves_ = 0
	b.build(samples, 0)

	// 不純度減少量の合計を1に正規化する
	total := floats.Sum(b.importances)
	if total > 0 {
		floats.Scale(1/total, b.importances)
	}
	dt.featureImportances_ = b.importances

	dt.state.SetFitted(nFeatures, nSamples)
	return nil
}

// extractClasses identifies unique class labels
func (dt *DecisionTreeClassifier) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[float64]bool)
	dt.classes_ = dt.classes_[:0]
	for i := 0; i < rows; i++ {
		label := y.At(i, 0)
		if !seen[label] {
			seen[label] = true
			dt.classes_ = append(dt.classes_, label)
		}
	}
	sort.Float64s(dt.classes_)
	dt.nClasses_ = len(dt.classes_)
}

// builder holds the per-Fit working state.
type builder struct {
	dt          *DecisionTreeClassifier
	X           *mat.Dense
	y           []int
	importances []float64
}

// build grows the subtree for samples and returns its node index.
func (b *builder) build(samples []int, depth int) int {
	dt := b.dt
	counts := make([]float64, dt.nClasses_)
	for _, s := range samples {
		counts[b.y[s]]++
	}
	n := len(samples)
	impurity := dt.impurity(counts, float64(n))

	id := len(dt.nodes)
	value := make([]float64, len(counts))
	copy(value, counts)
	floats.Scale(1/float64(n), value)
	dt.nodes = append(dt.nodes, node{
		feature:  -1,
		value:    value,
		nSamples: n,
		impurity: impurity,
	})
	if depth > dt.depth_ {
		dt.depth_ = depth
	}

	isLeaf := impurity <= 0 ||
		n < dt.minSamplesSplit ||
		n < 2*dt.minSamplesLeaf ||
		(dt.maxDepth > 0 && depth >= dt.maxDepth)

	var s split
	if !isLeaf {
		s = b.bestSplit(samples, counts, impurity)
		isLeaf = !s.found
	}
	if isLeaf {
		dt.nLeaves_++
		return id
	}

	left := make([]int, 0, s.nLeft)
	right := make([]int, 0, n-s.nLeft)
	for _, smp := range samples {
		if b.X.At(smp, s.feature) <= s.threshold {
			left = append(left, smp)
		} else {
			right = append(right, smp)
		}
	}

	b.importances[s.feature] += float64(n)*impurity -
		float64(len(left))*s.impurityLeft -
		float64(len(right))*s.impurityRight

	leftID := b.build(left, depth+1)
	rightID := b.build(right, depth+1)

	dt.nodes[id].feature = s.feature
	dt.nodes[id].threshold = s.threshold
	dt.nodes[id].left = leftID
	dt.nodes[id].right = rightID
	return id
}

type split struct {
	found         bool
	feature       int
	threshold     float64
	nLeft         int
	gain          float64
	impurityLeft  float64
	impurityRight float64
}

// bestSplit searches the candidate features for the threshold with the
// largest impurity decrease. The first candidate wins ties.
func (b *builder) bestSplit(samples []int, counts []float64, impurity float64) split {
	dt := b.dt
	nFeatures := dt.nFeatures_

	order := make([]int, nFeatures)
	for i := range order {
		order[i] = i
	}
	limit := nFeatures
	if dt.maxFeatures > 0 && dt.maxFeatures < nFeatures {
		order = dt.rand.Perm(nFeatures)
		limit = dt.maxFeatures
	}

	best := split{gain: math.Inf(-1)}
	sorted := make([]int, len(samples))
	n := float64(len(samples))

	// 指定数の特徴量で分割が見つからない場合は残りの特徴量も調べる
	for visited, f := range order {
		if visited >= limit && best.found {
			break
		}

		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X.At(sorted[i], f) < b.X.At(sorted[j], f)
		})

		leftCounts := make([]float64, len(counts))
		rightCounts := make([]float64, len(counts))
		copy(rightCounts, counts)

		for i := 0; i < len(sorted)-1; i++ {
			c := b.y[sorted[i]]
			leftCounts[c]++
			rightCounts[c]--

			nLeft := i + 1
			nRight := len(sorted) - nLeft
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			v, next := b.X.At(sorted[i], f), b.X.At(sorted[i+1], f)
			if !(v < next) {
				continue
			}

			threshold := v + (next-v)/2
			if threshold >= next {
				threshold = v
			}

			impL := dt.impurity(leftCounts, float64(nLeft))
			impR := dt.impurity(rightCounts, float64(nRight))
			gain := impurity - float64(nLeft)/n*impL - float64(nRight)/n*impR
			if gain > best.gain {
				best = split{
					found:         true,
					feature:       f,
					threshold:     threshold,
					nLeft:         nLeft,
					gain:          gain,
					impurityLeft:  impL,
					impurityRight: impR,
				}
			}
		}
	}

	return best
}

// impurity computes the node impurity for the configured criterion
func (dt *DecisionTreeClassifier) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	result := 0.0
	switch dt.criterion {
	case "entropy":
		for _, c := range counts {
			if c > 0 {
				p := c / n
				result -= p * math.Log2(p)
			}
		}
	default:
		result = 1.0
		for _, c := range counts {
			p := c / n
			result -= p * p
		}
	}
	return result
}

// leaf returns the leaf reached by row i of X
func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *node {
	nd := &dt.nodes[0]
	for nd.feature >= 0 {
		if X.At(i, nd.feature) <= nd.threshold {
			nd = &dt.nodes[nd.left]
		} else {
			nd = &dt.nodes[nd.right]
		}
	}
	return nd
}

func (dt *DecisionTreeClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return dt.state.RequireFeatures("DecisionTreeClassifier."+method, c)
}

// Predict returns the most probable class for each sample
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "Predict"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, dt.classes_[floats.MaxIdx(dt.leaf(X, i).value)])
	}
	return predictions, nil
}

// PredictProba returns class probabilities, one column per class in Classes order
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		probas.SetRow(i, dt.leaf(X, i).value)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := dt.Predict(X)
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
func (dt *DecisionTreeClassifier) Classes() []float64 {
	out := make([]float64, len(dt.classes_))
	copy(out, dt.classes_)
	return out
}

// GetFeatureImportances returns the normalized impurity decrease per feature
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	out := make([]float64, len(dt.featureImportances_))
	copy(out, dt.featureImportances_)
	return out
}

// GetDepth returns the depth of the fitted tree
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves of the fitted tree
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.nLeaves_
}

// GetParams returns the hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets the hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.criterion, ok = value.(string)
		case "max_depth":
			dt.maxDepth, ok = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.maxFeatures, ok = value.(int)
		case "random_state":
			dt.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	return dt.validate()
}

// String returns a short description of the tree
func (dt *DecisionTreeClassifier) String() string {
	if !dt.state.IsFitted() {
		return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.criterion, dt.maxDepth)
	}
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, depth=%d, n_leaves=%d)",
		dt.criterion, dt.maxDepth, dt.depth_, dt.nLeaves_)
}
