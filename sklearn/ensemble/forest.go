// Package ensemble implements tree ensembles.
package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/core/model"
	"github.com/YuminosukeSato/creditscore/core/parallel"
	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"github.com/YuminosukeSato/creditscore/sklearn/tree"
)

// RandomForestClassifier implements a random forest classifier
// Compatible with scikit-learn's RandomForestClassifier
type RandomForestClassifier struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	nEstimators     int    // Number of trees
	criterion       string // Split quality: "gini", "entropy"
	maxDepth        int    // Maximum depth per tree (0 = unlimited)
	minSamplesSplit int    // Minimum samples required to split a node
	minSamplesLeaf  int    // Minimum samples required in a leaf
	maxFeatures     string // Features per split: "sqrt", "log2", "all"
	bootstrap       bool   // Draw a bootstrap sample per tree
	randomState     int64  // Random seed (-1 = nondeterministic)
	nJobs           int    // Parallel workers (-1 = all cores)

	// Model parameters
	estimators_ []*tree.DecisionTreeClassifier
	classes_    []float64
	nClasses_   int
	nFeatures_  int
}

var (
	_ model.ProbabilisticClassifier = (*RandomForestClassifier)(nil)
	_ model.FeatureImporter = (*RandomForestClassifier)(nil)
)

// RandomForestOption is a functional option for RandomForestClassifier
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a new RandomForestClassifier
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		randomState:     -1,
		nJobs:           -1,
	}

	for _, opt := range opts {
		opt(rf)
	}

	return rf
}

// WithNEstimators sets the number of trees
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithForestCriterion sets the split quality measure of every tree
func WithForestCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithForestMaxDepth sets the maximum depth of every tree (0 = unlimited)
func WithForestMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithForestMinSamplesSplit sets min_samples_split of every tree
func WithForestMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesSplit = n
	}
}

// WithForestMinSamplesLeaf sets min_samples_leaf of every tree
func WithForestMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.minSamplesLeaf = n
	}
}

// WithForestMaxFeatures sets the feature subsampling rule ("sqrt", "log2" or "all")
func WithForestMaxFeatures(rule string) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = rule
	}
}

// WithBootstrap sets whether each tree is fit on a bootstrap sample
func WithBootstrap(bootstrap bool) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = bootstrap
	}
}

// WithForestRandomState sets the random seed
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// WithNJobs sets the number of parallel workers (-1 = all cores)
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nJobs = n
	}
}

func (rf *RandomForestClassifier) validate() error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	switch rf.maxFeatures {
	case "sqrt", "log2", "all":
	default:
		return errors.NewValidationError("max_features", "must be 'sqrt', 'log2' or 'all'", rf.maxFeatures)
	}
	return nil
}

// featuresPerSplit resolves the max_features rule for nFeatures columns
func (rf *RandomForestClassifier) featuresPerSplit(nFeatures int) int {
	var m int
	switch rf.maxFeatures {
	case "sqrt":
		m = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		m = int(math.Log2(float64(nFeatures)))
	default:
		m = nFeatures
	}
	if m < 1 {
		m = 1
	}
	return m
}

// Fit trains the forest. Trees are fit in parallel; each tree draws its
// bootstrap sample and feature subsets from its own seed, so the result only
// depends on random_state.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if yRows != nSamples {
		return errors.NewDimensionError("RandomForestClassifier.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("RandomForestClassifier.Fit", fmt.Sprintf("y must be a column vector: got shape (%d, %d)", yRows, yCols))
	}

	rf.state.Reset()
	rf.extractClasses(y)
	rf.nFeatures_ = nFeatures

	var master *rand.Rand
	if rf.randomState >= 0 {
		master = rand.New(rand.NewSource(rf.randomState))
	} else {
		master = rand.New(rand.NewSource(rand.Int63()))
	}
	seeds := make([]int64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	XDense := mat.DenseCopyOf(X)
	maxFeatures := rf.featuresPerSplit(nFeatures)
	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	fitErrs := make([]error, rf.nEstimators)

	parallel.ForEach(rf.nEstimators, parallel.Workers(rf.nJobs), func(i int) {
		rng := rand.New(rand.NewSource(seeds[i]))
		est := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(maxFeatures),
			tree.WithRandomState(rng.Int63()),
		)

		Xi, yi := XDense, y
		if rf.bootstrap {
			Xi, yi = bootstrapSample(XDense, y, rng)
		}

		fitErrs[i] = est.Fit(Xi, yi)
		estimators[i] = est
	})

	for i, err := range fitErrs {
		if err != nil {
			return errors.NewModelError("RandomForestClassifier.Fit", fmt.Sprintf("tree %d", i), err)
		}
	}

	rf.estimators_ = estimators
	rf.state.SetFitted(nFeatures, nSamples)
	return nil
}

// bootstrapSample draws n rows with replacement
func bootstrapSample(X *mat.Dense, y mat.Matrix, rng *rand.Rand) (*mat.Dense, *mat.Dense) {
	n, c := X.Dims()
	Xb := mat.NewDense(n, c, nil)
	yb := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		j := rng.Intn(n)
		Xb.SetRow(i, X.RawRowView(j))
		yb.Set(i, 0, y.At(j, 0))
	}
	return Xb, yb
}

// extractClasses identifies unique class labels
func (rf *RandomForestClassifier) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[float64]bool)
	rf.classes_ = rf.classes_[:0]
	for i := 0; i < rows; i++ {
		label := y.At(i, 0)
		if !seen[label] {
			seen[label] = true
			rf.classes_ = append(rf.classes_, label)
		}
	}
	sort.Float64s(rf.classes_)
	rf.nClasses_ = len(rf.classes_)
}

func (rf *RandomForestClassifier) checkPredict(X mat.Matrix, method string) error {
	if err := rf.state.RequireFitted("RandomForestClassifier", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return rf.state.RequireFeatures("RandomForestClassifier."+method, c)
}

// PredictProba returns the mean of the tree probabilities, one column per
// class in Classes order. A bootstrap sample may miss a class; such trees
// contribute zero probability for it.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.checkPredict(X, "PredictProba"); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, rf.nClasses_, nil)

	index := make(map[float64]int, rf.nClasses_)
	for i, c := range rf.classes_ {
		index[c] = i
	}

	for _, est := range rf.estimators_ {
		p, err := est.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for j, c := range est.Classes() {
			col := index[c]
			for i := 0; i < nSamples; i++ {
				probas.Set(i, col, probas.At(i, col)+p.At(i, j))
			}
		}
	}

	probas.Scale(1/float64(len(rf.estimators_)), probas)
	return probas, nil
}

// Predict returns the class with the highest mean probability; ties go to
// the smallest class
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	dense := probas.(*mat.Dense)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, rf.classes_[floats.MaxIdx(dense.RawRowView(i))])
	}
	return predictions, nil
}

// Score returns the mean accuracy on the given test data and labels
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	predictions, err := rf.Predict(X)
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
func (rf *RandomForestClassifier) Classes() []float64 {
	out := make([]float64, len(rf.classes_))
	copy(out, rf.classes_)
	return out
}

// GetFeatureImportances returns the mean of the per-tree importances,
// normalized to sum to 1. Trees that never split are skipped.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	importances := make([]float64, rf.nFeatures_)
	for _, est := range rf.estimators_ {
		imp := est.GetFeatureImportances()
		if floats.Sum(imp) == 0 {
			continue
		}
		floats.Add(importances, imp)
	}

	total := floats.Sum(importances)
	if total > 0 {
		floats.Scale(1/total, importances)
	}
	return importances
}

// Estimators returns the fitted trees
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.estimators_
}

// GetParams returns the hyperparameters
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams sets the hyperparameters
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			rf.nEstimators, ok = value.(int)
		case "criterion":
			rf.criterion, ok = value.(string)
		case "max_depth":
			rf.maxDepth, ok = value.(int)
		case "min_samples_split":
			rf.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			rf.minSamplesLeaf, ok = value.(int)
		case "max_features":
			rf.maxFeatures, ok = value.(string)
		case "bootstrap":
			rf.bootstrap, ok = value.(bool)
		case "random_state":
			rf.randomState, ok = value.(int64)
		case "n_jobs":
			rf.nJobs, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "unexpected type", value)
		}
	}
	return rf.validate()
}
