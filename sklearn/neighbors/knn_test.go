package neighbors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

func TestKNeighborsClassifier_FitPredict(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		5, 5,
		5, 6,
		6, 5,
		6, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	XTest := mat.NewDense(2, 2, []float64{
		0.4, 0.6,
		5.5, 5.2,
	})
	preds, err := knn.Predict(XTest)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if preds.At(0, 0) != 0 || preds.At(1, 0) != 1 {
		t.Errorf("Expected [0 1], got [%v %v]", preds.At(0, 0), preds.At(1, 0))
	}

	if score := knn.Score(X, y); score != 1.0 {
		t.Errorf("Expected perfect training accuracy, got %v", score)
	}
}

func TestKNeighborsClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 10, 11})
	y := mat.NewDense(5, 1, []float64{0, 0, 1, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(4))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	probas, err := knn.PredictProba(mat.NewDense(1, 1, []float64{0.5}))
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}
	// Neighbors of 0.5: 0, 1, 2, 10 -> classes 0, 0, 1, 1
	if math.Abs(probas.At(0, 0)-0.5) > 1e-12 || math.Abs(probas.At(0, 1)-0.5) > 1e-12 {
		t.Errorf("Expected [0.5 0.5], got [%v %v]", probas.At(0, 0), probas.At(0, 1))
	}
}

func TestKNeighborsClassifier_Ties(t *testing.T) {
	// Vote ties go to the smallest class
	X := mat.NewDense(2, 1, []float64{-1, 1})
	y := mat.NewDense(2, 1, []float64{3, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(2))
	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	preds, err := knn.Predict(mat.NewDense(1, 1, []float64{0}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	if preds.At(0, 0) != 1 {
		t.Errorf("Expected tie to resolve to class 1, got %v", preds.At(0, 0))
	}

	// Equal distances keep training order
	X = mat.NewDense(3, 1, []float64{2, -1, 1})
	if err := knn.Fit(X, mat.NewDense(3, 1, []float64{0, 1, 2})); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	got := knn.KNeighbors([]float64{0})
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Expected neighbors [1 2], got %v", got)
	}
}

func TestKNeighborsClassifier_Manhattan(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{
		0, 3,
		2, 2,
	})
	y := mat.NewDense(2, 1, []float64{0, 1})

	// From the origin: Euclidean prefers (2,2) (2.83 < 3), Manhattan prefers (0,3) (3 < 4)
	euclid := NewKNeighborsClassifier(WithNNeighbors(1))
	manhattan := NewKNeighborsClassifier(WithNNeighbors(1), WithP(1))
	for _, knn := range []*KNeighborsClassifier{euclid, manhattan} {
		if err := knn.Fit(X, y); err != nil {
			t.Fatalf("Failed to fit model: %v", err)
		}
	}

	origin := mat.NewDense(1, 2, []float64{0, 0})
	pe, _ := euclid.Predict(origin)
	pm, _ := manhattan.Predict(origin)
	if pe.At(0, 0) != 1 || pm.At(0, 0) != 0 {
		t.Errorf("Expected euclidean=1 manhattan=0, got %v %v", pe.At(0, 0), pm.At(0, 0))
	}
}

func TestKNeighborsClassifier_Errors(t *testing.T) {
	knn := NewKNeighborsClassifier()
	X := mat.NewDense(3, 2, []float64{0, 0, 1, 1, 2, 2})
	y := mat.NewDense(3, 1, []float64{0, 1, 0})

	_, err := knn.Predict(X)
	var nfErr *errors.NotFittedError
	if !errors.As(err, &nfErr) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}

	if err := knn.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	// k=5 with only 3 training samples
	_, err = knn.Predict(X)
	var valErr *errors.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("Expected ValidationError, got %v", err)
	}

	if err := knn.SetParams(map[string]interface{}{"n_neighbors": 2}); err != nil {
		t.Fatalf("Failed to set params: %v", err)
	}
	_, err = knn.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Errorf("Expected DimensionError, got %v", err)
	}

	if err := knn.SetParams(map[string]interface{}{"n_neighbors": 0}); err == nil {
		t.Error("Expected error for n_neighbors=0")
	}
}
