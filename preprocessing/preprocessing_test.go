package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/dataset"
	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

func TestLabelEncoder(t *testing.T) {
	enc := NewLabelEncoder()

	codes, err := enc.FitTransform([]string{"Standard", "Good", "Poor", "Good"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	want := []float64{2, 0, 1, 0}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("codes[%d] = %v, want %v", i, codes[i], want[i])
		}
	}

	classes := enc.Classes()
	if len(classes) != 3 || classes[0] != "Good" || classes[1] != "Poor" || classes[2] != "Standard" {
		t.Errorf("Classes() = %v, want [Good Poor Standard]", classes)
	}

	labels, err := enc.InverseTransform([]float64{1, 2, 0})
	if err != nil {
		t.Fatalf("InverseTransform() error = %v", err)
	}
	if labels[0] != "Poor" || labels[1] != "Standard" || labels[2] != "Good" {
		t.Errorf("InverseTransform() = %v", labels)
	}

	for _, bad := range []float64{3, -1, 0.5} {
		if _, err := enc.InverseTransform([]float64{bad}); err == nil {
			t.Errorf("InverseTransform(%v) should fail", bad)
		}
	}
}

func TestLabelEncoder_Unseen(t *testing.T) {
	enc := NewLabelEncoder()
	if err := enc.Fit([]string{"A", "B"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	_, err := enc.Transform([]string{"A", "C"})
	var schemaErr *errors.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Errorf("Expected SchemaError for unseen label, got %v", err)
	}
}

func TestLabelEncoder_RefitDiscardsMapping(t *testing.T) {
	enc := NewLabelEncoder()
	if err := enc.Fit([]string{"A", "B"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	codes, err := enc.FitTransform([]string{"B", "C"})
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}
	if codes[0] != 0 || codes[1] != 1 {
		t.Errorf("After refit B should be 0 and C 1, got %v", codes)
	}
	if _, err := enc.Transform([]string{"A"}); err == nil {
		t.Error("A should be unknown after refit")
	}
}

func TestLabelEncoder_NotFitted(t *testing.T) {
	enc := NewLabelEncoder()
	_, err := enc.Transform([]string{"A"})
	var nfErr *errors.NotFittedError
	if !errors.As(err, &nfErr) {
		t.Errorf("Expected NotFittedError, got %v", err)
	}
}

func TestEncodeCategorical(t *testing.T) {
	tbl, err := dataset.New(
		dataset.NewNumericColumn("idade", []float64{30, 40, 50}),
		dataset.NewTextColumn("profissao", []string{"Medico", "Advogado", "Medico"}),
		dataset.NewTextColumn("score_credito", []string{"Good", "Poor", "Good"}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	encoded, encoders, err := EncodeCategorical(tbl, "score_credito")
	if err != nil {
		t.Fatalf("EncodeCategorical() error = %v", err)
	}

	prof, _ := encoded.Column("profissao")
	if prof.Kind != dataset.Numeric {
		t.Fatalf("profissao should be numeric after encoding")
	}
	want := []float64{1, 0, 1}
	for i := range want {
		if prof.Floats[i] != want[i] {
			t.Errorf("profissao[%d] = %v, want %v", i, prof.Floats[i], want[i])
		}
	}

	target, _ := encoded.Column("score_credito")
	if target.Kind != dataset.Text || target.Strings[1] != "Poor" {
		t.Errorf("target column should be unchanged, got %+v", target)
	}

	age, _ := encoded.Column("idade")
	if age.Floats[2] != 50 {
		t.Errorf("numeric column should be unchanged, got %v", age.Floats)
	}

	if _, ok := encoders["profissao"]; !ok || len(encoders) != 1 {
		t.Errorf("expected exactly one encoder for profissao, got %v", encoders)
	}

	orig, _ := tbl.Column("profissao")
	if orig.Kind != dataset.Text {
		t.Error("input table must not be modified")
	}
}

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	scaler := NewStandardScalerDefault()
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	if math.Abs(scaler.Mean[0]-2.5) > 1e-12 {
		t.Errorf("Mean[0] = %v, want 2.5", scaler.Mean[0])
	}
	if math.Abs(scaler.Scale[0]-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("Scale[0] = %v, want %v", scaler.Scale[0], math.Sqrt(1.25))
	}
	// Constant column keeps scale 1
	if scaler.Scale[1] != 1 {
		t.Errorf("Scale[1] = %v, want 1", scaler.Scale[1])
	}

	sum := 0.0
	for i := 0; i < 4; i++ {
		sum += XScaled.At(i, 0)
		if XScaled.At(i, 1) != 0 {
			t.Errorf("constant column should scale to 0, got %v", XScaled.At(i, 1))
		}
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("scaled column should have zero mean, got sum %v", sum)
	}

	back, err := scaler.InverseTransform(XScaled)
	if err != nil {
		t.Fatalf("InverseTransform() error = %v", err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Error("InverseTransform should restore the input")
	}

	if _, err := scaler.Transform(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("Expected error for wrong number of features")
	}
	if _, err := NewStandardScalerDefault().Transform(X); err == nil {
		t.Error("Expected error before Fit")
	}
}
