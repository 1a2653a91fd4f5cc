package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	// y は n×1 の列ベクトルで、分類器の場合はクラスコードを保持する
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier is a supervised model predicting discrete class codes.
type Classifier interface {
	Fitter
	Predictor
}

// ProbabilisticClassifier additionally exposes per-class probabilities.
// Columns follow the order returned by Classes.
type ProbabilisticClassifier interface {
	Classifier

	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []float64
}

// FeatureImporter is implemented by tree based models.
type FeatureImporter interface {
	// GetFeatureImportances returns one non-negative score per feature,
	// normalized to sum to 1 (all zero when the model never split).
	GetFeatureImportances() []float64
}
