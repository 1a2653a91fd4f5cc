// Package creditscore predicts the credit-score category of customers.
//
// A run loads a labeled customer file, encodes its text columns, holds out
// 30% of the rows with a fixed seed, trains a random forest and a
// k-nearest-neighbors classifier, prints their accuracy, draws three bar
// charts and scores a second file of new customers with the forest.
//
// The estimators follow a scikit-learn-like API over gonum matrices, so the
// building blocks are usable on their own.
//
// # Installation
//
//	go install github.com/YuminosukeSato/creditscore/cmd/creditscore@latest
//
// # Quick Start
//
// With clientes.csv and novos_clientes.csv in the working directory:
//
//	creditscore --report-dir charts
//
// or from Go:
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//	    "os"
//
//	    "github.com/YuminosukeSato/creditscore/config"
//	    "github.com/YuminosukeSato/creditscore/pipeline"
//	)
//
//	func main() {
//	    cfg := config.Default()
//	    cfg.ReportDir = "charts"
//
//	    res, err := pipeline.Run(context.Background(), cfg, pipeline.Options{Out: os.Stdout})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Println(res.Predictions)
//	}
//
// # Packages
//
//   - dataset: CSV loading into typed tables, previews
//   - preprocessing: LabelEncoder, EncodeCategorical, StandardScaler
//   - model_selection: seeded train/test split
//   - sklearn/tree, sklearn/ensemble: CART trees and random forest
//   - sklearn/neighbors: k-nearest-neighbors classifier
//   - metrics: accuracy and confusion matrix
//   - report: bar charts rendered with gonum/plot
//   - pipeline: the end-to-end run
//   - config: YAML configuration
//   - core/model: estimator interfaces and fitted-state tracking
//   - core/parallel: worker pool used by the forest
//   - pkg/errors, pkg/log, pkg/telemetry: errors, structured logging, Prometheus textfile metrics
//
// # Scikit-learn Compatibility
//
//	forest := ensemble.NewRandomForestClassifier(
//	    ensemble.WithNEstimators(100),
//	    ensemble.WithForestRandomState(1),
//	    ensemble.WithNJobs(-1), // Use all CPU cores
//	)
//	if err := forest.Fit(X, y); err != nil {
//	    return err
//	}
//	proba, err := forest.PredictProba(XTest)
//
// # Known Limitations
//
// New-customer files are encoded with freshly fitted encoders, so a category
// can receive a different code than it had in training.
package creditscore
