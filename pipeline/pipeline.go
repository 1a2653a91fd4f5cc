// Package pipeline runs the credit-score batch: load the labeled customers,
// encode them, split, train a random forest and a k-nearest-neighbors
// classifier, evaluate both, render the report charts and score the new
// customers with the forest.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/config"
	"github.com/YuminosukeSato/creditscore/core/model"
	"github.com/YuminosukeSato/creditscore/dataset"
	"github.com/YuminosukeSato/creditscore/metrics"
	"github.com/YuminosukeSato/creditscore/model_selection"
	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"github.com/YuminosukeSato/creditscore/pkg/log"
	"github.com/YuminosukeSato/creditscore/pkg/telemetry"
	"github.com/YuminosukeSato/creditscore/preprocessing"
	"github.com/YuminosukeSato/creditscore/report"
	"github.com/YuminosukeSato/creditscore/sklearn/ensemble"
	"github.com/YuminosukeSato/creditscore/sklearn/neighbors"
)

// Display names of the two models, in report order.
const (
	ForestName = "Random Forest"
	KNNName    = "KNN"
)

// Stage names, in execution order.
const (
	StageLoad      = "load"
	StageEncode    = "encode"
	StageSplit     = "split"
	StageTrain     = "train"
	StageEvaluate  = "evaluate"
	StageReport    = "report"
	StageLoadNew   = "load_new"
	StageEncodeNew = "encode_new"
	StageInfer     = "infer"
)

// previewRows is the number of rows printed for each table.
const previewRows = 5

// Options carries the collaborators of a run. Zero values are replaced by
// defaults: output is discarded, logs go to the process-wide provider, charts
// are written to cfg.ReportDir (or dropped when it is empty) and metrics are
// kept in a fresh recorder.
type Options struct {
	Out      io.Writer
	Logger   log.Logger
	Renderer report.Renderer
	Recorder *telemetry.Recorder
}

// Result summarizes a completed run.
type Result struct {
	RunID string

	TrainRows int
	TestRows  int

	FeatureNames []string

	// Held-out accuracy per model, keyed by ForestName and KNNName.
	Accuracy map[string]float64

	// Forest importances scaled to sum to 100, sorted descending.
	Importances []report.Importance

	Charts        []report.Chart
	ChartFailures int

	// Forest predictions for the new customers, in input order.
	Predictions []string
}

// Trained holds everything fitted on the training table that inference needs.
type Trained struct {
	FeatureNames []string
	IDColumn     string
	TargetColumn string

	Target *preprocessing.LabelEncoder
	Forest *ensemble.RandomForestClassifier
	KNN    *neighbors.KNeighborsClassifier

	// Scaler is set when neighbors.standardize is on; it only feeds KNN.
	Scaler *preprocessing.StandardScaler
}

type runner struct {
	cfg    config.Config
	out    io.Writer
	logger log.Logger
	render report.Renderer
	rec    *telemetry.Recorder
}

// Run executes the whole pipeline. Any failure except chart rendering and
// metrics export stops the run; ctx is checked between stages.
func Run(ctx context.Context, cfg config.Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:    uuid.NewString(),
		Accuracy: make(map[string]float64, 2),
	}

	r := &runner{cfg: cfg, out: opts.Out, logger: opts.Logger, render: opts.Renderer, rec: opts.Recorder}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.logger == nil {
		r.logger = log.GetLoggerWithName("pipeline")
	}
	if r.render == nil {
		if cfg.ReportDir != "" {
			r.render = report.NewPNGRenderer(cfg.ReportDir)
		} else {
			r.render = report.NopRenderer{}
		}
	}
	if r.rec == nil {
		r.rec = telemetry.NewRecorder()
	}
	r.logger = r.logger.With(log.RunIDKey, res.RunID)
	if opts.Renderer == nil && cfg.ReportDir == "" {
		r.logger.Info("Report directory unset, charts skipped", log.PhaseKey, log.PhaseReporting)
	}

	r.logger.Info("Pipeline started",
		log.PathKey, cfg.TrainPath,
		log.RandomSeedKey, cfg.Seed,
		log.TestFractionKey, cfg.TestFraction,
	)

	if err := r.run(ctx, res); err != nil {
		return nil, err
	}

	r.rec.MarkSuccess()
	if cfg.MetricsFile != "" {
		if err := r.rec.WriteTextfile(cfg.MetricsFile); err != nil {
			r.logger.Warn("Metrics export failed, skipping", err, log.PathKey, cfg.MetricsFile)
		}
	}

	r.logger.Info("Pipeline finished", log.PredsKey, len(res.Predictions))
	return res, nil
}

func (r *runner) run(ctx context.Context, res *Result) error {
	cfg := r.cfg

	var train, encoded *dataset.Table
	err := r.stage(ctx, StageLoad, func() error {
		var err error
		train, err = dataset.ReadCSV(cfg.TrainPath)
		if err != nil {
			return err
		}
		r.rec.SetRows("labeled", train.Rows())
		train.Head(r.out, previewRows)
		train.Info(r.out)
		return nil
	})
	if err != nil {
		return err
	}

	var labels []string
	var y []float64
	trained := &Trained{IDColumn: cfg.IDColumn, TargetColumn: cfg.TargetColumn}
	err = r.stage(ctx, StageEncode, func() error {
		var err error
		encoded, _, err = preprocessing.EncodeCategorical(train, cfg.TargetColumn)
		if err != nil {
			return err
		}
		if labels, err = train.Labels(cfg.TargetColumn); err != nil {
			return err
		}
		trained.Target = preprocessing.NewLabelEncoder()
		y, err = trained.Target.FitTransform(labels)
		return err
	})
	if err != nil {
		return err
	}

	var split *model_selection.Split
	err = r.stage(ctx, StageSplit, func() error {
		drop := []string{cfg.TargetColumn}
		if encoded.Has(cfg.IDColumn) {
			drop = append(drop, cfg.IDColumn)
		}
		X, names, err := encoded.Features(drop...)
		if err != nil {
			return err
		}
		trained.FeatureNames = names
		res.FeatureNames = names

		if split, err = model_selection.TrainTestSplit(X, y, cfg.TestFraction, cfg.Seed); err != nil {
			return err
		}
		res.TrainRows, res.TestRows = len(split.YTrain), len(split.YTest)
		r.rec.SetRows("train", res.TrainRows)
		r.rec.SetRows("test", res.TestRows)
		r.logger.Info("Data split",
			log.SamplesKey, res.TrainRows+res.TestRows,
			log.FeaturesKey, len(names),
			log.ClassesKey, len(trained.Target.Classes()),
			"train_rows", res.TrainRows,
			"test_rows", res.TestRows,
		)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageTrain, func() error {
		return r.train(trained, split)
	})
	if err != nil {
		return err
	}

	err = r.stage(ctx, StageEvaluate, func() error {
		return r.evaluate(trained, split, res)
	})
	if err != nil {
		return err
	}

	// Rendering failures are logged by report.Render and never fail the stage.
	_ = r.stage(ctx, StageReport, func() error {
		res.Charts = []report.Chart{
			report.LabelDistribution(labels),
			report.AccuracyComparison(
				[]string{ForestName, KNNName},
				[]float64{res.Accuracy[ForestName], res.Accuracy[KNNName]},
			),
			report.FeatureImportance(res.Importances),
		}
		res.ChartFailures = report.Render(r.render, r.logger, res.Charts...)
		return nil
	})

	var fresh *dataset.Table
	err = r.stage(ctx, StageLoadNew, func() error {
		var err error
		if fresh, err = dataset.ReadCSV(cfg.NewDataPath); err != nil {
			return err
		}
		r.rec.SetRows("new", fresh.Rows())
		fresh.Head(r.out, previewRows)
		fresh.Info(r.out)
		return nil
	})
	if err != nil {
		return err
	}

	var XNew *mat.Dense
	err = r.stage(ctx, StageEncodeNew, func() error {
		var err error
		XNew, err = trained.Features(fresh)
		return err
	})
	if err != nil {
		return err
	}

	return r.stage(ctx, StageInfer, func() error {
		preds, err := trained.PredictLabels(XNew)
		if err != nil {
			return err
		}
		res.Predictions = preds
		r.rec.SetPredictions(len(preds))
		fmt.Fprintf(r.out, "Predictions for new customers: %v\n", preds)
		return nil
	})
}

// stage runs fn as one named, timed pipeline stage.
func (r *runner) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "before stage %s", name)
	}

	timer := r.rec.StartStage(name)
	err := fn()
	d := timer.Stop(err)
	if err != nil {
		return errors.Wrapf(err, "stage %s", name)
	}

	r.logger.Debug("Stage completed", log.StageKey, name, log.DurationMsKey, d.Milliseconds())
	return nil
}

func (r *runner) train(t *Trained, split *model_selection.Split) error {
	cfg := r.cfg
	yTrain := split.YTrainMatrix()

	t.Forest = ensemble.NewRandomForestClassifier(
		ensemble.WithNEstimators(cfg.Forest.NEstimators),
		ensemble.WithForestMaxDepth(cfg.Forest.MaxDepth),
		ensemble.WithForestMinSamplesSplit(cfg.Forest.MinSamplesSplit),
		ensemble.WithForestMinSamplesLeaf(cfg.Forest.MinSamplesLeaf),
		ensemble.WithForestRandomState(cfg.Seed),
		ensemble.WithNJobs(cfg.Forest.NJobs),
	)
	if err := t.Forest.Fit(split.XTrain, yTrain); err != nil {
		return err
	}
	r.logger.Info("Model trained",
		log.ModelNameKey, ForestName,
		log.OperationKey, log.OperationFit,
		log.HyperParamsKey, t.Forest.GetParams(),
	)

	t.KNN = neighbors.NewKNeighborsClassifier(
		neighbors.WithNNeighbors(cfg.Neighbors.K),
		neighbors.WithP(cfg.Neighbors.P),
	)
	var XTrain mat.Matrix = split.XTrain
	if cfg.Neighbors.Standardize {
		t.Scaler = preprocessing.NewStandardScalerDefault()
		scaled, err := t.Scaler.FitTransform(split.XTrain)
		if err != nil {
			return err
		}
		XTrain = scaled
	}
	if err := t.KNN.Fit(XTrain, yTrain); err != nil {
		return err
	}
	r.logger.Info("Model trained",
		log.ModelNameKey, KNNName,
		log.OperationKey, log.OperationFit,
		log.HyperParamsKey, t.KNN.GetParams(),
	)
	return nil
}

func (r *runner) evaluate(t *Trained, split *model_selection.Split, res *Result) error {
	yTest := split.YTestMatrix()

	var XTestKNN mat.Matrix = split.XTest
	if t.Scaler != nil {
		scaled, err := t.Scaler.Transform(split.XTest)
		if err != nil {
			return err
		}
		XTestKNN = scaled
	}

	models := []struct {
		name   string
		metric string
		clf    model.Classifier
		X      mat.Matrix
	}{
		{ForestName, "random_forest", t.Forest, split.XTest},
		{KNNName, "knn", t.KNN, XTestKNN},
	}
	for _, m := range models {
		preds, err := m.clf.Predict(m.X)
		if err != nil {
			return errors.Wrapf(err, "predict %s", m.name)
		}
		acc, err := metrics.AccuracyMatrix(yTest, preds)
		if err != nil {
			return err
		}
		res.Accuracy[m.name] = acc
		r.rec.SetAccuracy(m.metric, acc)
		fmt.Fprintf(r.out, "Accuracy - %s: %v\n", m.name, acc)

		r.logger.Info("Model evaluated",
			log.ModelNameKey, m.name,
			log.OperationKey, log.OperationScore,
			log.AccuracyKey, acc,
		)
		if r.logger.Enabled(context.Background(), log.LevelDebug) {
			r.logConfusion(t, m.name, split.YTest, preds)
		}
	}

	imp := t.Forest.GetFeatureImportances()
	importances := make([]report.Importance, len(imp))
	for i, v := range imp {
		importances[i] = report.Importance{Feature: t.FeatureNames[i], Score: v * 100}
	}
	res.Importances = report.SortImportances(importances)
	return nil
}

func (r *runner) logConfusion(t *Trained, name string, yTest []float64, preds mat.Matrix) {
	truth, err := t.Target.InverseTransform(yTest)
	if err != nil {
		return
	}
	predicted, err := t.Target.InverseTransform(mat.Col(nil, 0, preds))
	if err != nil {
		return
	}
	cm, err := metrics.ConfusionMatrix(truth, predicted)
	if err != nil {
		return
	}
	r.logger.Debug("Confusion matrix",
		log.ModelNameKey, name,
		"labels", cm.Labels,
		"counts", cm.Counts,
	)
}

// Features turns a new-customer table into the feature matrix the models
// were trained on: the identifier and target columns are dropped when
// present, every text column is encoded with a fresh encoder, and the
// training feature columns are selected in training order. Extra columns are
// ignored; a missing feature column is a SchemaError.
//
// The fresh encoders are not the training ones, so a category may receive a
// different code than it had in training and an unseen category simply gets
// the next free code.
func (t *Trained) Features(tbl *dataset.Table) (*mat.Dense, error) {
	var drop []string
	for _, name := range []string{t.IDColumn, t.TargetColumn} {
		if name != "" && tbl.Has(name) {
			drop = append(drop, name)
		}
	}
	tbl, err := tbl.Drop(drop...)
	if err != nil {
		return nil, err
	}

	encoded, _, err := preprocessing.EncodeCategorical(tbl)
	if err != nil {
		return nil, err
	}
	selected, err := encoded.Select(t.FeatureNames...)
	if err != nil {
		return nil, err
	}
	X, _, err := selected.Features()
	return X, err
}

// PredictLabels scores X with the forest and decodes the class codes.
func (t *Trained) PredictLabels(X mat.Matrix) ([]string, error) {
	preds, err := t.Forest.Predict(X)
	if err != nil {
		return nil, err
	}
	return t.Target.InverseTransform(mat.Col(nil, 0, preds))
}
