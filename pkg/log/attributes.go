// Package log defines standard attribute keys for pipeline and model logging.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so entries from every stage can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of model.
	// Examples: "RandomForestClassifier", "KNeighborsClassifier", "LabelEncoder"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"
)

// Run Context
const (
	// RunIDKey carries the unique identifier of one pipeline execution.
	RunIDKey = "run.id"

	// StageKey names the pipeline stage ("load", "encode", "split", ...).
	StageKey = "run.stage"

	// PathKey is an input or output file path.
	PathKey = "io.path"

	// ColumnKey names a table column.
	ColumnKey = "data.column"

	// ChartKey names a rendered report chart.
	ChartKey = "report.chart"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of distinct target classes.
	ClassesKey = "data.classes"

	// CategoriesKey indicates the number of distinct values of a text column.
	CategoriesKey = "data.categories"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy, in [0.0, 1.0].
	AccuracyKey = "metrics.accuracy"
)

// Prediction and Output Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Error and Warning Context
const (
	// ErrorKey holds the error attached to an entry.
	ErrorKey = "error"

	// ErrorDetailKey holds the structured fields of typed errors
	// (SchemaError, DimensionError, ...).
	ErrorDetailKey = "error.detail"

	// StacktraceKey contains stack trace information for debugging.
	// Populated automatically by Error when the error carries one.
	StacktraceKey = "error.stacktrace"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TestFractionKey records the held-out fraction of the split.
	TestFractionKey = "config.test_fraction"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
	PhaseReporting     = "reporting"
)
