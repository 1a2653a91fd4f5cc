package pipeline

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/creditscore/config"
	"github.com/YuminosukeSato/creditscore/dataset"
	"github.com/YuminosukeSato/creditscore/model_selection"
	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"github.com/YuminosukeSato/creditscore/pkg/log"
	"github.com/YuminosukeSato/creditscore/pkg/telemetry"
	"github.com/YuminosukeSato/creditscore/preprocessing"
	"github.com/YuminosukeSato/creditscore/report"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TrainPath = filepath.Join("testdata", "clientes.csv")
	cfg.NewDataPath = filepath.Join("testdata", "novos_clientes.csv")
	cfg.Forest.NEstimators = 20
	return cfg
}

type failingRenderer struct{}

func (failingRenderer) Render(report.Chart) error {
	return errors.New("no display")
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.ReportDir = filepath.Join(t.TempDir(), "charts")
	cfg.MetricsFile = filepath.Join(t.TempDir(), "creditscore.prom")

	var out bytes.Buffer
	logger, _ := log.NewTestLogger(log.LevelDebug)
	rec := telemetry.NewRecorder()

	res, err := Run(context.Background(), cfg, Options{Out: &out, Logger: logger, Recorder: rec})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 21, res.TrainRows)
	assert.Equal(t, 9, res.TestRows)
	assert.Equal(t,
		[]string{"idade", "profissao", "salario_anual", "num_cartoes", "dias_atraso", "mix_credito"},
		res.FeatureNames)

	for _, name := range []string{ForestName, KNNName} {
		acc, ok := res.Accuracy[name]
		require.True(t, ok, name)
		assert.GreaterOrEqual(t, acc, 0.0)
		assert.LessOrEqual(t, acc, 1.0)
	}

	require.Len(t, res.Predictions, 3)
	for _, p := range res.Predictions {
		assert.Contains(t, []string{"Good", "Poor", "Standard"}, p)
	}

	console := out.String()
	assert.Contains(t, console, "30 entries, 8 columns")
	assert.Contains(t, console, "3 entries, 6 columns")
	assert.Contains(t, console, "Accuracy - Random Forest: ")
	assert.Contains(t, console, "Accuracy - KNN: ")
	assert.Contains(t, console, "Predictions for new customers: [")

	require.Len(t, res.Charts, 3)
	assert.Equal(t, 0, res.ChartFailures)
	for _, c := range res.Charts {
		_, err := os.Stat(filepath.Join(cfg.ReportDir, c.Slug()+".png"))
		assert.NoError(t, err, c.Name)
	}

	metrics, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `creditscore_model_accuracy{model="random_forest"}`)
	assert.Contains(t, string(metrics), `creditscore_new_customer_predictions 3`)

	assert.True(t, logger.ContainsField(log.RunIDKey, res.RunID))
	assert.True(t, logger.ContainsMessage("Confusion matrix"))
	assert.False(t, logger.ContainsMessage("charts skipped"))
}

func TestRun_Charts(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)

	res, err := Run(context.Background(), testConfig(), Options{Logger: logger})
	require.NoError(t, err)

	// No report directory: charts are built but not drawn.
	assert.True(t, logger.ContainsMessage("Report directory unset, charts skipped"))
	assert.Equal(t, 0, res.ChartFailures)

	dist := res.Charts[0]
	assert.Equal(t, "label_distribution", dist.Name)
	assert.ElementsMatch(t, []string{"Good", "Poor", "Standard"}, dist.Labels)
	assert.Equal(t, []float64{10, 10, 10}, dist.Values)

	// Forest first, then neighbors, whatever the scores.
	acc := res.Charts[1]
	assert.Equal(t, []string{ForestName, KNNName}, acc.Labels)
	assert.Equal(t, []float64{res.Accuracy[ForestName], res.Accuracy[KNNName]}, acc.Values)

	imp := res.Charts[2]
	assert.Len(t, imp.Labels, len(res.FeatureNames))
	sum := 0.0
	for i, v := range imp.Values {
		assert.GreaterOrEqual(t, v, 0.0)
		if i > 0 {
			assert.LessOrEqual(t, v, imp.Values[i-1])
		}
		sum += v
	}
	assert.InDelta(t, 100.0, sum, 1e-6)
}

func TestRun_Deterministic(t *testing.T) {
	cfg := testConfig()

	first, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)
	cfg.Forest.NJobs = 1
	second, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Accuracy, second.Accuracy)
	assert.Equal(t, first.Importances, second.Importances)
	assert.Equal(t, first.Predictions, second.Predictions)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_ReportFailuresAreSkipped(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)

	res, err := Run(context.Background(), testConfig(), Options{Logger: logger, Renderer: failingRenderer{}})
	require.NoError(t, err)

	assert.Equal(t, 3, res.ChartFailures)
	assert.Len(t, res.Predictions, 3)
	assert.True(t, logger.ContainsMessage("Chart rendering failed, skipping"))
	assert.True(t, logger.ContainsField(log.ChartKey, "feature_importance"))
}

func TestRun_Errors(t *testing.T) {
	t.Run("missing training file", func(t *testing.T) {
		cfg := testConfig()
		cfg.TrainPath = filepath.Join("testdata", "absent.csv")

		_, err := Run(context.Background(), cfg, Options{})
		var parseErr *errors.ParseError
		assert.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)
	})

	t.Run("missing target column", func(t *testing.T) {
		cfg := testConfig()
		cfg.TargetColumn = "score"

		_, err := Run(context.Background(), cfg, Options{})
		var schemaErr *errors.SchemaError
		require.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
		assert.Equal(t, "score", schemaErr.Column)
	})

	t.Run("new customers lack a feature column", func(t *testing.T) {
		cfg := testConfig()
		cfg.NewDataPath = filepath.Join("testdata", "bad_new.csv")

		_, err := Run(context.Background(), cfg, Options{})
		var schemaErr *errors.SchemaError
		require.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
		assert.Equal(t, "mix_credito", schemaErr.Column)
	})

	t.Run("blank numeric cell in training file", func(t *testing.T) {
		cfg := testConfig()
		cfg.TrainPath = filepath.Join("testdata", "clientes_blank.csv")

		_, err := Run(context.Background(), cfg, Options{})
		var schemaErr *errors.SchemaError
		require.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
		assert.Equal(t, "idade", schemaErr.Column)
	})

	t.Run("blank numeric cell in new customers", func(t *testing.T) {
		cfg := testConfig()
		cfg.NewDataPath = filepath.Join("testdata", "novos_blank.csv")

		_, err := Run(context.Background(), cfg, Options{})
		var schemaErr *errors.SchemaError
		require.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
		assert.Equal(t, "salario_anual", schemaErr.Column)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.TestFraction = 0

		_, err := Run(context.Background(), cfg, Options{})
		var valErr *errors.ValidationError
		assert.True(t, errors.As(err, &valErr), "expected ValidationError, got %v", err)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Run(ctx, testConfig(), Options{})
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	})
}

// 10 rows, two numeric features and one {A, B} column, binary target.
func TestScenario_EncodeAndSplit(t *testing.T) {
	tbl, err := dataset.ReadCSV(filepath.Join("testdata", "scenario_a.csv"))
	require.NoError(t, err)
	require.Equal(t, 10, tbl.Rows())

	encoded, _, err := preprocessing.EncodeCategorical(tbl, "score_credito")
	require.NoError(t, err)

	seg, err := encoded.Column("segmento")
	require.NoError(t, err)
	require.Equal(t, dataset.Numeric, seg.Kind)
	for _, v := range seg.Floats {
		assert.Contains(t, []float64{0, 1}, v)
	}

	target, err := encoded.Column("score_credito")
	require.NoError(t, err)
	assert.Equal(t, dataset.Text, target.Kind)

	X, names, err := encoded.Features("id_cliente", "score_credito")
	require.NoError(t, err)
	assert.Equal(t, []string{"renda", "idade", "segmento"}, names)

	labels, err := encoded.Labels("score_credito")
	require.NoError(t, err)
	y, err := preprocessing.NewLabelEncoder().FitTransform(labels)
	require.NoError(t, err)

	split, err := model_selection.TrainTestSplit(X, y, 0.3, 1)
	require.NoError(t, err)
	assert.Len(t, split.YTest, 3)
	assert.Len(t, split.YTrain, 7)
}

// New-customer tables are encoded with fresh encoders: codes follow the
// categories present in the new table, not the training mapping.
func TestTrained_FeaturesRefitEncoders(t *testing.T) {
	training, err := dataset.New(
		dataset.NewNumericColumn("renda", []float64{1500, 3000, 900}),
		dataset.NewTextColumn("segmento", []string{"A", "B", "A"}),
	)
	require.NoError(t, err)
	encoded, _, err := preprocessing.EncodeCategorical(training)
	require.NoError(t, err)
	seg, err := encoded.Column("segmento")
	require.NoError(t, err)
	require.Equal(t, []float64{0, 1, 0}, seg.Floats, "training codes A=0 B=1")

	trained := &Trained{
		FeatureNames: []string{"renda", "segmento"},
		IDColumn:     "id_cliente",
		TargetColumn: "score_credito",
	}

	tests := []struct {
		name     string
		segments []string
		want     []float64
	}{
		// "B" alone becomes 0, while training coded it 1
		{"seen category shifts", []string{"B", "B"}, []float64{0, 0}},
		// "C" was never seen and takes the code training gave "B"
		{"unseen category collides", []string{"A", "C"}, []float64{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fresh, err := dataset.New(
				dataset.NewNumericColumn("id_cliente", []float64{11, 12}),
				dataset.NewTextColumn("segmento", tt.segments),
				dataset.NewNumericColumn("renda", []float64{1000, 2000}),
				dataset.NewTextColumn("canal", []string{"web", "loja"}),
			)
			require.NoError(t, err)

			X, err := trained.Features(fresh)
			require.NoError(t, err)

			r, c := X.Dims()
			assert.Equal(t, 2, r)
			assert.Equal(t, 2, c)
			// Training column order, extra column ignored.
			assert.Equal(t, []float64{1000, 2000}, mat.Col(nil, 0, X))
			assert.Equal(t, tt.want, mat.Col(nil, 1, X))
		})
	}
}

func TestRun_StandardizedNeighbors(t *testing.T) {
	cfg := testConfig()
	cfg.Neighbors.Standardize = true

	res, err := Run(context.Background(), cfg, Options{})
	require.NoError(t, err)

	acc := res.Accuracy[KNNName]
	assert.False(t, math.IsNaN(acc))
	assert.GreaterOrEqual(t, acc, 0.0)
}
