package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"github.com/YuminosukeSato/creditscore/pkg/log"
)

func TestLabelDistribution(t *testing.T) {
	c := LabelDistribution([]string{"Standard", "Good", "Poor", "Standard", "Poor", "Standard", "Good"})

	assert.Equal(t, []string{"Standard", "Good", "Poor"}, c.Labels)
	assert.Equal(t, []float64{3, 2, 2}, c.Values)
	assert.Equal(t, "label_distribution", c.Slug())
}

func TestAccuracyComparison_TwoBarsInOrder(t *testing.T) {
	c := AccuracyComparison([]string{"Random Forest", "KNN"}, []float64{0.71, 0.64})

	require.Len(t, c.Labels, 2)
	assert.Equal(t, "Random Forest", c.Labels[0])
	assert.Equal(t, "KNN", c.Labels[1])
	assert.Equal(t, []float64{0.71, 0.64}, c.Values)
}

func TestFeatureImportance_SortedDescending(t *testing.T) {
	c := FeatureImportance([]Importance{
		{"idade", 20},
		{"salario_anual", 50},
		{"profissao", 10},
		{"mix_credito", 20},
	})

	assert.Equal(t, []string{"salario_anual", "idade", "mix_credito", "profissao"}, c.Labels)
	assert.Equal(t, []float64{50, 20, 20, 10}, c.Values)
}

func TestChartSlug(t *testing.T) {
	assert.Equal(t, "model_accuracy", Chart{Name: "Model Accuracy"}.Slug())
	assert.Equal(t, "chart", Chart{}.Slug())
	assert.Equal(t, "a_b_c", Chart{Name: "a/b.c"}.Slug())
}

func TestPNGRenderer(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	r := NewPNGRenderer(dir)

	c := AccuracyComparison([]string{"Random Forest", "KNN"}, []float64{0.8, 0.6})
	require.NoError(t, r.Render(c))

	info, err := os.Stat(r.Path(c))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	err = r.Render(Chart{Name: "broken", Labels: []string{"a"}})
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr), "expected ValueError, got %v", err)
}

type failingRenderer struct{ calls int }

func (f *failingRenderer) Render(c Chart) error {
	f.calls++
	if c.Name == "model_accuracy" {
		return errors.New("no display")
	}
	return nil
}

func TestRender_LogsAndContinues(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	r := &failingRenderer{}

	failed := Render(r, logger,
		LabelDistribution([]string{"Good"}),
		AccuracyComparison([]string{"Random Forest", "KNN"}, []float64{1, 1}),
		FeatureImportance([]Importance{{"idade", 100}}),
	)

	assert.Equal(t, 1, failed)
	assert.Equal(t, 3, r.calls, "rendering must continue after a failure")
	assert.True(t, logger.ContainsMessage("Chart rendering failed"))
	assert.True(t, logger.ContainsField(log.ChartKey, "model_accuracy"))
	assert.True(t, logger.ContainsField(log.ErrorKey, "no display"))
}

func TestNopRenderer(t *testing.T) {
	assert.NoError(t, NopRenderer{}.Render(Chart{}))
}
