package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creditscore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, 0.3, cfg.TestFraction)
	assert.Equal(t, "clientes.csv", cfg.TrainPath)
	assert.Equal(t, "novos_clientes.csv", cfg.NewDataPath)
	assert.Equal(t, "id_cliente", cfg.IDColumn)
	assert.Equal(t, "score_credito", cfg.TargetColumn)
	assert.Equal(t, 100, cfg.Forest.NEstimators)
	assert.Equal(t, 5, cfg.Neighbors.K)
	assert.False(t, cfg.Neighbors.Standardize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
seed: 7
test_fraction: 0.25
report_dir: out/charts
forest:
  n_estimators: 50
neighbors:
  standardize: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 0.25, cfg.TestFraction)
	assert.Equal(t, "out/charts", cfg.ReportDir)
	assert.Equal(t, 50, cfg.Forest.NEstimators)
	assert.True(t, cfg.Neighbors.Standardize)

	// Untouched keys keep their defaults
	assert.Equal(t, "clientes.csv", cfg.TrainPath)
	assert.Equal(t, 2, cfg.Forest.MinSamplesSplit)
	assert.Equal(t, 5, cfg.Neighbors.K)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "seed: [1, 2"))
	var parseErr *errors.ParseError
	assert.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)

	_, err = Load(writeConfig(t, "sead: 3\n"))
	assert.True(t, errors.As(err, &parseErr), "unknown keys must be rejected, got %v", err)

	_, err = Load(writeConfig(t, "seed: -3\n"))
	var seedErr *errors.ValidationError
	require.True(t, errors.As(err, &seedErr), "expected ValidationError, got %v", err)
	assert.Equal(t, "seed", seedErr.ParamName)

	_, err = Load(writeConfig(t, "test_fraction: 1.5\n"))
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr), "expected ValidationError, got %v", err)
	assert.Equal(t, "test_fraction", valErr.ParamName)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"negative seed", func(c *Config) { c.Seed = -3 }, "seed"},
		{"zero test fraction", func(c *Config) { c.TestFraction = 0 }, "test_fraction"},
		{"empty train path", func(c *Config) { c.TrainPath = "" }, "train_path"},
		{"id equals target", func(c *Config) { c.IDColumn = c.TargetColumn }, "id_column"},
		{"no trees", func(c *Config) { c.Forest.NEstimators = 0 }, "forest.n_estimators"},
		{"k zero", func(c *Config) { c.Neighbors.K = 0 }, "neighbors.k"},
		{"bad level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var valErr *errors.ValidationError
			require.True(t, errors.As(err, &valErr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.param, valErr.ParamName)
		})
	}
}
