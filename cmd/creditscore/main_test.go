package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/creditscore/config"
	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

func execute(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	var got config.Config
	cmd := newRootCmd(func(_ context.Context, cfg config.Config) error {
		got = cfg
		return nil
	})
	cmd.SetArgs(append(args, "--log-format", "json"))
	err := cmd.ExecuteContext(context.Background())
	return got, err
}

func TestRootCmd_Defaults(t *testing.T) {
	cfg, err := execute(t)
	require.NoError(t, err)

	want := config.Default()
	want.LogFormat = "json"
	assert.Equal(t, want, cfg)
}

func TestRootCmd_FlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creditscore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 7\ntrain_path: file.csv\nreport_dir: charts\n"), 0o600))

	cfg, err := execute(t, "--config", path, "--seed", "42", "--test-size", "0.25")
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 0.25, cfg.TestFraction)
	// Not given on the command line: the file wins over defaults.
	assert.Equal(t, "file.csv", cfg.TrainPath)
	assert.Equal(t, "charts", cfg.ReportDir)
}

func TestRootCmd_InvalidFlag(t *testing.T) {
	_, err := execute(t, "--test-size", "2")
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr), "expected ValidationError, got %v", err)
	assert.Equal(t, "test_fraction", valErr.ParamName)
}

func TestRootCmd_NegativeSeed(t *testing.T) {
	_, err := execute(t, "--seed=-3")
	var valErr *errors.ValidationError
	require.True(t, errors.As(err, &valErr), "expected ValidationError, got %v", err)
	assert.Equal(t, "seed", valErr.ParamName)
}
