// Package config holds the run configuration of the credit-score pipeline.
package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
	"github.com/YuminosukeSato/creditscore/pkg/log"
)

// Config represents one pipeline run
type Config struct {
	Seed         int64   `yaml:"seed"`          // Split and forest seed
	TestFraction float64 `yaml:"test_fraction"` // Held-out fraction in (0, 1)
	TrainPath    string  `yaml:"train_path"`    // Labeled customers
	NewDataPath  string  `yaml:"new_data_path"` // Customers to score

	IDColumn     string `yaml:"id_column"`
	TargetColumn string `yaml:"target_column"`

	ReportDir   string `yaml:"report_dir"`   // Chart output directory; empty disables charts
	MetricsFile string `yaml:"metrics_file"` // Prometheus textfile; empty disables metrics
	LogLevel    string `yaml:"log_level"`    // debug, info, warn, error
	LogFormat   string `yaml:"log_format"`   // auto, console, json

	Forest    ForestConfig    `yaml:"forest"`
	Neighbors NeighborsConfig `yaml:"neighbors"`
}

// ForestConfig represents random forest hyperparameters
type ForestConfig struct {
	NEstimators     int `yaml:"n_estimators"`
	MaxDepth        int `yaml:"max_depth"` // 0 = unlimited
	MinSamplesSplit int `yaml:"min_samples_split"`
	MinSamplesLeaf  int `yaml:"min_samples_leaf"`
	NJobs           int `yaml:"n_jobs"` // -1 = all cores
}

// NeighborsConfig represents k-nearest-neighbors hyperparameters
type NeighborsConfig struct {
	K           int     `yaml:"k"`
	P           float64 `yaml:"p"`           // Minkowski power, 2 = Euclidean
	Standardize bool    `yaml:"standardize"` // Scale features before KNN
}

// Default returns the configuration of the reference run: seed 1, 30% test
// rows, clientes.csv and novos_clientes.csv in the working directory.
func Default() Config {
	return Config{
		Seed:         1,
		TestFraction: 0.3,
		TrainPath:    "clientes.csv",
		NewDataPath:  "novos_clientes.csv",
		IDColumn:     "id_cliente",
		TargetColumn: "score_credito",
		LogLevel:     "info",
		LogFormat:    "auto",
		Forest: ForestConfig{
			NEstimators:     100,
			MaxDepth:        0,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			NJobs:           -1,
		},
		Neighbors: NeighborsConfig{
			K: 5,
			P: 2,
		},
	}
}

// Load reads a YAML file on top of Default. Keys absent from the file keep
// their default; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.NewParseError(path, 0, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks every field and returns the first problem found.
func (c Config) Validate() error {
	switch {
	case c.Seed < 0:
		return errors.NewValidationError("seed", "must be >= 0", c.Seed)
	case c.TestFraction <= 0 || c.TestFraction >= 1:
		return errors.NewValidationError("test_fraction", "must be in (0, 1)", c.TestFraction)
	case c.TrainPath == "":
		return errors.NewValidationError("train_path", "must not be empty", c.TrainPath)
	case c.NewDataPath == "":
		return errors.NewValidationError("new_data_path", "must not be empty", c.NewDataPath)
	case c.TargetColumn == "":
		return errors.NewValidationError("target_column", "must not be empty", c.TargetColumn)
	case c.IDColumn == c.TargetColumn:
		return errors.NewValidationError("id_column", "must differ from target_column", c.IDColumn)
	case c.Forest.NEstimators < 1:
		return errors.NewValidationError("forest.n_estimators", "must be >= 1", c.Forest.NEstimators)
	case c.Forest.MaxDepth < 0:
		return errors.NewValidationError("forest.max_depth", "must be >= 0", c.Forest.MaxDepth)
	case c.Forest.MinSamplesSplit < 2:
		return errors.NewValidationError("forest.min_samples_split", "must be >= 2", c.Forest.MinSamplesSplit)
	case c.Forest.MinSamplesLeaf < 1:
		return errors.NewValidationError("forest.min_samples_leaf", "must be >= 1", c.Forest.MinSamplesLeaf)
	case c.Neighbors.K < 1:
		return errors.NewValidationError("neighbors.k", "must be >= 1", c.Neighbors.K)
	case c.Neighbors.P < 1:
		return errors.NewValidationError("neighbors.p", "must be >= 1", c.Neighbors.P)
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return errors.NewValidationError("log_level", "must be debug, info, warn or error", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "auto", "console", "json":
	default:
		return errors.NewValidationError("log_format", "must be auto, console or json", c.LogFormat)
	}
	return nil
}
