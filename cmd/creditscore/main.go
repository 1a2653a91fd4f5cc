// Command creditscore trains the credit-score models on a labeled customer
// file, reports their accuracy and scores a file of new customers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/YuminosukeSato/creditscore/config"
	"github.com/YuminosukeSato/creditscore/pipeline"
	"github.com/YuminosukeSato/creditscore/pkg/log"
)

type runFunc func(ctx context.Context, cfg config.Config) error

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(runPipeline).ExecuteContext(ctx); err != nil {
		log.GetLoggerWithName("main").Error("Run failed", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(run runFunc) *cobra.Command {
	var configPath string
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:           "creditscore",
		Short:         "Train credit-score classifiers and score new customers",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			if err := applyFlags(cmd.Flags(), &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			setupLogging(cfg, os.Stderr)
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.String("train", defaults.TrainPath, "labeled customers CSV")
	f.String("new", defaults.NewDataPath, "new customers CSV")
	f.Int64("seed", defaults.Seed, "split and forest seed")
	f.Float64("test-size", defaults.TestFraction, "held-out fraction")
	f.String("report-dir", defaults.ReportDir, "chart output directory (empty: no charts)")
	f.String("metrics-file", defaults.MetricsFile, "Prometheus textfile to write (empty: none)")
	f.String("log-level", defaults.LogLevel, "debug, info, warn or error")
	f.String("log-format", defaults.LogFormat, "auto, console or json")

	return cmd
}

// applyFlags copies every flag set on the command line over cfg. Flags left
// at their default do not override the config file.
func applyFlags(f *pflag.FlagSet, cfg *config.Config) error {
	var err error
	f.Visit(func(fl *pflag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "train":
			cfg.TrainPath, err = f.GetString(fl.Name)
		case "new":
			cfg.NewDataPath, err = f.GetString(fl.Name)
		case "seed":
			cfg.Seed, err = f.GetInt64(fl.Name)
		case "test-size":
			cfg.TestFraction, err = f.GetFloat64(fl.Name)
		case "report-dir":
			cfg.ReportDir, err = f.GetString(fl.Name)
		case "metrics-file":
			cfg.MetricsFile, err = f.GetString(fl.Name)
		case "log-level":
			cfg.LogLevel, err = f.GetString(fl.Name)
		case "log-format":
			cfg.LogFormat, err = f.GetString(fl.Name)
		}
	})
	return err
}

func setupLogging(cfg config.Config, w *os.File) {
	level, _ := log.ParseLevel(cfg.LogLevel)

	format := cfg.LogFormat
	if format == "" || format == "auto" {
		format = "json"
		if term.IsTerminal(int(w.Fd())) {
			format = "console"
		}
	}

	if format == "console" {
		log.SetProvider(log.NewConsoleProvider(w, level))
		return
	}
	log.SetProvider(log.NewZerologProvider(w, level))
}

func runPipeline(ctx context.Context, cfg config.Config) error {
	_, err := pipeline.Run(ctx, cfg, pipeline.Options{Out: os.Stdout})
	return err
}
