// Command mlpipeline trains a random forest regressor on a dataset, prints
// its evaluation and optionally profiles the run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"dailyanalytics/internal/config"
	"dailyanalytics/internal/dataset"
	"dailyanalytics/internal/infrastructure"
	"dailyanalytics/internal/ml"
	"dailyanalytics/internal/perf"
	"dailyanalytics/internal/validation"
)

type options struct {
	DataPath    string
	ModelPath   string
	ProfilePath string
	Profile     bool
	TopN        int
	Pipeline    ml.PipelineConfig
}

type result struct {
	Rows        int             `json:"rows"`
	Performance *ml.Performance `json:"performance"`
	ModelPath   string          `json:"model_path,omitempty"`
	Profile     *perf.Report    `json:"profile,omitempty"`
}

func main() {
	defaults := ml.DefaultPipelineConfig()

	dataPath := flag.String("data", "", "training dataset (.csv or .xlsx); defaults to the configured data file")
	target := flag.String("target", defaults.TargetColumn, "target column")
	estimators := flag.Int("estimators", defaults.NEstimators, "number of trees")
	seed := flag.Int64("seed", defaults.RandomState, "random seed for the split and the forest")
	testSize := flag.Float64("test-size", defaults.TestSize, "fraction of rows held out for evaluation")
	modelPath := flag.String("model", "", "where to save the trained model (.gob); empty skips saving")
	profilePath := flag.String("profile", "", "write the CPU profile of the run to this file and print its hot spots")
	topN := flag.Int("top", perf.DefaultTopN, "functions to list in the profile summary")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	opts := options{
		DataPath:    *dataPath,
		ModelPath:   *modelPath,
		ProfilePath: *profilePath,
		Profile:     *profilePath != "",
		TopN:        *topN,
		Pipeline: ml.PipelineConfig{
			NEstimators:  *estimators,
			RandomState:  *seed,
			TestSize:     *testSize,
			TargetColumn: *target,
			Workers:      cfg.Pipeline.Workers,
		},
	}
	if opts.DataPath == "" {
		paths, err := cfg.Paths.Resolve()
		if err != nil {
			logger.Error("Failed to resolve paths", slog.String("error", err.Error()))
			os.Exit(1)
		}
		opts.DataPath = paths.DataFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout, logger); err != nil {
		logger.Error("Training failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	if err := validation.NewFileValidator(logger).ValidateDatasetFile(opts.DataPath); err != nil {
		return err
	}

	d, err := dataset.Load(opts.DataPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	pipeline := ml.NewPipeline(opts.Pipeline, logger, nil)
	res := &result{Rows: d.NumRows()}

	train := func() error {
		performance, err := pipeline.Run(ctx, d)
		if err != nil {
			return err
		}
		res.Performance = performance
		return nil
	}

	if opts.Profile {
		var raw io.Writer
		if opts.ProfilePath != "" {
			if err := os.MkdirAll(filepath.Dir(opts.ProfilePath), 0755); err != nil {
				return fmt.Errorf("create profile directory: %w", err)
			}
			f, err := os.Create(opts.ProfilePath)
			if err != nil {
				return fmt.Errorf("create profile: %w", err)
			}
			defer f.Close()
			raw = f
		}
		report, err := perf.Capture(train, opts.TopN, raw)
		if err != nil {
			return err
		}
		res.Profile = report
	} else if err := train(); err != nil {
		return err
	}

	if opts.ModelPath != "" {
		if err := pipeline.SaveModel(opts.ModelPath); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
		res.ModelPath = opts.ModelPath
	}

	logger.InfoContext(ctx, "Model evaluated",
		slog.Int("rows", res.Rows),
		slog.Float64("mse", res.Performance.MSE),
		slog.Float64("r2_score", res.Performance.R2Score))

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Profile != nil {
		fmt.Fprint(stdout, res.Profile.String())
	}
	return nil
}
