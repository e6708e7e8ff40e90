// Command coupling trains the scalar-coupling models on an engineered
// feature table and writes a submission file.
//
//	coupling -config config.yaml -mode subtarget|target|two-stage [-train train.csv -test test.csv] [-plot history.png]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/YuminosukeSato/coupling/config"
	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/pipeline"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
	"github.com/YuminosukeSato/coupling/tuning"
)

const (
	modeSubTarget = "subtarget"
	modeTarget    = "target"
	modeTwoStage  = "two-stage"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults are used when empty)")
	mode := flag.String("mode", modeSubTarget, "subtarget, target or two-stage")
	trainPath := flag.String("train", "", "engineered training table (overrides paths.train_path)")
	testPath := flag.String("test", "", "engineered test table (overrides paths.test_path)")
	plotPath := flag.String("plot", "", "write the tuning history of the target to this PNG")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	closer, err := log.SetupLogger(cfg.LogOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()
	logger := log.GetLoggerWithName("main")

	if *trainPath != "" {
		cfg.Paths.TrainPath = *trainPath
	}
	if *testPath != "" {
		cfg.Paths.TestPath = *testPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode, *plotPath, logger); err != nil {
		logger.Error("Run failed", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func run(ctx context.Context, cfg *config.Config, mode, plotPath string, logger log.Logger) error {
	start := time.Now()
	opts := frame.CSVOptions{
		IDColumn:       cfg.IDColumn,
		FeatureColumns: cfg.FeatureNames,
		TargetColumns:  append(append([]string(nil), config.SubTargets...), config.TargetScalarCoupling),
		GroupColumn:    cfg.GroupColumn,
	}
	Xtrain, yTrain, err := frame.ReadCSVFile(cfg.Paths.TrainPath, opts)
	if err != nil {
		return err
	}
	Xtest, _, err := frame.ReadCSVFile(cfg.Paths.TestPath, opts)
	if err != nil {
		return err
	}
	logger.Info("Data loaded",
		log.SamplesKey, Xtrain.Rows(),
		log.FeaturesKey, Xtrain.Cols(),
		"test_samples", Xtest.Rows())

	var pred frame.PredictionVector
	switch mode {
	case modeSubTarget:
		stage, err := pipeline.NewSubTargetPrediction(cfg, pipeline.Deps{})
		if err != nil {
			return err
		}
		if pred, err = stage.Run(ctx, Xtrain, yTrain, Xtest); err != nil {
			return err
		}
		if plotPath != "" {
			if err := plotStudy(ctx, stage, plotPath, logger); err != nil {
				return err
			}
		}
	case modeTarget:
		pred, err = pipeline.NewTargetPrediction(cfg, nil).Run(ctx, Xtrain, yTrain, Xtest)
		if err != nil {
			return err
		}
	case modeTwoStage:
		stage, err := pipeline.NewTwoStage(cfg, pipeline.Deps{})
		if err != nil {
			return err
		}
		if pred, err = stage.Run(ctx, Xtrain, yTrain, Xtest); err != nil {
			return err
		}
	default:
		return errors.NewConfigurationError("mode", "must be subtarget, target or two-stage", mode)
	}

	if err := writeSubmission(cfg.Paths.SubmissionPath, cfg.IDColumn, pred); err != nil {
		return err
	}
	logger.Info("Submission written",
		log.TargetKey, pred.Name,
		log.ArtifactKey, cfg.Paths.SubmissionPath,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

func plotStudy(ctx context.Context, stage *pipeline.SubTargetPrediction, path string, logger log.Logger) error {
	study, ok, err := stage.Study(ctx)
	if err != nil {
		return err
	}
	if !ok || len(study.Trials) == 0 {
		logger.Warn("No trials to plot", log.ArtifactKey, path)
		return nil
	}
	return tuning.PlotHistory(study, path)
}

func writeSubmission(path, idColumn string, pred frame.PredictionVector) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewStorageError("mkdir", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("create", path, err)
	}
	w := bufio.NewWriter(f)
	if err := frame.WritePredictions(w, idColumn, pred); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.NewStorageError("write", path, err)
	}
	return f.Close()
}
