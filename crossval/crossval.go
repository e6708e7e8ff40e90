// Package crossval trains one fresh model per k-fold partition and averages
// the fold scores and test-set predictions.
package crossval

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/core/model"
	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/metrics"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
	"github.com/YuminosukeSato/coupling/sklearn/lightgbm"
	"github.com/YuminosukeSato/coupling/sklearn/model_selection"
)

// ModelFactory builds a fresh, unfitted regressor from a parameter set.
type ModelFactory func(set params.Set, earlyStoppingRounds int) (model.EvalSetFitter, error)

// LGBMFactory builds LightGBM regressors.
func LGBMFactory(set params.Set, earlyStoppingRounds int) (model.EvalSetFitter, error) {
	reg, err := lightgbm.NewLGBMRegressorFromParams(set)
	if err != nil {
		return nil, err
	}
	return reg.WithEarlyStopping(earlyStoppingRounds), nil
}

// Config controls the fold layout and early stopping.
type Config struct {
	NSplits             int
	Seed                uint64
	EarlyStoppingRounds int
}

// Result holds per-fold outputs in fold order.
type Result struct {
	Scores          []float64
	TestPredictions []frame.PredictionVector
	BestIterations  []int
}

// CrossValidator runs k-fold training sequentially.
type CrossValidator struct {
	cfg     Config
	factory ModelFactory
	scorer  metrics.Scorer
	logger  log.Logger
}

// NewCrossValidator returns a ConfigurationError when NSplits < 2.
func NewCrossValidator(cfg Config, factory ModelFactory, scorer metrics.Scorer) (*CrossValidator, error) {
	if cfg.NSplits < 2 {
		return nil, errors.NewConfigurationError("n_splits", "must be >= 2", cfg.NSplits)
	}
	if factory == nil {
		factory = LGBMFactory
	}
	if scorer == nil {
		scorer = metrics.CouplingScorer()
	}
	return &CrossValidator{
		cfg:     cfg,
		factory: factory,
		scorer:  scorer,
		logger:  log.GetLoggerWithName("crossval"),
	}, nil
}

// Run fits one model per fold on the fold's training rows, stops early on
// its validation rows, scores the validation predictions and predicts the
// whole test set. Inputs are not modified.
func (cv *CrossValidator) Run(ctx context.Context, X *frame.FeatureMatrix, y *frame.TargetVector,
	target string, Xtest *frame.FeatureMatrix, set params.Set) (*Result, error) {
	if X.Rows() != y.Len() {
		return nil, errors.NewShapeMismatchError("CrossValidator.Run", X.Rows(), y.Len(), "target rows")
	}
	if Xtest != nil {
		if err := frame.CheckSchema(X, Xtest); err != nil {
			return nil, err
		}
	}
	if !y.Has(target) {
		return nil, errors.NewConfigurationError("target_name", "no such target column", target)
	}

	kf, err := model_selection.NewKFold(cv.cfg.NSplits, true, cv.cfg.Seed)
	if err != nil {
		return nil, err
	}
	folds, err := kf.Split(X.Rows())
	if err != nil {
		return nil, err
	}

	logger := cv.logger.With(log.TargetKey, target, log.NSplitsKey, cv.cfg.NSplits)
	res := &Result{}
	for k, fold := range folds {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		if len(fold.TrainIndices) == 0 || len(fold.TestIndices) == 0 {
			return nil, errors.NewDataInsufficientError("CrossValidator.Run", "empty fold partition", X.Rows())
		}

		start := time.Now()
		score, pred, bestIter, err := cv.runFold(X, y, target, Xtest, set, fold)
		if err != nil {
			return nil, errors.Wrapf(err, "coupling: fold %d", k)
		}
		res.Scores = append(res.Scores, score)
		res.TestPredictions = append(res.TestPredictions, pred)
		res.BestIterations = append(res.BestIterations, bestIter)

		logger.Info("Fold completed",
			log.FoldKey, k,
			log.ScoreKey, score,
			log.BestIterationKey, bestIter,
			log.DurationMsKey, time.Since(start).Milliseconds())
	}
	return res, nil
}

func (cv *CrossValidator) runFold(X *frame.FeatureMatrix, y *frame.TargetVector, target string,
	Xtest *frame.FeatureMatrix, set params.Set, fold model_selection.Fold) (float64, frame.PredictionVector, int, error) {
	var empty frame.PredictionVector

	ytr, err := y.Take(fold.TrainIndices).ColumnVector(target)
	if err != nil {
		return 0, empty, 0, err
	}
	yvalTV := y.Take(fold.TestIndices)
	yval, err := yvalTV.ColumnVector(target)
	if err != nil {
		return 0, empty, 0, err
	}
	Xtr := X.Take(fold.TrainIndices).Matrix()
	Xval := X.Take(fold.TestIndices).Matrix()

	m, err := cv.factory(set, cv.cfg.EarlyStoppingRounds)
	if err != nil {
		return 0, empty, 0, err
	}
	if err := m.FitWithEvalSet(Xtr, ytr, Xval, yval); err != nil {
		return 0, empty, 0, err
	}

	valPred, err := m.Predict(Xval)
	if err != nil {
		return 0, empty, 0, err
	}
	score, err := cv.scorer.Score(mat.Col(nil, 0, yval), mat.Col(nil, 0, valPred), yvalTV.Groups())
	if err != nil {
		return 0, empty, 0, err
	}

	pred := frame.PredictionVector{Name: target, Values: []float64{}}
	if Xtest != nil && Xtest.Rows() > 0 {
		testPred, err := m.Predict(Xtest.Matrix())
		if err != nil {
			return 0, empty, 0, err
		}
		if pred, err = frame.NewPredictionVector(target, Xtest.Index(), testPred); err != nil {
			return 0, empty, 0, err
		}
	}
	return score, pred, m.BestIteration(), nil
}
