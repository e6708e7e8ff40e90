package pipeline

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/crossval"
	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/metrics"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/sklearn/model_selection"
	"github.com/YuminosukeSato/coupling/tuning"
)

// HoldoutObjective scores a parameter set by fitting one model on a fixed
// train/validation split of the training data.
type HoldoutObjective struct {
	xtr, xval     mat.Matrix
	ytr, yval     *mat.Dense
	groups        []string
	earlyStopping int
	factory       crossval.ModelFactory
	scorer        metrics.Scorer
}

var _ tuning.Objective = (*HoldoutObjective)(nil)

// NewHoldoutObjective splits X and the target column once; every
// Evaluate call sees the same split.
func NewHoldoutObjective(X *frame.FeatureMatrix, y *frame.TargetVector, target string,
	fraction float64, seed uint64, earlyStopping int,
	factory crossval.ModelFactory, scorer metrics.Scorer) (*HoldoutObjective, error) {
	if X.Rows() != y.Len() {
		return nil, errors.NewShapeMismatchError("NewHoldoutObjective", X.Rows(), y.Len(), "target rows")
	}
	split, err := model_selection.HoldoutSplit(X.Rows(), fraction, seed)
	if err != nil {
		return nil, err
	}
	ytr, err := y.Take(split.TrainIndices).ColumnVector(target)
	if err != nil {
		return nil, err
	}
	valTV := y.Take(split.TestIndices)
	yval, err := valTV.ColumnVector(target)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		factory = crossval.LGBMFactory
	}
	if scorer == nil {
		scorer = metrics.CouplingScorer()
	}
	return &HoldoutObjective{
		xtr:           X.Take(split.TrainIndices).Matrix(),
		xval:          X.Take(split.TestIndices).Matrix(),
		ytr:           ytr,
		yval:          yval,
		groups:        valTV.Groups(),
		earlyStopping: earlyStopping,
		factory:       factory,
		scorer:        scorer,
	}, nil
}

// Evaluate fits a fresh model with early stopping on the validation rows
// and returns its validation score.
func (o *HoldoutObjective) Evaluate(ctx context.Context, set params.Set) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.WithStack(err)
	}
	m, err := o.factory(set, o.earlyStopping)
	if err != nil {
		return 0, err
	}
	if err := m.FitWithEvalSet(o.xtr, o.ytr, o.xval, o.yval); err != nil {
		return 0, err
	}
	pred, err := m.Predict(o.xval)
	if err != nil {
		return 0, err
	}
	return o.scorer.Score(mat.Col(nil, 0, o.yval), mat.Col(nil, 0, pred), o.groups)
}
