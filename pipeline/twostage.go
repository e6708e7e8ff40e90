package pipeline

import (
	"context"

	"github.com/YuminosukeSato/coupling/artifact"
	"github.com/YuminosukeSato/coupling/config"
	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
)

// TwoStage predicts each sub-target, caches the test predictions and
// fits the final target on the sub-targets as extra features.
//
// The training side of the final stage uses the true sub-target columns;
// the test side uses the cached predictions read back by index.
type TwoStage struct {
	cfg  *config.Config
	deps Deps
}

// NewTwoStage validates cfg and fills missing deps.
func NewTwoStage(cfg *config.Config, deps Deps) (*TwoStage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.SubTargets) == 0 {
		return nil, errors.NewConfigurationError("sub_targets", "two-stage prediction needs at least one sub-target", nil)
	}
	deps, err := deps.withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	return &TwoStage{cfg: cfg, deps: deps}, nil
}

// Run returns the prediction of the final target.
func (s *TwoStage) Run(ctx context.Context, Xtrain *frame.FeatureMatrix, yTrain *frame.TargetVector,
	Xtest *frame.FeatureMatrix) (frame.PredictionVector, error) {
	var empty frame.PredictionVector

	for _, target := range s.cfg.SubTargets {
		sub := *s.cfg.WithTarget(target)
		sub.Save = true
		stage, err := NewSubTargetPrediction(&sub, s.deps)
		if err != nil {
			return empty, err
		}
		if _, err := stage.Run(ctx, Xtrain, yTrain, Xtest); err != nil {
			return empty, errors.Wrapf(err, "coupling: sub-target %s", target)
		}
	}

	testIndex := Xtest.Index()
	for _, target := range s.cfg.SubTargets {
		truth, err := yTrain.Column(target)
		if err != nil {
			return empty, err
		}
		cached, err := artifact.ReadAligned(ctx, s.deps.Artifacts, target, artifact.PhaseTest, testIndex)
		if err != nil {
			return empty, err
		}
		if Xtrain, err = Xtrain.WithColumn(target, truth); err != nil {
			return empty, err
		}
		if Xtest, err = Xtest.WithColumn(target, cached.Values); err != nil {
			return empty, err
		}
	}
	s.deps.Logger.Info("Final stage features ready",
		log.SamplesKey, Xtrain.Rows(),
		log.FeaturesKey, Xtrain.Cols())

	final := NewTargetPrediction(s.cfg.WithTarget(config.TargetScalarCoupling), s.deps.Logger)
	return final.Run(ctx, Xtrain, yTrain, Xtest)
}
