package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/YuminosukeSato/coupling/artifact"
	"github.com/YuminosukeSato/coupling/config"
	"github.com/YuminosukeSato/coupling/core/model"
	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/crossval"
	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
	"github.com/YuminosukeSato/coupling/tuning"
)

// SubTargetPrediction predicts one target with tuned LightGBM models
// averaged over k folds.
//
// Run goes through tune (when enabled), cross-validate, ensemble and
// cache (when save is enabled). Any failing step aborts the run and no
// prediction is returned.
type SubTargetPrediction struct {
	cfg    *config.Config
	deps   Deps
	logger log.Logger
}

// NewSubTargetPrediction validates cfg and fills missing deps.
func NewSubTargetPrediction(cfg *config.Config, deps Deps) (*SubTargetPrediction, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	deps, err := deps.withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	return &SubTargetPrediction{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(log.TargetKey, cfg.TargetName),
	}, nil
}

// Run returns the ensembled test-set prediction of the configured target.
func (p *SubTargetPrediction) Run(ctx context.Context, Xtrain *frame.FeatureMatrix, yTrain *frame.TargetVector,
	Xtest *frame.FeatureMatrix) (frame.PredictionVector, error) {
	var empty frame.PredictionVector
	target := p.cfg.TargetName
	start := time.Now()

	if err := frame.CheckSchema(Xtrain, Xtest); err != nil {
		return empty, err
	}
	if yTrain == nil {
		return empty, errors.NewDataInsufficientError("SubTargetPrediction.Run", "training targets are required", Xtrain.Rows())
	}
	if !yTrain.Has(target) {
		return empty, errors.NewConfigurationError("target_name", "no such target column", target)
	}

	set, err := p.ResolveParams(ctx, Xtrain, yTrain)
	if err != nil {
		return empty, err
	}

	p.logger.Debug("Cross-validation started", log.PhaseKey, log.PhaseCrossValidation)
	cv, err := crossval.NewCrossValidator(crossval.Config{
		NSplits:             p.cfg.NSplits,
		Seed:                p.cfg.ComponentSeed(config.SeedKFold),
		EarlyStoppingRounds: p.cfg.EarlyStoppingRounds,
	}, p.deps.Factory, p.deps.Scorer)
	if err != nil {
		return empty, err
	}
	res, err := cv.Run(ctx, Xtrain, yTrain, target, Xtest, withModelSeed(p.cfg, set))
	if err != nil {
		return empty, err
	}

	p.logger.Debug("Ensembling folds", log.PhaseKey, log.PhaseEnsemble)
	score, err := crossval.AverageScores(res.Scores)
	if err != nil {
		return empty, err
	}
	pred, err := crossval.AveragePredictions(res.TestPredictions)
	if err != nil {
		return empty, err
	}
	pred.Name = target
	p.logger.Info(fmt.Sprintf("Score: %v", score), log.ScoreKey, score)

	if p.cfg.Save {
		feature := artifact.NewPredictedFeature(pred, artifact.PhaseTest)
		if err := p.deps.Artifacts.Write(ctx, feature); err != nil {
			return empty, err
		}
		p.logger.Info("Saved predicted feature",
			log.PhaseKey, log.PhaseCache,
			log.ArtifactKey, target+"/"+artifact.PhaseTest)
	}

	p.logger.Info("Prediction finished",
		log.SamplesKey, pred.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds())
	return pred, nil
}

// ResolveParams returns the parameter set the folds are trained with:
// the tuned best when tuning is enabled, the stored best otherwise,
// merged over the fixed parameters in both cases.
func (p *SubTargetPrediction) ResolveParams(ctx context.Context, Xtrain *frame.FeatureMatrix,
	yTrain *frame.TargetVector) (params.Set, error) {
	store, err := p.deps.OpenStore(p.cfg.StudyName())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	tuner, err := p.newTuner(store)
	if err != nil {
		return nil, err
	}

	if !p.cfg.Tuning {
		searched, ok, err := tuner.GetBestParams(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.logger.Info("No stored parameters, using fixed parameters", log.StudyKey, p.cfg.StudyName())
			searched = params.Set{}
		}
		return params.Merge(p.cfg.FixedParams, searched), nil
	}

	p.logger.Debug("Tuning started", log.PhaseKey, log.PhaseTuning)
	objective, err := NewHoldoutObjective(Xtrain, yTrain, p.cfg.TargetName,
		p.cfg.ValidationFraction, p.cfg.ComponentSeed(config.SeedHoldout), p.cfg.EarlyStoppingRounds,
		p.modelFactory(), p.deps.Scorer)
	if err != nil {
		return nil, err
	}
	best, err := tuner.Run(ctx, objective)
	var exhausted *errors.TuningExhaustedError
	if errors.As(err, &exhausted) && exhausted.HasBest() {
		p.logger.Warn("Tuning exhausted its attempts, using best trial so far", "error", err)
		return best, nil
	}
	if err != nil {
		return nil, err
	}
	return best, nil
}

// Study returns the stored study of the configured target.
func (p *SubTargetPrediction) Study(ctx context.Context) (*tuning.Study, bool, error) {
	store, err := p.deps.OpenStore(p.cfg.StudyName())
	if err != nil {
		return nil, false, err
	}
	defer store.Close()
	tuner, err := p.newTuner(store)
	if err != nil {
		return nil, false, err
	}
	return tuner.History(ctx)
}

func (p *SubTargetPrediction) newTuner(store tuning.Store) (*tuning.Tuner, error) {
	space, err := p.cfg.Space()
	if err != nil {
		return nil, err
	}
	nTrials := p.cfg.NTrials
	if nTrials < 1 {
		nTrials = 1
	}
	return tuning.NewTuner(tuning.TunerConfig{
		StudyName: p.cfg.StudyName(),
		NTrials:   nTrials,
		Space:     space,
		Fixed:     p.cfg.FixedParams,
		Sampler:   newSampler(p.cfg),
		Store:     store,
	}, p.deps.Logger)
}

// modelFactory seeds every trial model the same way as the fold models.
func (p *SubTargetPrediction) modelFactory() crossval.ModelFactory {
	return func(set params.Set, earlyStoppingRounds int) (model.EvalSetFitter, error) {
		return p.deps.Factory(withModelSeed(p.cfg, set), earlyStoppingRounds)
	}
}
