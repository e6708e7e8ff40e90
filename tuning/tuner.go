// Package tuning implements resumable random and Bayesian hyperparameter
// search over a persisted study.
package tuning

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
)

// DefaultMaxAttemptsFactor bounds attempts to factor × NTrials.
const DefaultMaxAttemptsFactor = 3

// Objective evaluates one candidate and returns its loss.
type Objective interface {
	Evaluate(ctx context.Context, set params.Set) (float64, error)
}

// ObjectiveFunc adapts a function to Objective.
type ObjectiveFunc func(ctx context.Context, set params.Set) (float64, error)

func (f ObjectiveFunc) Evaluate(ctx context.Context, set params.Set) (float64, error) {
	return f(ctx, set)
}

// TunerConfig configures a Tuner.
type TunerConfig struct {
	StudyName         string
	NTrials           int
	Space             Space
	Fixed             params.Set
	Sampler           Sampler
	Store             Store
	MaxAttemptsFactor int
}

// Tuner runs n-trial searches against a Store.
type Tuner struct {
	cfg    TunerConfig
	logger log.Logger
}

// NewTuner validates cfg. A nil Sampler becomes a RandomSampler seeded
// with 0 and a nil logger the "tuning" component logger.
func NewTuner(cfg TunerConfig, logger log.Logger) (*Tuner, error) {
	if cfg.StudyName == "" {
		return nil, errors.NewConfigurationError("study_name", "must not be empty", cfg.StudyName)
	}
	if cfg.Store == nil {
		return nil, errors.NewConfigurationError("storage", "a study store is required", nil)
	}
	if cfg.NTrials < 1 {
		return nil, errors.NewConfigurationError("n_trials", "must be >= 1", cfg.NTrials)
	}
	if cfg.MaxAttemptsFactor < 1 {
		cfg.MaxAttemptsFactor = DefaultMaxAttemptsFactor
	}
	if cfg.Sampler == nil {
		cfg.Sampler = NewRandomSampler(0)
	}
	if logger == nil {
		logger = log.GetLoggerWithName("tuning")
	}
	return &Tuner{cfg: cfg, logger: logger.With(log.StudyKey, cfg.StudyName)}, nil
}

// Run searches until NTrials candidates evaluated successfully or the
// attempt cap is reached, then saves the study. It returns the best
// candidate of this run merged over the fixed parameters.
//
// Trial failures (see errors.IsTrialFailure) are recorded and skipped; any
// other error aborts the run after saving the trials so far. When the cap
// is reached the TuningExhaustedError is returned together with the best
// set if one exists.
func (t *Tuner) Run(ctx context.Context, objective Objective) (params.Set, error) {
	study, ok, err := t.cfg.Store.Load(ctx, t.cfg.StudyName)
	if err != nil {
		return nil, err
	}
	if !ok {
		study = NewStudy(t.cfg.StudyName)
	}

	maxAttempts := t.cfg.MaxAttemptsFactor * t.cfg.NTrials
	t.logger.Info("Tuning started",
		log.OperationKey, log.OperationTune,
		log.SamplerKey, t.cfg.Sampler.Name(),
		"n_trials", t.cfg.NTrials,
		"previous_trials", len(study.Trials))

	var (
		runBest      params.Set
		runBestValue = math.Inf(1)
		successful   int
		attempts     int
	)
	for successful < t.cfg.NTrials && attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, t.abort(ctx, study, errors.WithStack(err))
		}
		attempts++

		candidate := t.cfg.Sampler.Sample(t.cfg.Space, study.Trials)
		record, err := t.evaluate(ctx, objective, study.NextNumber(), candidate)
		if err != nil {
			if !errors.IsTrialFailure(err) {
				return nil, t.abort(ctx, study, err)
			}
			study.Record(record)
			t.logger.Warn("Trial failed", log.TrialKey, record, log.AttemptsKey, attempts, "error", err)
			continue
		}

		successful++
		improved := study.Record(record)
		if record.Value < runBestValue {
			runBestValue = record.Value
			runBest = record.Params.Clone()
		}
		t.logger.Info("Trial finished",
			log.TrialKey, record,
			log.HyperParamsKey, record.Params.Map(),
			"best_so_far", improved)
	}

	if err := t.cfg.Store.Save(ctx, study); err != nil {
		return nil, err
	}

	var best params.Set
	if runBest != nil {
		best = params.Merge(t.cfg.Fixed, runBest)
	}
	if successful < t.cfg.NTrials {
		bestValue := math.NaN()
		if runBest != nil {
			bestValue = runBestValue
		}
		return best, errors.NewTuningExhaustedError(t.cfg.StudyName, successful, t.cfg.NTrials, attempts, bestValue)
	}

	t.logger.Info("Tuning finished",
		log.ScoreKey, runBestValue,
		log.AttemptsKey, attempts,
		"stored_best", study.BestValue)
	return best, nil
}

// evaluate runs one trial, converting panics and non-finite losses into
// trial failures.
func (t *Tuner) evaluate(ctx context.Context, objective Objective, number int, candidate params.Set) (TrialRecord, error) {
	record := TrialRecord{
		Number: number,
		ID:     uuid.NewString(),
		Params: candidate.Clone(),
		Start:  time.Now().UTC(),
		State:  TrialComplete,
	}
	merged := params.Merge(t.cfg.Fixed, candidate)

	var value float64
	err := errors.SafeExecute(fmt.Sprintf("trial %d", number), func() error {
		var evalErr error
		value, evalErr = objective.Evaluate(ctx, merged)
		return evalErr
	})
	if err == nil {
		err = errors.CheckScalar("trial value", value, number)
	}
	record.DurationMs = time.Since(record.Start).Milliseconds()
	if err != nil {
		record.State = TrialFail
		record.Error = err.Error()
		if errors.IsTrialFailure(err) {
			err = errors.NewTrialFailure(number, err)
		}
		return record, err
	}
	record.Value = value
	return record, nil
}

// abort saves the trials recorded so far and returns cause.
func (t *Tuner) abort(ctx context.Context, study *Study, cause error) error {
	if len(study.Trials) > 0 {
		if err := t.cfg.Store.Save(context.WithoutCancel(ctx), study); err != nil {
			t.logger.Error("Failed to save study after abort", "error", err)
		}
	}
	return cause
}

// GetBestParams returns the stored best searched parameters without
// modifying the study. An absent study or one without a successful trial
// gives (nil, false, nil).
func (t *Tuner) GetBestParams(ctx context.Context) (params.Set, bool, error) {
	study, ok, err := t.cfg.Store.Load(ctx, t.cfg.StudyName)
	if err != nil || !ok || !study.HasBest {
		return nil, false, err
	}
	return study.BestParams.Clone(), true, nil
}

// History returns a copy of the stored study.
func (t *Tuner) History(ctx context.Context) (*Study, bool, error) {
	study, ok, err := t.cfg.Store.Load(ctx, t.cfg.StudyName)
	if err != nil || !ok {
		return nil, false, err
	}
	return study.Clone(), true, nil
}
