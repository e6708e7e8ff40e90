package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "LGBMRegressor".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed ("fit", "predict", "tune").
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the stage of the pipeline.
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	TargetKey   = "target.name"
)

// Metrics and training progress.
const (
	DurationMsKey = "perf.duration_ms"
	LossKey       = "metrics.loss"
	ScoreKey      = "metrics.score"
	IterationKey  = "training.iteration"

	// BestIterationKey records the boosting round kept after early stopping.
	BestIterationKey = "training.best_iteration"
)

// Model selection.
const (
	StudyKey    = "tuning.study"
	TrialKey    = "tuning.trial"
	AttemptsKey = "tuning.attempts"
	SamplerKey  = "tuning.sampler"
	FoldKey     = "cv.fold"
	NSplitsKey  = "cv.n_splits"
)

// Configuration and storage.
const (
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
	ArtifactKey    = "artifact.path"
	StorageKey     = "storage.path"
)

// Error context.
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "stacktrace"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"
	OperationTune    = "tune"

	PhaseTuning          = "tuning"
	PhaseCrossValidation = "cross_validation"
	PhaseEnsemble        = "ensemble"
	PhaseCache           = "cache"
)
