package lightgbm

import (
	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// TrainingParams contains all training hyperparameters. JSON names follow
// the Python scikit-learn wrapper of LightGBM.
type TrainingParams struct {
	BoostingType  string  `json:"boosting_type"`
	NumIterations int     `json:"n_estimators"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MaxDepth      int     `json:"max_depth"` // <= 0 means no limit

	// Leaf constraints
	MinChildSamples int     `json:"min_child_samples"`
	MinChildWeight  float64 `json:"min_child_weight"`
	MinGainToSplit  float64 `json:"min_split_gain"`

	// Regularization
	Lambda float64 `json:"reg_lambda"`
	Alpha  float64 `json:"reg_alpha"`

	// Sampling
	BaggingFraction float64 `json:"subsample"`
	BaggingFreq     int     `json:"subsample_freq"`
	FeatureFraction float64 `json:"colsample_bytree"`

	MaxBin     int     `json:"max_bin"`
	Objective  string  `json:"objective"`
	HuberDelta float64 `json:"huber_delta"`

	Seed       int `json:"random_state"`
	NumThreads int `json:"n_jobs"`
	Verbosity  int `json:"verbose"`

	// EarlyStoppingRounds is a fit argument rather than a model parameter,
	// so it is not part of Schema.
	EarlyStoppingRounds int `json:"-"`
}

// DefaultParams returns the LightGBM defaults.
func DefaultParams() TrainingParams {
	return TrainingParams{
		BoostingType:    "gbdt",
		NumIterations:   100,
		LearningRate:    0.1,
		NumLeaves:       31,
		MaxDepth:        -1,
		MinChildSamples: 20,
		MinChildWeight:  1e-3,
		BaggingFraction: 1.0,
		FeatureFraction: 1.0,
		MaxBin:          255,
		Objective:       "regression",
		HuberDelta:      1.0,
		NumThreads:      -1,
		Verbosity:       -1,
	}
}

var schema = params.Schema{
	"boosting_type":     {Kind: params.KindString, Choices: []string{"gbdt", "dart", "goss", "rf"}},
	"n_estimators":      {Kind: params.KindInt},
	"learning_rate":     {Kind: params.KindFloat},
	"num_leaves":        {Kind: params.KindInt},
	"max_depth":         {Kind: params.KindInt},
	"min_child_samples": {Kind: params.KindInt},
	"min_child_weight":  {Kind: params.KindFloat},
	"min_split_gain":    {Kind: params.KindFloat},
	"reg_lambda":        {Kind: params.KindFloat},
	"reg_alpha":         {Kind: params.KindFloat},
	"subsample":         {Kind: params.KindFloat},
	"subsample_freq":    {Kind: params.KindInt},
	"colsample_bytree":  {Kind: params.KindFloat},
	"max_bin":           {Kind: params.KindInt},
	"objective":         {Kind: params.KindString, Choices: []string{"regression", "regression_l1", "huber"}},
	"huber_delta":       {Kind: params.KindFloat},
	"random_state":      {Kind: params.KindInt},
	"n_jobs":            {Kind: params.KindInt},
	"verbose":           {Kind: params.KindInt},
}

// aliases maps LightGBM core parameter names onto the wrapper names.
var aliases = map[string]string{
	"num_iterations":    "n_estimators",
	"num_boost_round":   "n_estimators",
	"num_trees":         "n_estimators",
	"shrinkage_rate":    "learning_rate",
	"eta":               "learning_rate",
	"max_leaves":        "num_leaves",
	"min_data_in_leaf":  "min_child_samples",
	"min_sum_hessian":   "min_child_weight",
	"min_gain_to_split": "min_split_gain",
	"lambda_l2":         "reg_lambda",
	"lambda_l1":         "reg_alpha",
	"bagging_fraction":  "subsample",
	"bagging_freq":      "subsample_freq",
	"feature_fraction":  "colsample_bytree",
	"boosting":          "boosting_type",
	"seed":              "random_state",
	"num_threads":       "n_jobs",
	"verbosity":         "verbose",
}

// Schema lists the accepted parameter names and kinds.
func Schema() params.Schema {
	out := make(params.Schema, len(schema))
	for k, v := range schema {
		out[k] = v
	}
	return out
}

// CanonicalSet rewrites alias names to their wrapper names. A parameter
// given under two names is a ConfigurationError.
func CanonicalSet(set params.Set) (params.Set, error) {
	out := make(params.Set, len(set))
	for _, name := range set.Keys() {
		canonical := name
		if a, ok := aliases[name]; ok {
			canonical = a
		}
		if _, dup := out[canonical]; dup {
			return nil, errors.NewConfigurationError(name, "parameter given twice under different names", canonical)
		}
		out[canonical] = set[name]
	}
	return out, nil
}

// ParamsFromSet overlays set on the defaults. Unknown names and kind
// mismatches are ConfigurationErrors; out-of-range values are
// ValidationErrors.
func ParamsFromSet(set params.Set) (TrainingParams, error) {
	p := DefaultParams()
	canonical, err := CanonicalSet(set)
	if err != nil {
		return p, err
	}
	if err := schema.Validate(canonical); err != nil {
		return p, err
	}

	p.BoostingType = canonical.String("boosting_type", p.BoostingType)
	p.NumIterations = canonical.Int("n_estimators", p.NumIterations)
	p.LearningRate = canonical.Float("learning_rate", p.LearningRate)
	p.NumLeaves = canonical.Int("num_leaves", p.NumLeaves)
	p.MaxDepth = canonical.Int("max_depth", p.MaxDepth)
	p.MinChildSamples = canonical.Int("min_child_samples", p.MinChildSamples)
	p.MinChildWeight = canonical.Float("min_child_weight", p.MinChildWeight)
	p.MinGainToSplit = canonical.Float("min_split_gain", p.MinGainToSplit)
	p.Lambda = canonical.Float("reg_lambda", p.Lambda)
	p.Alpha = canonical.Float("reg_alpha", p.Alpha)
	p.BaggingFraction = canonical.Float("subsample", p.BaggingFraction)
	p.BaggingFreq = canonical.Int("subsample_freq", p.BaggingFreq)
	p.FeatureFraction = canonical.Float("colsample_bytree", p.FeatureFraction)
	p.MaxBin = canonical.Int("max_bin", p.MaxBin)
	p.Objective = canonical.String("objective", p.Objective)
	p.HuberDelta = canonical.Float("huber_delta", p.HuberDelta)
	p.Seed = canonical.Int("random_state", p.Seed)
	p.NumThreads = canonical.Int("n_jobs", p.NumThreads)
	p.Verbosity = canonical.Int("verbose", p.Verbosity)

	return p, p.Validate()
}

// Validate checks value ranges.
func (p TrainingParams) Validate() error {
	switch {
	case p.BoostingType != "gbdt":
		return errors.NewValidationError("boosting_type", "only gbdt is supported", p.BoostingType)
	case p.NumIterations < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NumIterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be >= 2", p.NumLeaves)
	case p.MinChildSamples < 0:
		return errors.NewValidationError("min_child_samples", "must be >= 0", p.MinChildSamples)
	case p.MinChildWeight < 0:
		return errors.NewValidationError("min_child_weight", "must be >= 0", p.MinChildWeight)
	case p.Lambda < 0:
		return errors.NewValidationError("reg_lambda", "must be >= 0", p.Lambda)
	case p.Alpha < 0:
		return errors.NewValidationError("reg_alpha", "must be >= 0", p.Alpha)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.BaggingFraction)
	case p.BaggingFreq < 0:
		return errors.NewValidationError("subsample_freq", "must be >= 0", p.BaggingFreq)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", p.FeatureFraction)
	case p.MaxBin < 2 || p.MaxBin > 65535:
		return errors.NewValidationError("max_bin", "must be in [2, 65535]", p.MaxBin)
	case p.Objective == "huber" && p.HuberDelta <= 0:
		return errors.NewValidationError("huber_delta", "must be > 0", p.HuberDelta)
	}
	return nil
}

// ToSet returns the parameters in wrapper naming.
func (p TrainingParams) ToSet() params.Set {
	return params.Set{
		"boosting_type":     params.String(p.BoostingType),
		"n_estimators":      params.Int(p.NumIterations),
		"learning_rate":     params.Float(p.LearningRate),
		"num_leaves":        params.Int(p.NumLeaves),
		"max_depth":         params.Int(p.MaxDepth),
		"min_child_samples": params.Int(p.MinChildSamples),
		"min_child_weight":  params.Float(p.MinChildWeight),
		"min_split_gain":    params.Float(p.MinGainToSplit),
		"reg_lambda":        params.Float(p.Lambda),
		"reg_alpha":         params.Float(p.Alpha),
		"subsample":         params.Float(p.BaggingFraction),
		"subsample_freq":    params.Int(p.BaggingFreq),
		"colsample_bytree":  params.Float(p.FeatureFraction),
		"max_bin":           params.Int(p.MaxBin),
		"objective":         params.String(p.Objective),
		"huber_delta":       params.Float(p.HuberDelta),
		"random_state":      params.Int(p.Seed),
		"n_jobs":            params.Int(p.NumThreads),
		"verbose":           params.Int(p.Verbosity),
	}
}
