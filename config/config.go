// Package config loads the run configuration.
//
// A Config is decoded once at start and passed by pointer into the
// constructors that need it. Nothing in the module writes to it after
// Validate; components copy the values they keep.
package config

import (
	"bufio"
	"encoding/binary"
	"hash/fnv"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/metrics"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
	"github.com/YuminosukeSato/coupling/sklearn/lightgbm"
	"github.com/YuminosukeSato/coupling/tuning"
	"github.com/YuminosukeSato/coupling/tuning/storage"
)

// Sub-targets and the final target.
const (
	TargetFermiContact    = "fc"
	TargetSpinDipolar     = "sd"
	TargetParaSpinOrbit   = "pso"
	TargetDiaSpinOrbit    = "dso"
	TargetScalarCoupling  = "scalar_coupling_constant"
	DefaultIDColumn       = "id"
	DefaultGroupColumn    = "type"
	DefaultValidationFrac = 0.2
)

// Seed components.
const (
	SeedKFold   = "kfold"
	SeedSampler = "sampler"
	SeedHoldout = "holdout"
	SeedModel   = "model"
)

// Samplers.
const (
	SamplerRandom = "random"
	SamplerGP     = "gp"
)

// SubTargets are the coupling contributions predicted in the first stage.
var SubTargets = []string{TargetFermiContact, TargetSpinDipolar, TargetParaSpinOrbit, TargetDiaSpinOrbit}

// Paths groups the filesystem locations.
type Paths struct {
	TrainPath      string `yaml:"train_path"`
	TestPath       string `yaml:"test_path"`
	FeatureDir     string `yaml:"feature_dir"`
	StorageDir     string `yaml:"storage_dir"`
	SubmissionPath string `yaml:"submission_path"`
}

// SpaceEntry is the configuration form of a search distribution.
type SpaceEntry struct {
	Type    string   `yaml:"type"`
	Low     float64  `yaml:"low"`
	High    float64  `yaml:"high"`
	Choices []string `yaml:"choices,omitempty"`
}

// LinearConfig holds the final-stage linear model settings.
type LinearConfig struct {
	Alpha        float64 `yaml:"alpha"`
	FitIntercept bool    `yaml:"fit_intercept"`
}

// LogConfig mirrors log.Options.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Config is the full run configuration.
type Config struct {
	TargetName   string   `yaml:"target_name"`
	FeatureNames []string `yaml:"feature_names"`
	IDColumn     string   `yaml:"id_column"`
	GroupColumn  string   `yaml:"group_column"`
	Paths        Paths    `yaml:"paths"`

	Tuning              bool    `yaml:"tuning"`
	NTrials             int     `yaml:"n_trials"`
	NSplits             int     `yaml:"n_splits"`
	Save                bool    `yaml:"save"`
	Seed                uint64  `yaml:"seed"`
	EarlyStoppingRounds int     `yaml:"early_stopping_rounds"`
	ValidationFraction  float64 `yaml:"validation_fraction"`
	Metric              string  `yaml:"metric"`
	Sampler             string  `yaml:"sampler"`
	StorageBackend      string  `yaml:"storage_backend"`
	ArtifactCacheSize   int     `yaml:"artifact_cache_size"`

	FixedParams params.Set            `yaml:"fixed_params"`
	ParamSpace  map[string]SpaceEntry `yaml:"param_space"`
	Linear      LinearConfig          `yaml:"linear"`
	SubTargets  []string              `yaml:"sub_targets"`
	Log         LogConfig             `yaml:"log"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		TargetName:   TargetFermiContact,
		FeatureNames: defaultFeatureNames(),
		IDColumn:     DefaultIDColumn,
		GroupColumn:  DefaultGroupColumn,
		Paths: Paths{
			TrainPath:      "../data/train_features.csv",
			TestPath:       "../data/test_features.csv",
			FeatureDir:     "../feature",
			StorageDir:     "../database",
			SubmissionPath: "../results/submission.csv",
		},
		Tuning:              false,
		NTrials:             1,
		NSplits:             2,
		Save:                false,
		Seed:                42,
		EarlyStoppingRounds: 3,
		ValidationFraction:  DefaultValidationFrac,
		Metric:              "group_log_mae",
		Sampler:             SamplerRandom,
		StorageBackend:      storage.BackendSQLite,
		ArtifactCacheSize:   16,
		FixedParams: params.Set{
			"boosting_type": params.String("gbdt"),
			"max_depth":     params.Int(20),
			"learning_rate": params.Float(0.1),
			"n_estimators":  params.Int(100000),
			"reg_alpha":     params.Float(0),
		},
		ParamSpace: map[string]SpaceEntry{
			"num_leaves":        {Type: tuning.TypeInt, Low: 2, High: 100},
			"subsample":         {Type: tuning.TypeUniform, Low: 0.5, High: 1.0},
			"subsample_freq":    {Type: tuning.TypeInt, Low: 1, High: 20},
			"colsample_bytree":  {Type: tuning.TypeLogUniform, Low: 1e-2, High: 1e-1},
			"min_child_weight":  {Type: tuning.TypeLogUniform, Low: 1e-3, High: 1e1},
			"min_child_samples": {Type: tuning.TypeInt, Low: 1, High: 50},
			"reg_lambda":        {Type: tuning.TypeLogUniform, Low: 1e-1, High: 1e4},
		},
		Linear:     LinearConfig{Alpha: 1.0, FitIntercept: true},
		SubTargets: append([]string(nil), SubTargets...),
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// Load decodes a YAML file over Default and validates the result. Keys
// absent from the file keep their default values; a fixed_params or
// param_space block replaces the default block as a whole.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewStorageError("open config", path, err)
	}
	defer f.Close()

	return decode(path, func(cfg *Config) error {
		dec := yaml.NewDecoder(bufio.NewReader(f))
		dec.SetStrict(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return err
		}
		return nil
	})
}

// Parse decodes YAML bytes the same way Load does.
func Parse(data []byte) (*Config, error) {
	return decode("<bytes>", func(cfg *Config) error {
		return yaml.UnmarshalStrict(data, cfg)
	})
}

func decode(source string, fn func(*Config) error) (*Config, error) {
	cfg := Default()
	cfg.FixedParams = nil
	cfg.ParamSpace = nil
	if err := fn(cfg); err != nil {
		return nil, errors.NewConfigurationError("config", err.Error(), source)
	}
	def := Default()
	if cfg.FixedParams == nil {
		cfg.FixedParams = def.FixedParams
	}
	if cfg.ParamSpace == nil {
		cfg.ParamSpace = def.ParamSpace
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration before any training starts.
func (c *Config) Validate() error {
	if !IsTarget(c.TargetName) {
		return errors.NewConfigurationError("target_name", "unknown target", c.TargetName)
	}
	if len(c.FeatureNames) == 0 {
		return errors.NewConfigurationError("feature_names", "at least one feature is required", nil)
	}
	if c.NSplits < 2 {
		return errors.NewConfigurationError("n_splits", "must be at least 2", c.NSplits)
	}
	if c.Tuning && c.NTrials < 1 {
		return errors.NewConfigurationError("n_trials", "must be at least 1 when tuning", c.NTrials)
	}
	if c.EarlyStoppingRounds < 0 {
		return errors.NewConfigurationError("early_stopping_rounds", "must not be negative", c.EarlyStoppingRounds)
	}
	if c.ValidationFraction <= 0 || c.ValidationFraction >= 1 {
		return errors.NewConfigurationError("validation_fraction", "must be in (0, 1)", c.ValidationFraction)
	}
	if _, err := metrics.ScorerByName(c.Metric); err != nil {
		return err
	}
	if c.Sampler != SamplerRandom && c.Sampler != SamplerGP {
		return errors.NewConfigurationError("sampler", "must be random or gp", c.Sampler)
	}
	if c.StorageBackend != storage.BackendSQLite && c.StorageBackend != storage.BackendJSON {
		return errors.NewConfigurationError("storage_backend", "must be sqlite or json", c.StorageBackend)
	}
	if c.ArtifactCacheSize < 0 {
		return errors.NewConfigurationError("artifact_cache_size", "must not be negative", c.ArtifactCacheSize)
	}
	if c.Linear.Alpha < 0 {
		return errors.NewConfigurationError("linear.alpha", "must not be negative", c.Linear.Alpha)
	}
	for _, t := range c.SubTargets {
		if !isSubTarget(t) {
			return errors.NewConfigurationError("sub_targets", "unknown sub-target", t)
		}
	}

	if _, err := lightgbm.ParamsFromSet(c.FixedParams); err != nil {
		return errors.Wrap(err, "fixed_params")
	}
	space, err := c.Space()
	if err != nil {
		return err
	}
	return space.Validate(lightgbm.Schema())
}

// Space builds the search space from ParamSpace.
func (c *Config) Space() (tuning.Space, error) {
	space := make(tuning.Space, len(c.ParamSpace))
	names := make([]string, 0, len(c.ParamSpace))
	for name := range c.ParamSpace {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e := c.ParamSpace[name]
		d, err := tuning.NewDistribution(e.Type, e.Low, e.High, e.Choices)
		if err != nil {
			return nil, errors.Wrapf(err, "param_space.%s", name)
		}
		space[name] = d
	}
	return space, nil
}

// ComponentSeed derives the seed of one component from the master seed, so
// changing how often one component draws leaves the others unchanged.
func (c *Config) ComponentSeed(component string) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], c.Seed)
	h.Write(buf[:])
	h.Write([]byte(component))
	return h.Sum64()
}

// StudyName is the study of the configured target.
func (c *Config) StudyName() string {
	return tuning.StudyName(c.TargetName)
}

// WithTarget returns a copy configured for another target.
func (c *Config) WithTarget(target string) *Config {
	out := *c
	out.TargetName = target
	return &out
}

// LogOptions converts the log block for log.SetupLogger.
func (c *Config) LogOptions() log.Options {
	return log.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

// IsTarget reports whether name is a sub-target or the final target.
func IsTarget(name string) bool {
	return name == TargetScalarCoupling || isSubTarget(name)
}

func isSubTarget(name string) bool {
	for _, t := range SubTargets {
		if t == name {
			return true
		}
	}
	return false
}
