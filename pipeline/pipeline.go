// Package pipeline composes tuning, cross-validation and ensembling into
// the stage predictors of the coupling-constant model.
package pipeline

import (
	"github.com/YuminosukeSato/coupling/artifact"
	"github.com/YuminosukeSato/coupling/config"
	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/crossval"
	"github.com/YuminosukeSato/coupling/metrics"
	"github.com/YuminosukeSato/coupling/pkg/log"
	"github.com/YuminosukeSato/coupling/tuning"
	"github.com/YuminosukeSato/coupling/tuning/storage"
)

// StoreOpener opens the store that holds one study.
type StoreOpener func(study string) (tuning.Store, error)

// Deps are the collaborators of the stage predictors. Zero fields are
// filled from the configuration by withDefaults.
type Deps struct {
	OpenStore StoreOpener
	Artifacts artifact.Store
	Factory   crossval.ModelFactory
	Scorer    metrics.Scorer
	Logger    log.Logger
}

func (d Deps) withDefaults(cfg *config.Config) (Deps, error) {
	if d.OpenStore == nil {
		backend, dir := cfg.StorageBackend, cfg.Paths.StorageDir
		d.OpenStore = func(study string) (tuning.Store, error) {
			return storage.Open(backend, dir, study)
		}
	}
	if d.Artifacts == nil {
		var store artifact.Store = artifact.NewFileStore(cfg.Paths.FeatureDir)
		if cfg.ArtifactCacheSize > 0 {
			cached, err := artifact.NewCachedStore(store, cfg.ArtifactCacheSize)
			if err != nil {
				return d, err
			}
			store = cached
		}
		d.Artifacts = store
	}
	if d.Factory == nil {
		d.Factory = crossval.LGBMFactory
	}
	if d.Scorer == nil {
		scorer, err := metrics.ScorerByName(cfg.Metric)
		if err != nil {
			return d, err
		}
		d.Scorer = scorer
	}
	if d.Logger == nil {
		d.Logger = log.GetLoggerWithName("pipeline")
	}
	return d, nil
}

// newSampler picks the configured sampler with its own seed.
func newSampler(cfg *config.Config) tuning.Sampler {
	seed := cfg.ComponentSeed(config.SeedSampler)
	if cfg.Sampler == config.SamplerGP {
		return tuning.NewGPSampler(seed)
	}
	return tuning.NewRandomSampler(seed)
}

// withModelSeed sets random_state from the model seed unless the set
// already carries one.
func withModelSeed(cfg *config.Config, set params.Set) params.Set {
	out := set.Clone()
	if out == nil {
		out = params.Set{}
	}
	for _, name := range []string{"random_state", "seed"} {
		if _, ok := out[name]; ok {
			return out
		}
	}
	out["random_state"] = params.Int(int(cfg.ComponentSeed(config.SeedModel) >> 33))
	return out
}
