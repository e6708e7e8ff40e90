// Package coupling predicts scalar coupling constants between atom pairs
// from an engineered feature table.
//
// The work is split into stages. Each sub-target (the Fermi-contact,
// spin-dipolar, paramagnetic and diamagnetic spin-orbit contributions) is
// predicted by LightGBM models trained on k folds and averaged. Their
// hyperparameters come from a persisted random or Gaussian-process search
// that can be resumed across runs. The test predictions can be cached so
// a final linear stage fits the total coupling constant on top of them.
//
// # Packages
//
//   - config: YAML configuration, validation and per-component seeds
//   - frame: feature matrices, target columns, CSV loading
//   - tuning, tuning/storage: search spaces, samplers, studies, stores
//   - sklearn/model_selection: seeded k-fold and holdout splits
//   - crossval: per-fold training and ensembling
//   - artifact: cached prediction columns
//   - pipeline: SubTargetPrediction, TargetPrediction, TwoStage
//   - sklearn/lightgbm, linear, preprocessing, metrics: models and scores
//   - pkg/errors, pkg/log: error taxonomy and zerolog logging
//
// # Quick Start
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    return err
//	}
//	stage, err := pipeline.NewSubTargetPrediction(cfg, pipeline.Deps{})
//	if err != nil {
//	    return err
//	}
//	pred, err := stage.Run(ctx, Xtrain, yTrain, Xtest)
//
// The cmd/coupling command wraps the same flow and writes a submission
// file.
package coupling
