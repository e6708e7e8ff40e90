package lightgbm

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/core/model"
	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/metrics"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
)

// LGBMRegressor implements a LightGBM regressor with scikit-learn compatible API
type LGBMRegressor struct {
	model.BaseEstimator

	// Model
	Model     *Model
	Predictor *Predictor

	// Hyperparameters (matching Python LightGBM)
	Params TrainingParams

	nFeatures_    int
	nSamples_     int
	bestIteration int
	evalHistory   map[string][]float64
}

var _ model.EvalSetFitter = (*LGBMRegressor)(nil)

// NewLGBMRegressor creates a new LightGBM regressor with default parameters
func NewLGBMRegressor() *LGBMRegressor {
	return &LGBMRegressor{Params: DefaultParams()}
}

// NewLGBMRegressorFromParams creates a regressor from a parameter set in
// wrapper or core naming. Unknown names are ConfigurationErrors and
// out-of-range values ValidationErrors.
func NewLGBMRegressorFromParams(set params.Set) (*LGBMRegressor, error) {
	p, err := ParamsFromSet(set)
	if err != nil {
		return nil, err
	}
	return &LGBMRegressor{Params: p}, nil
}

// WithNumLeaves sets the maximum number of leaves per tree
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.Params.NumLeaves = n
	return lgb
}

// WithLearningRate sets the shrinkage rate
func (lgb *LGBMRegressor) WithLearningRate(lr float64) *LGBMRegressor {
	lgb.Params.LearningRate = lr
	return lgb
}

// WithNumIterations sets the number of boosting rounds
func (lgb *LGBMRegressor) WithNumIterations(n int) *LGBMRegressor {
	lgb.Params.NumIterations = n
	return lgb
}

// WithRandomState sets the sampling seed
func (lgb *LGBMRegressor) WithRandomState(seed int) *LGBMRegressor {
	lgb.Params.Seed = seed
	return lgb
}

// WithObjective sets the objective function
func (lgb *LGBMRegressor) WithObjective(obj string) *LGBMRegressor {
	lgb.Params.Objective = obj
	return lgb
}

// WithEarlyStopping sets the early stopping rounds used by FitWithEvalSet
func (lgb *LGBMRegressor) WithEarlyStopping(rounds int) *LGBMRegressor {
	lgb.Params.EarlyStoppingRounds = rounds
	return lgb
}

// Fit trains the model on (X, y) without an evaluation set.
func (lgb *LGBMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")
	return lgb.fit(X, y, nil)
}

// FitWithEvalSet trains on (X, y) and stops early on (Xval, yval).
func (lgb *LGBMRegressor) FitWithEvalSet(X, y, Xval, yval mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.FitWithEvalSet")
	return lgb.fit(X, y, &ValidationData{X: Xval, Y: yval})
}

func (lgb *LGBMRegressor) fit(X, y mat.Matrix, val *ValidationData) error {
	lgb.Reset()
	rows, cols := X.Dims()

	logger := log.GetLoggerWithName("lightgbm.regressor")
	start := time.Now()

	trainer, err := NewTrainer(lgb.Params)
	if err != nil {
		return err
	}
	if err := trainer.FitWithValidation(X, y, val); err != nil {
		return errors.Wrap(err, "coupling: lightgbm training failed")
	}

	lgb.Model = trainer.GetModel()
	lgb.Predictor = NewPredictor(lgb.Model)
	lgb.Predictor.SetNumThreads(lgb.Params.NumThreads)
	lgb.nFeatures_ = cols
	lgb.nSamples_ = rows
	lgb.bestIteration = lgb.Model.BestIteration
	lgb.evalHistory = trainer.EvalHistory()
	lgb.SetFitted()

	logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.BestIterationKey, lgb.bestIteration,
		log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// Predict makes predictions for input samples
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lgb.CheckFitted("LGBMRegressor", "Predict"); err != nil {
		return nil, err
	}

	_, cols := X.Dims()
	if cols != lgb.nFeatures_ {
		return nil, errors.NewDimensionError("Predict", lgb.nFeatures_, cols, 1)
	}
	return lgb.Predictor.Predict(X)
}

// Score returns the coefficient of determination R^2 of the prediction
func (lgb *LGBMRegressor) Score(X, y mat.Matrix) (float64, error) {
	if err := lgb.CheckFitted("LGBMRegressor", "Score"); err != nil {
		return 0, err
	}
	pred, err := lgb.Predict(X)
	if err != nil {
		return 0, err
	}
	yRows, _ := y.Dims()
	yTrue := mat.NewVecDense(yRows, mat.Col(nil, 0, y))
	yPred := mat.NewVecDense(yRows, mat.Col(nil, 0, pred))
	return metrics.R2Score(yTrue, yPred)
}

// BestIteration returns the number of boosting rounds kept.
func (lgb *LGBMRegressor) BestIteration() int {
	return lgb.bestIteration
}

// EvalHistory returns the per-round mean loss of the last fit.
func (lgb *LGBMRegressor) EvalHistory() map[string][]float64 {
	return lgb.evalHistory
}

// GetFeatureImportance returns feature importance ("split" or "gain").
func (lgb *LGBMRegressor) GetFeatureImportance(importanceType string) []float64 {
	if lgb.Model == nil {
		return nil
	}
	return lgb.Model.FeatureImportance(importanceType)
}

// GetParams returns the parameters of the regressor
func (lgb *LGBMRegressor) GetParams() params.Set {
	return lgb.Params.ToSet()
}

// SetParams overlays set on the current parameters.
func (lgb *LGBMRegressor) SetParams(set params.Set) error {
	merged := params.Merge(lgb.Params.ToSet(), set)
	p, err := ParamsFromSet(merged)
	if err != nil {
		return err
	}
	p.EarlyStoppingRounds = lgb.Params.EarlyStoppingRounds
	lgb.Params = p
	return nil
}
