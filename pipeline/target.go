package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/coupling/config"
	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/linear"
	"github.com/YuminosukeSato/coupling/pkg/errors"
	"github.com/YuminosukeSato/coupling/pkg/log"
	"github.com/YuminosukeSato/coupling/preprocessing"
)

// TargetPrediction fits one ridge regression on standardized features.
// There is no tuning and no cross-validation.
type TargetPrediction struct {
	target       string
	alpha        float64
	fitIntercept bool
	logger       log.Logger
}

// NewTargetPrediction reads the linear block of cfg.
func NewTargetPrediction(cfg *config.Config, logger log.Logger) *TargetPrediction {
	if logger == nil {
		logger = log.GetLoggerWithName("pipeline")
	}
	return &TargetPrediction{
		target:       cfg.TargetName,
		alpha:        cfg.Linear.Alpha,
		fitIntercept: cfg.Linear.FitIntercept,
		logger:       logger.With(log.TargetKey, cfg.TargetName),
	}
}

// Run fits on (Xtrain, yTrain[target]) and predicts Xtest.
func (p *TargetPrediction) Run(ctx context.Context, Xtrain *frame.FeatureMatrix, yTrain *frame.TargetVector,
	Xtest *frame.FeatureMatrix) (frame.PredictionVector, error) {
	var empty frame.PredictionVector
	if err := ctx.Err(); err != nil {
		return empty, errors.WithStack(err)
	}
	if err := frame.CheckSchema(Xtrain, Xtest); err != nil {
		return empty, err
	}
	if Xtrain.Rows() != yTrain.Len() {
		return empty, errors.NewShapeMismatchError("TargetPrediction.Run", Xtrain.Rows(), yTrain.Len(), "target rows")
	}
	y, err := yTrain.ColumnVector(p.target)
	if err != nil {
		return empty, err
	}
	start := time.Now()

	scaler := preprocessing.NewStandardScaler(true, true)
	Xs, err := scaler.FitTransform(Xtrain.Matrix())
	if err != nil {
		return empty, err
	}
	reg := linear.NewLinearRegression(linear.WithAlpha(p.alpha), linear.WithFitIntercept(p.fitIntercept))
	if err := reg.Fit(Xs, y); err != nil {
		return empty, err
	}

	XtestS, err := scaler.Transform(Xtest.Matrix())
	if err != nil {
		return empty, err
	}
	out, err := reg.Predict(XtestS)
	if err != nil {
		return empty, err
	}
	pred, err := frame.NewPredictionVector(p.target, Xtest.Index(), out)
	if err != nil {
		return empty, err
	}

	p.logger.Info("Linear fit finished",
		log.ModelNameKey, "LinearRegression",
		log.SamplesKey, Xtrain.Rows(),
		log.FeaturesKey, Xtrain.Cols(),
		log.DurationMsKey, time.Since(start).Milliseconds())
	return pred, nil
}
