// Package lightgbm implements a histogram-based gradient boosting regressor
// in the style of LightGBM.
//
// Trees are grown leaf-wise: at each step the leaf whose best split has the
// largest gain is divided, until num_leaves is reached or no split clears
// min_split_gain. Feature values are bucketed into at most max_bin bins
// per feature and NaN values are kept in a dedicated bin; each split
// learns on which side missing values belong.
//
// Parameters use the names of the Python scikit-learn wrapper
// (n_estimators, subsample, colsample_bytree, reg_lambda, ...). The core
// LightGBM aliases (num_iterations, bagging_fraction, lambda_l2, ...) are
// accepted as well.
//
// Example:
//
//	reg, err := lightgbm.NewLGBMRegressorFromParams(params.Set{
//		"num_leaves":    params.Int(63),
//		"learning_rate": params.Float(0.05),
//	})
//	if err != nil {
//		return err
//	}
//	reg.WithEarlyStopping(100)
//	if err := reg.FitWithEvalSet(Xtr, ytr, Xval, yval); err != nil {
//		return err
//	}
//	pred, err := reg.Predict(Xte)
package lightgbm
