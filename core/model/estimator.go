package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は回帰モデル
type Regressor interface {
	Fitter
	Predictor
}

// EvalSetFitter は検証データで早期終了しながら学習できるモデル
type EvalSetFitter interface {
	Regressor
	// FitWithEvalSet は (Xval, yval) の損失が改善しなくなった時点で学習を止める
	FitWithEvalSet(X, y, Xval, yval mat.Matrix) error
	// BestIteration は早期終了で採用されたイテレーション数（1始まり）を返す
	BestIteration() int
}

// LinearModel は線形モデルのインターフェース
type LinearModel interface {
	Regressor
	// Coefficients は学習された重み（係数）を返す
	Coefficients() []float64
	// InterceptValue は学習された切片を返す
	InterceptValue() float64
}

// Transformer は特徴量の前処理。学習データで Fit し、同じ変換をテストデータにも適用する。
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
