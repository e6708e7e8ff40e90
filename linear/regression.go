package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/core/model"
	"github.com/YuminosukeSato/coupling/core/parallel"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は L2 正則化付きの線形回帰モデル。
// Alpha = 0 のとき通常の最小二乗法になる。切片は正則化しない。
type LinearRegression struct {
	model.BaseEstimator
	Weights      *mat.VecDense // 重み（係数）
	Intercept    float64       // 切片
	NFeatures    int           // 特徴量の数
	Alpha        float64
	FitIntercept bool
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{FitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit は正規方程式 (XᵀX + αI) w = Xᵀy を Cholesky 分解で解く。
// 切片を使う場合は X と y を中心化してから解く。
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if lr.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", lr.Alpha)
	}

	xMean := make([]float64, c)
	var yMean float64
	if lr.FitIntercept {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				xMean[j] += X.At(i, j)
			}
			yMean += y.At(i, 0)
		}
		for j := range xMean {
			xMean[j] /= float64(r)
		}
		yMean /= float64(r)
	}

	Xc := mat.NewDense(r, c, nil)
	yc := mat.NewVecDense(r, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				Xc.Set(i, j, X.At(i, j)-xMean[j])
			}
			yc.SetVec(i, y.At(i, 0)-yMean)
		}
	})

	XTX := mat.NewSymDense(c, nil)
	XTX.SymOuterK(1, Xc.T())
	for j := 0; j < c; j++ {
		XTX.SetSym(j, j, XTX.At(j, j)+lr.Alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(XTX); !ok {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	var XTy mat.VecDense
	XTy.MulVec(Xc.T(), yc)

	weights := mat.NewVecDense(c, nil)
	if err := chol.SolveVecTo(weights, &XTy); err != nil {
		// 完全な共線性では Factorize は成功し、ここで mat.Condition が返る
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.Mark(err, errors.ErrSingularMatrix))
	}

	lr.NFeatures = c
	lr.Weights = weights
	lr.Intercept = yMean - mat.Dot(mat.NewVecDense(c, xMean), weights)
	lr.SetFitted()
	return nil
}

// Predict は y = X·w + b を n×1 行列で返す
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.CheckFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := lr.Intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * lr.Weights.AtVec(j)
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions, nil
}

// Coefficients は学習された重みのコピーを返す
func (lr *LinearRegression) Coefficients() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.Weights)
}

// InterceptValue は学習された切片を返す
func (lr *LinearRegression) InterceptValue() float64 {
	return lr.Intercept
}
