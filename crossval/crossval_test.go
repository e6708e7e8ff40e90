package crossval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/coupling/core/model"
	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/frame"
	"github.com/YuminosukeSato/coupling/metrics"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

// meanRegressor predicts the training mean.
type meanRegressor struct {
	model.BaseEstimator
	mean     float64
	fitCalls *int
}

func (m *meanRegressor) Fit(_, y mat.Matrix) error {
	m.mean = stat.Mean(mat.Col(nil, 0, y), nil)
	m.SetFitted()
	*m.fitCalls++
	return nil
}

func (m *meanRegressor) FitWithEvalSet(X, y, _, _ mat.Matrix) error { return m.Fit(X, y) }

func (m *meanRegressor) BestIteration() int { return 1 }

func (m *meanRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, m.mean)
	}
	return out, nil
}

func fixture(t *testing.T, n int) (*frame.FeatureMatrix, *frame.TargetVector, *frame.FeatureMatrix) {
	t.Helper()
	index := make([]string, n)
	data := mat.NewDense(n, 2, nil)
	fc := make([]float64, n)
	for i := 0; i < n; i++ {
		index[i] = fmt.Sprintf("id%d", i)
		data.Set(i, 0, float64(i))
		data.Set(i, 1, float64(i%3))
		fc[i] = 2*float64(i) + 1
	}
	X, err := frame.NewFeatureMatrix([]string{"dist", "kind"}, index, data)
	require.NoError(t, err)
	y := frame.NewTargetVector(index)
	require.NoError(t, y.AddColumn("fc", fc))

	testIndex := []string{"t0", "t1", "t2"}
	Xtest, err := frame.NewFeatureMatrix([]string{"dist", "kind"}, testIndex,
		mat.NewDense(3, 2, []float64{1, 0, 5, 2, 9, 1}))
	require.NoError(t, err)
	return X, y, Xtest
}

func TestCrossValidatorFreshModelPerFold(t *testing.T) {
	X, y, Xtest := fixture(t, 30)
	calls := 0
	var created []*meanRegressor
	factory := func(params.Set, int) (model.EvalSetFitter, error) {
		m := &meanRegressor{fitCalls: &calls}
		created = append(created, m)
		return m, nil
	}

	cv, err := NewCrossValidator(Config{NSplits: 3, Seed: 42}, factory, metrics.MAEScorer())
	require.NoError(t, err)
	res, err := cv.Run(context.Background(), X, y, "fc", Xtest, nil)
	require.NoError(t, err)

	assert.Len(t, res.Scores, 3)
	assert.Len(t, res.TestPredictions, 3)
	assert.Equal(t, []int{1, 1, 1}, res.BestIterations)
	assert.Equal(t, 3, calls)
	require.Len(t, created, 3)
	for _, p := range res.TestPredictions {
		assert.Equal(t, "fc", p.Name)
		assert.Equal(t, Xtest.Index(), p.Index)
		assert.Len(t, p.Values, 3)
	}
}

func TestCrossValidatorReproducible(t *testing.T) {
	X, y, Xtest := fixture(t, 40)
	calls := 0
	factory := func(params.Set, int) (model.EvalSetFitter, error) {
		return &meanRegressor{fitCalls: &calls}, nil
	}
	cv, err := NewCrossValidator(Config{NSplits: 4, Seed: 7}, factory, metrics.MAEScorer())
	require.NoError(t, err)

	a, err := cv.Run(context.Background(), X, y, "fc", Xtest, nil)
	require.NoError(t, err)
	b, err := cv.Run(context.Background(), X, y, "fc", Xtest, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Scores, b.Scores)
	assert.Equal(t, a.TestPredictions, b.TestPredictions)
}

func TestCrossValidatorLightGBM(t *testing.T) {
	X, y, Xtest := fixture(t, 120)
	cv, err := NewCrossValidator(Config{NSplits: 2, Seed: 42, EarlyStoppingRounds: 3}, nil, nil)
	require.NoError(t, err)

	set := params.Set{
		"n_estimators":      params.Int(50),
		"min_child_samples": params.Int(5),
	}
	res, err := cv.Run(context.Background(), X, y, "fc", Xtest, set)
	require.NoError(t, err)
	require.Len(t, res.Scores, 2)
	for _, it := range res.BestIterations {
		assert.GreaterOrEqual(t, it, 1)
		assert.LessOrEqual(t, it, 50)
	}
}

func TestCrossValidatorErrors(t *testing.T) {
	X, y, Xtest := fixture(t, 10)

	t.Run("k < 2", func(t *testing.T) {
		_, err := NewCrossValidator(Config{NSplits: 1}, nil, nil)
		var cerr *errors.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})

	t.Run("k > n", func(t *testing.T) {
		cv, err := NewCrossValidator(Config{NSplits: 50}, nil, nil)
		require.NoError(t, err)
		_, err = cv.Run(context.Background(), X, y, "fc", Xtest, nil)
		var derr *errors.DataInsufficientError
		assert.True(t, errors.As(err, &derr))
	})

	t.Run("schema mismatch", func(t *testing.T) {
		other, err := frame.NewFeatureMatrix([]string{"kind", "dist"}, []string{"x"}, mat.NewDense(1, 2, nil))
		require.NoError(t, err)
		cv, err := NewCrossValidator(Config{NSplits: 2}, nil, nil)
		require.NoError(t, err)
		_, err = cv.Run(context.Background(), X, y, "fc", other, nil)
		var derr *errors.DataInsufficientError
		assert.True(t, errors.As(err, &derr))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cv, err := NewCrossValidator(Config{NSplits: 2}, nil, nil)
		require.NoError(t, err)
		_, err = cv.Run(ctx, X, y, "fc", Xtest, nil)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
