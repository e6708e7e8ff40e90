package lightgbm

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

func stepData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		X.Set(i, 0, x)
		if x > 0.5 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func noiseData(n, cols int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, cols, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		y.Set(i, 0, rng.NormFloat64())
	}
	return X, y
}

func TestTrainerFitsStepFunction(t *testing.T) {
	X, y := stepData(200)
	trainer, err := NewTrainer(DefaultParams())
	require.NoError(t, err)
	require.NoError(t, trainer.Fit(X, y))

	model := trainer.GetModel()
	assert.Len(t, model.Trees, 100)
	assert.InDelta(t, 0.0, model.PredictRow([]float64{0.1}), 0.01)
	assert.InDelta(t, 1.0, model.PredictRow([]float64{0.9}), 0.01)

	history := trainer.EvalHistory()
	require.Len(t, history["training"], 100)
	assert.Less(t, history["training"][99], history["training"][0])
}

func TestTrainerRespectsNumLeavesAndDepth(t *testing.T) {
	X, y := noiseData(500, 3, 1)
	p := DefaultParams()
	p.NumIterations = 5
	p.NumLeaves = 7
	p.MaxDepth = 2
	p.MinChildSamples = 5

	trainer, err := NewTrainer(p)
	require.NoError(t, err)
	require.NoError(t, trainer.Fit(X, y))

	for _, tree := range trainer.GetModel().Trees {
		assert.LessOrEqual(t, tree.NumLeaves, 4, "depth 2 allows at most 4 leaves")
		for _, node := range tree.Nodes {
			assert.LessOrEqual(t, node.Depth, 2)
			if node.IsLeaf() {
				assert.GreaterOrEqual(t, node.LeafCount, 5)
			}
		}
	}
}

func TestTrainerMissingValues(t *testing.T) {
	n := 200
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if i < n/2 {
			X.Set(i, 0, math.NaN())
			y.Set(i, 0, 5)
		} else {
			X.Set(i, 0, float64(i))
		}
	}

	trainer, err := NewTrainer(DefaultParams())
	require.NoError(t, err)
	require.NoError(t, trainer.Fit(X, y))

	model := trainer.GetModel()
	assert.InDelta(t, 5.0, model.PredictRow([]float64{math.NaN()}), 0.05)
	assert.InDelta(t, 0.0, model.PredictRow([]float64{150}), 0.05)
}

func TestTrainerEarlyStoppingTruncates(t *testing.T) {
	X, y := noiseData(300, 4, 2)
	Xval, yval := noiseData(100, 4, 3)
	p := DefaultParams()
	p.NumIterations = 200
	p.EarlyStoppingRounds = 5

	trainer, err := NewTrainer(p)
	require.NoError(t, err)
	require.NoError(t, trainer.FitWithValidation(X, y, &ValidationData{X: Xval, Y: yval}))

	model := trainer.GetModel()
	valid := trainer.EvalHistory()["valid_0"]
	require.NotEmpty(t, valid)
	require.GreaterOrEqual(t, len(model.Trees), 1)

	best := valid[0]
	for _, v := range valid {
		best = math.Min(best, v)
	}
	assert.Equal(t, best, valid[len(model.Trees)-1], "kept rounds end at the best validation loss")
	assert.Equal(t, len(model.Trees), model.BestIteration)
}

func TestTrainerReproducible(t *testing.T) {
	X, y := noiseData(300, 5, 4)
	p := DefaultParams()
	p.NumIterations = 20
	p.BaggingFraction = 0.7
	p.BaggingFreq = 1
	p.FeatureFraction = 0.6
	p.Seed = 7

	predict := func() []float64 {
		trainer, err := NewTrainer(p)
		require.NoError(t, err)
		require.NoError(t, trainer.Fit(X, y))
		pred, err := NewPredictor(trainer.GetModel()).Predict(X)
		require.NoError(t, err)
		return mat.Col(nil, 0, pred)
	}
	assert.Equal(t, predict(), predict())
}

func TestTrainerRejectsBadInput(t *testing.T) {
	trainer, err := NewTrainer(DefaultParams())
	require.NoError(t, err)

	t.Run("row mismatch", func(t *testing.T) {
		err := trainer.Fit(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil))
		var derr *errors.DimensionError
		assert.True(t, errors.As(err, &derr))
	})

	t.Run("NaN target", func(t *testing.T) {
		err := trainer.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, math.NaN()}))
		var nerr *errors.NumericalInstabilityError
		assert.True(t, errors.As(err, &nerr))
	})

	t.Run("invalid params", func(t *testing.T) {
		p := DefaultParams()
		p.LearningRate = -1
		_, err := NewTrainer(p)
		var verr *errors.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}

func TestRegularizationStrategy(t *testing.T) {
	p := DefaultParams()
	p.Lambda = 1
	reg := NewRegularizationStrategy(p)
	assert.InDelta(t, 2.0, reg.LeafValue(-10, 4), 1e-9)

	p.Alpha = 3
	reg = NewRegularizationStrategy(p)
	assert.InDelta(t, 1.4, reg.LeafValue(-10, 4), 1e-9)
	assert.Equal(t, 0.0, reg.LeafValue(2, 4), "L1 zeroes small gradients")
}

func TestSamplingStrategy(t *testing.T) {
	p := DefaultParams()
	p.FeatureFraction = 0.5
	p.BaggingFraction = 0.5
	p.BaggingFreq = 3
	s := NewSamplingStrategy(p)

	assert.Len(t, s.SampleFeatures(10), 5)

	bag0 := s.SampleInstances(100, 0)
	assert.Len(t, bag0, 50)
	assert.Equal(t, bag0, s.SampleInstances(100, 1), "bag is reused until the next draw")
	seen := map[int]bool{}
	for _, i := range bag0 {
		assert.False(t, seen[i])
		seen[i] = true
	}

	p.BaggingFreq = 0
	assert.Len(t, NewSamplingStrategy(p).SampleInstances(100, 0), 100)
}

func TestEarlyStopping(t *testing.T) {
	es := NewEarlyStopping(2, "regression")
	assert.False(t, es.Update(1, 1.0))
	assert.False(t, es.Update(2, 0.5))
	assert.False(t, es.Update(3, 0.6))
	assert.True(t, es.Update(4, 0.7))
	assert.Equal(t, 2, es.GetBestIteration())

	disabled := NewEarlyStopping(0, "regression")
	assert.False(t, disabled.Update(1, 1.0))
	assert.Equal(t, -1, disabled.GetBestIteration())
}
