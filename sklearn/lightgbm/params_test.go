package lightgbm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

func TestParamsFromSet(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p, err := ParamsFromSet(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultParams(), p)
	})

	t.Run("wrapper names and aliases", func(t *testing.T) {
		p, err := ParamsFromSet(params.Set{
			"num_leaves":       params.Int(63),
			"num_iterations":   params.Int(50),
			"lambda_l2":        params.Float(1.5),
			"feature_fraction": params.Float(0.8),
			"max_depth":        params.Float(7), // integral floats are accepted
		})
		require.NoError(t, err)
		assert.Equal(t, 63, p.NumLeaves)
		assert.Equal(t, 50, p.NumIterations)
		assert.Equal(t, 1.5, p.Lambda)
		assert.Equal(t, 0.8, p.FeatureFraction)
		assert.Equal(t, 7, p.MaxDepth)
	})

	t.Run("unknown name is a configuration error", func(t *testing.T) {
		_, err := ParamsFromSet(params.Set{"num_leafs": params.Int(31)})
		var cerr *errors.ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, "num_leafs", cerr.Field)
	})

	t.Run("same parameter under two names", func(t *testing.T) {
		_, err := ParamsFromSet(params.Set{
			"n_estimators":   params.Int(10),
			"num_iterations": params.Int(20),
		})
		var cerr *errors.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, err := ParamsFromSet(params.Set{"num_leaves": params.String("many")})
		var cerr *errors.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})

	t.Run("out of range is a validation error", func(t *testing.T) {
		for name, v := range map[string]params.Value{
			"learning_rate":    params.Float(0),
			"num_leaves":       params.Int(1),
			"subsample":        params.Float(1.5),
			"colsample_bytree": params.Float(0),
			"reg_lambda":       params.Float(-1),
			"boosting_type":    params.String("dart"),
		} {
			_, err := ParamsFromSet(params.Set{name: v})
			var verr *errors.ValidationError
			assert.True(t, errors.As(err, &verr), name)
		}
	})
}

func TestToSetRoundTrip(t *testing.T) {
	p := DefaultParams()
	p.NumLeaves = 15
	p.LearningRate = 0.05
	p.Seed = 3

	back, err := ParamsFromSet(p.ToSet())
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestSchemaIsCopy(t *testing.T) {
	s := Schema()
	delete(s, "num_leaves")
	assert.True(t, Schema().Has("num_leaves"))
}
