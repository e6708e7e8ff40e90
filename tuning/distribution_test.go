package tuning

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/coupling/core/params"
	"github.com/YuminosukeSato/coupling/pkg/errors"
)

func TestLogUniformSamplesStayInBounds(t *testing.T) {
	d, err := NewLogUniformDistribution(1e-2, 1e-1)
	require.NoError(t, err)
	r := newRand(1)

	below := 0
	geoMean := math.Sqrt(1e-2 * 1e-1)
	for i := 0; i < 1000; i++ {
		v, ok := d.Sample(r).AsFloat()
		require.True(t, ok)
		assert.GreaterOrEqual(t, v, 1e-2)
		assert.LessOrEqual(t, v, 1e-1)
		if v < geoMean {
			below++
		}
	}
	// log-uniform puts half the mass below the geometric mean
	assert.InDelta(t, 500, below, 80)
}

func TestIntDistribution(t *testing.T) {
	d, err := NewIntDistribution(2, 4)
	require.NoError(t, err)
	r := newRand(2)

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		v := d.Sample(r)
		assert.Equal(t, params.KindInt, v.Kind())
		n, _ := v.AsInt()
		assert.True(t, n >= 2 && n <= 4)
		seen[n] = true
	}
	assert.Len(t, seen, 3, "both bounds are reachable")
	assert.Equal(t, 0.5, d.ToUnit(params.Int(3)))
}

func TestUniformDistribution(t *testing.T) {
	d, err := NewUniformDistribution(0.5, 1.0)
	require.NoError(t, err)
	r := newRand(3)
	for i := 0; i < 200; i++ {
		assert.True(t, d.Contains(d.Sample(r)))
	}
	assert.False(t, d.Contains(params.Float(1.5)))
	assert.False(t, d.Contains(params.String("x")))
}

func TestCategoricalDistribution(t *testing.T) {
	d, err := NewCategoricalDistribution([]string{"regression", "huber"})
	require.NoError(t, err)
	r := newRand(4)
	for i := 0; i < 50; i++ {
		assert.True(t, d.Contains(d.Sample(r)))
	}
	assert.Equal(t, 1.0, d.ToUnit(params.String("huber")))
}

func TestNewDistributionErrors(t *testing.T) {
	for name, fn := range map[string]func() error{
		"int low > high":     func() error { _, err := NewDistribution(TypeInt, 5, 1, nil); return err },
		"int not integral":   func() error { _, err := NewDistribution(TypeInt, 1.5, 3, nil); return err },
		"uniform low > high": func() error { _, err := NewDistribution(TypeUniform, 1, 0, nil); return err },
		"loguniform zero":    func() error { _, err := NewDistribution(TypeLogUniform, 0, 1, nil); return err },
		"empty categorical":  func() error { _, err := NewDistribution(TypeCategorical, 0, 0, nil); return err },
		"unknown type":       func() error { _, err := NewDistribution("normal", 0, 1, nil); return err },
	} {
		var cerr *errors.ConfigurationError
		assert.True(t, errors.As(fn(), &cerr), name)
	}
}

func TestSpaceSampleReproducible(t *testing.T) {
	space := testSpace(t)
	a := space.Sample(newRand(9))
	b := space.Sample(newRand(9))
	assert.True(t, a.Equal(b))
	assert.True(t, space.Contains(a))
	assert.Equal(t, []string{"learning_rate", "num_leaves", "subsample"}, space.Keys())
}

func TestSpaceValidate(t *testing.T) {
	schema := params.Schema{"num_leaves": {Kind: params.KindInt}}
	err := testSpace(t).Validate(schema)
	var cerr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func testSpace(t *testing.T) Space {
	t.Helper()
	leaves, err := NewIntDistribution(2, 256)
	require.NoError(t, err)
	lr, err := NewLogUniformDistribution(1e-3, 0.3)
	require.NoError(t, err)
	sub, err := NewUniformDistribution(0.5, 1.0)
	require.NoError(t, err)
	return Space{"num_leaves": leaves, "learning_rate": lr, "subsample": sub}
}
