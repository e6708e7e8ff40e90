package lightgbm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBinMapperDistinctValues(t *testing.T) {
	m := newBinMapper([]float64{3, 1, 2, math.NaN(), 2}, 255)

	assert.Equal(t, 4, m.numBins())
	assert.Equal(t, missingBin, m.binOf(math.NaN()))
	assert.Equal(t, 1, m.binOf(1))
	assert.Equal(t, 2, m.binOf(2))
	assert.Equal(t, 3, m.binOf(3))
	assert.Equal(t, 3, m.binOf(100))
	assert.Equal(t, 1, m.binOf(-100))
	assert.Equal(t, 1.5, m.threshold(1))
	assert.True(t, math.IsInf(m.threshold(3), 1))
}

func TestBinMapperQuantiles(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	m := newBinMapper(values, 16)

	assert.LessOrEqual(t, m.numBins(), 17)
	prev := 0
	for _, v := range values {
		b := m.binOf(v)
		assert.GreaterOrEqual(t, b, prev, "bins must be monotone in the value")
		prev = b
	}
}

func TestBinMapperAllMissing(t *testing.T) {
	m := newBinMapper([]float64{math.NaN(), math.NaN()}, 255)
	assert.Equal(t, 2, m.numBins())
	assert.Equal(t, missingBin, m.binOf(math.NaN()))
	assert.Equal(t, 1, m.binOf(0))
}

func TestHistogramSubtraction(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 1, math.NaN()})
	data := newBinnedData(X, 255)
	grad := []float64{1, 2, 3, 4}
	hess := []float64{1, 1, 1, 1}
	numBins := data.mappers[0].numBins()

	parent := buildHistogram(data.bins[0], []int{0, 1, 2, 3}, grad, hess, numBins)
	child := buildHistogram(data.bins[0], []int{0, 3}, grad, hess, numBins)
	sibling := subtractHistogram(parent, child)
	direct := buildHistogram(data.bins[0], []int{1, 2}, grad, hess, numBins)

	require.Len(t, sibling, numBins)
	for k := range direct {
		assert.Equal(t, direct[k].Count, sibling[k].Count)
		assert.InDelta(t, direct[k].SumGrad, sibling[k].SumGrad, 1e-12)
		assert.InDelta(t, direct[k].SumHess, sibling[k].SumHess, 1e-12)
	}
	assert.Equal(t, 1, parent[missingBin].Count)
}
