package model_selection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/coupling/pkg/errors"
)

func TestKFoldCoverage(t *testing.T) {
	for _, tc := range []struct{ n, k int }{{10, 2}, {11, 3}, {100, 5}, {7, 7}} {
		kf, err := NewKFold(tc.k, true, 42)
		require.NoError(t, err)
		folds, err := kf.Split(tc.n)
		require.NoError(t, err)
		require.Len(t, folds, tc.k)

		seen := make([]int, tc.n)
		for _, f := range folds {
			assert.NotEmpty(t, f.TestIndices)
			assert.NotEmpty(t, f.TrainIndices)
			assert.Equal(t, tc.n, len(f.TrainIndices)+len(f.TestIndices))

			inTest := map[int]bool{}
			for _, i := range f.TestIndices {
				seen[i]++
				inTest[i] = true
			}
			for _, i := range f.TrainIndices {
				assert.False(t, inTest[i], "train and validation overlap")
			}
		}
		for i, c := range seen {
			assert.Equal(t, 1, c, "row %d appears in %d validation sets", i, c)
		}
	}
}

func TestKFoldReproducible(t *testing.T) {
	kf, err := NewKFold(5, true, 7)
	require.NoError(t, err)
	a, err := kf.Split(50)
	require.NoError(t, err)
	b, err := kf.Split(50)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := NewKFold(5, true, 8)
	require.NoError(t, err)
	c, err := other.Split(50)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestKFoldWithoutShuffleIsContiguous(t *testing.T) {
	kf, err := NewKFold(3, false, 0)
	require.NoError(t, err)
	folds, err := kf.Split(7)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, folds[0].TestIndices)
	assert.Equal(t, []int{3, 4}, folds[1].TestIndices)
	assert.Equal(t, []int{5, 6}, folds[2].TestIndices)
}

func TestKFoldErrors(t *testing.T) {
	t.Run("k < 2", func(t *testing.T) {
		_, err := NewKFold(1, true, 0)
		var cerr *errors.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})

	t.Run("k > n", func(t *testing.T) {
		kf, err := NewKFold(50, true, 0)
		require.NoError(t, err)
		_, err = kf.Split(10)
		var derr *errors.DataInsufficientError
		require.True(t, errors.As(err, &derr))
		assert.Equal(t, 10, derr.Rows)
	})
}

func TestHoldoutSplit(t *testing.T) {
	f, err := HoldoutSplit(100, 0.2, 1)
	require.NoError(t, err)
	assert.Len(t, f.TestIndices, 20)
	assert.Len(t, f.TrainIndices, 80)

	all := append(append([]int(nil), f.TrainIndices...), f.TestIndices...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	again, err := HoldoutSplit(100, 0.2, 1)
	require.NoError(t, err)
	assert.Equal(t, f, again)

	_, err = HoldoutSplit(1, 0.2, 1)
	var derr *errors.DataInsufficientError
	assert.True(t, errors.As(err, &derr))

	_, err = HoldoutSplit(10, 1.5, 1)
	var cerr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}
