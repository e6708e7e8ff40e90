package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryItem(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 64} {
		seen := make([]int, 101)
		var mu sync.Mutex
		ParallelizeN(len(seen), workers, func(start, end int) {
			mu.Lock()
			defer mu.Unlock()
			for i := start; i < end; i++ {
				seen[i]++
			}
		})
		for i, c := range seen {
			assert.Equal(t, 1, c, "item %d with %d workers", i, workers)
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestParallelizeZeroItems(t *testing.T) {
	Parallelize(0, func(start, end int) { t.Fatal("must not be called") })
}
