package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeWorkers_CoversEveryItemOnce(t *testing.T) {
	tests := []struct {
		name    string
		items   int
		workers int
	}{
		{"more workers than items", 3, 10},
		{"uneven chunks", 10, 3},
		{"single worker", 7, 1},
		{"default workers", 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.items)
			ParallelizeWorkers(tt.items, tt.workers, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, n := range seen {
				assert.Equal(t, int32(1), n, "item %d", i)
			}
		})
	}
}

func TestParallelizeWorkers_NoItems(t *testing.T) {
	called := false
	ParallelizeWorkers(0, 4, func(start, end int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThreshold(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.Equal(t, int32(1), calls)

	var total int64
	ParallelizeWithThreshold(1000, 10, func(start, end int) {
		atomic.AddInt64(&total, int64(end-start))
	})
	assert.Equal(t, int64(1000), total)
}
