package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides items into one contiguous range per CPU core and runs fn
// on each range (start, end) in its own goroutine.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWorkers(items, runtime.NumCPU(), fn)
}

// ParallelizeWorkers is Parallelize with an explicit worker count.
// workers <= 0 means runtime.NumCPU(); workers == 1 runs fn inline.
func ParallelizeWorkers(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items // No need for more workers than items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
