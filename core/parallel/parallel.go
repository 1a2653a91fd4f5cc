package parallel

import (
	"runtime"
	"sync"
)

// Workers resolves an n_jobs style setting into a worker count.
// Values below 1 mean "use every CPU core".
func Workers(nJobs int) int {
	if nJobs < 1 {
		return runtime.NumCPU()
	}
	return nJobs
}

// ForEach calls fn(i) for every i in [0, items) using at most workers goroutines.
// The range is divided into contiguous chunks (ceiling division), one per worker.
// fn must only write to state owned by index i.
func ForEach(items, workers int, fn func(i int)) {
	if items <= 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	if workers > items {
		workers = items // No need for more workers than items
	}

	if workers == 1 {
		for i := 0; i < items; i++ {
			fn(i)
		}
		return
	}

	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
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
			for i := s; i < e; i++ {
				fn(i)
			}
		}(start, end)
	}

	wg.Wait()
}
