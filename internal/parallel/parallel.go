// Package parallel provides the scatter-gather loop used by index
// construction and query scoring.
package parallel

import "golang.org/x/sync/errgroup"

// ForEachChunk splits [0, n) into contiguous chunks of at least minChunk
// items and calls fn once per chunk on at most workers goroutines. It returns
// after every chunk has finished. fn must only write to state owned by its
// own [lo, hi) range.
func ForEachChunk(n, workers, minChunk int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers = max(workers, 1)
	chunk := max(minChunk, 1, (n+workers-1)/workers)
	if chunk >= n || workers == 1 {
		fn(0, n)
		return
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
