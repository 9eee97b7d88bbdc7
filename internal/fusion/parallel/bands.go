// Package parallel splits index ranges into contiguous bands and runs one
// goroutine per band. Each band is owned by exactly one worker, so callers
// can write band-local output without locks.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Band is the half-open index range [Lo, Hi).
type Band struct {
	Lo, Hi int
}

// Workers resolves a configured worker count: values <= 0 mean GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return n
}

// Split divides [0, n) into at most workers contiguous bands of near-equal
// size. It returns nil for n <= 0.
func Split(n, workers int) []Band {
	if n <= 0 {
		return nil
	}
	workers = Workers(workers)
	if workers > n {
		workers = n
	}
	bands := make([]Band, 0, workers)
	size, rem := n/workers, n%workers
	lo := 0
	for i := 0; i < workers; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		bands = append(bands, Band{Lo: lo, Hi: hi})
		lo = hi
	}
	return bands
}

// ForEachBand runs fn once per band of [0, n) and waits for all of them.
// With a single band fn runs on the calling goroutine.
func ForEachBand(n, workers int, fn func(b Band)) {
	bands := Split(n, workers)
	if len(bands) == 1 {
		fn(bands[0])
		return
	}
	var g errgroup.Group
	for _, b := range bands {
		g.Go(func() error {
			fn(b)
			return nil
		})
	}
	_ = g.Wait()
}
