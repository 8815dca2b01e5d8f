package sampler

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Parallel runs per-particle work in contiguous chunks. Work for particle i
// must only touch particle i's output, so results do not depend on Workers.
type Parallel struct {
	Workers int // <= 0 means GOMAXPROCS
}

// minChunk keeps tiny batches on one goroutine
const minChunk = 64

// Each calls fn(i) for i in [0, n). The first error wins.
func (p Parallel) Each(n int, fn func(i int) error) error {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	if chunk >= n {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		lo, hi := start, start+chunk
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
