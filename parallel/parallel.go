// Package parallel distributes independent units of work over a bounded number of goroutines.
package parallel

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Pool is an explicit work-distribution context.
// A Pool holds no goroutines between calls to Run.
type Pool struct {
	workers int
}

// New returns a Pool running at most workers units concurrently.
// A non-positive workers means GOMAXPROCS.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

func (p *Pool) Workers() int { return p.workers }

// Run calls fn for every i in [0, n) and waits for all started calls to return.
// After the first error no further units are started, and that error is returned.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, i); err != nil {
				return errors.Wrap(err, "")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "")
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Chunks splits [0, n) into consecutive half-open ranges of at most size elements.
func Chunks(n, size int) [][2]int {
	if size <= 0 {
		size = 1
	}
	chunks := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		chunks = append(chunks, [2]int{start, min(start+size, n)})
	}
	return chunks
}
