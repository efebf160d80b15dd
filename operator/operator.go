// Package operator assembles sparse matrices of operator-string sums on a symmetry-reduced basis.
package operator

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/fumin/qspin/basis"
	"github.com/fumin/qspin/mat"
	"github.com/fumin/qspin/mat/util"
	"github.com/fumin/qspin/parallel"
	"github.com/pkg/errors"
)

// Bond is a coupling J times the operator string acting on Sites.
type Bond struct {
	J     complex128
	Sites []int
}

// Term is an operator string applied to a list of bonds.
type Term struct {
	Op    string
	Bonds []Bond
}

func (t Term) String() string {
	return fmt.Sprintf("%s %d bonds", t.Op, len(t.Bonds))
}

// Options are options for matrix assembly.
type Options struct {
	workers   int
	chunkSize int
	verbose   bool
}

// NewOptions returns the default assembly options.
func NewOptions() Options {
	opt := Options{}
	opt.chunkSize = 1024
	return opt
}

// Workers sets the number of goroutines, non-positive meaning GOMAXPROCS.
func (opt Options) Workers(n int) Options {
	opt.workers = n
	return opt
}

// ChunkSize sets the number of basis states per unit of work.
func (opt Options) ChunkSize(n int) Options {
	opt.chunkSize = n
	return opt
}

// Verbose logs progress.
func (opt Options) Verbose(v bool) Options {
	opt.verbose = v
	return opt
}

// Check validates every operator string and bond of terms.
func Check(b *basis.Basis, terms []Term) error {
	for i, term := range terms {
		for j, bond := range term.Bonds {
			if err := b.CheckOp(term.Op, bond.Sites); err != nil {
				return errors.Wrap(err, fmt.Sprintf("term %d bond %d", i, j))
			}
		}
	}
	return nil
}

// Assemble returns the matrix of the sum of terms on basis b.
// The result is identical for any number of workers.
func Assemble[T mat.Number](ctx context.Context, b *basis.Basis, terms []Term, options ...Options) (*mat.CSR[T], error) {
	coo, err := Triplets[T](ctx, b, terms, options...)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return coo.CSR(), nil
}

// Triplets returns the unmerged matrix elements of terms, ordered by column, then term, then bond.
func Triplets[T mat.Number](ctx context.Context, b *basis.Basis, terms []Term, options ...Options) (*mat.COO[T], error) {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	if err := Check(b, terms); err != nil {
		return nil, errors.Wrap(err, "")
	}

	chunks := parallel.Chunks(b.Ns(), opt.chunkSize)
	results := make([][]mat.VRowCol[T], len(chunks))
	throttler := util.NewSkipThrottler(10 * time.Second)
	var done atomic.Int64
	err := parallel.New(opt.workers).Run(ctx, len(chunks), func(ctx context.Context, c int) error {
		var err error
		results[c], err = chunk[T](b, terms, chunks[c][0], chunks[c][1])
		if err != nil {
			return errors.Wrap(err, "")
		}

		n := done.Add(1)
		if opt.verbose && (throttler.Ok() || int(n) == len(chunks)) {
			log.Printf("%s %d/%d", b.Sector(), n, len(chunks))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	coo := mat.COOZeros[T](b.Ns(), b.Ns())
	for _, r := range results {
		coo.Data = append(coo.Data, r...)
	}
	return coo, nil
}

func chunk[T mat.Number](b *basis.Basis, terms []Term, start, end int) ([]mat.VRowCol[T], error) {
	elems := make([]mat.VRowCol[T], 0)
	for col := start; col < end; col++ {
		for _, term := range terms {
			for _, bond := range term.Bonds {
				me, row, ok, err := b.Op(col, term.Op, bond.Sites)
				if err != nil {
					return nil, errors.Wrap(err, "")
				}
				if !ok {
					continue
				}
				v, err := mat.Convert[T](bond.J * me)
				if err != nil {
					return nil, errors.Wrap(err, fmt.Sprintf("%s %v state %d", term.Op, bond.Sites, b.State(col)))
				}
				elems = append(elems, mat.VRowCol[T]{V: v, Row: row, Col: col})
			}
		}
	}
	return elems, nil
}
