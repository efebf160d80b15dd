// Package basis builds symmetry-reduced bases of spin-1/2 chains and evaluates operator strings on them.
package basis

import (
	"context"
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
	"slices"
	"strings"

	"github.com/fumin/qspin/parallel"
	"github.com/pkg/errors"
)

const maxSites = 62

var (
	ErrSector = errors.New("invalid symmetry sector")
	ErrOpstr  = errors.New("invalid operator string")
	ErrSites  = errors.New("invalid sites")
)

// Map is a user supplied lattice symmetry.
// Perm[i] is the site that site i is sent to, and Flip additionally inverts every spin.
type Map struct {
	Perm []int
	Flip bool
	Q    int
}

// Options select a symmetry sector.
type Options struct {
	nup     int
	hasNup  bool
	zblock  int
	pblock  int
	pzblock int
	kblock  int
	a       int
	hasK    bool
	pauli   bool
	maps    []Map
	workers int
	chunk   int
}

// NewOptions returns options selecting the full Hilbert space.
func NewOptions() Options {
	opt := Options{}
	opt.chunk = 1 << 12
	return opt
}

// Nup fixes the number of up spins.
func (opt Options) Nup(n int) Options {
	opt.nup, opt.hasNup = n, true
	return opt
}

// ZBlock selects the spin inversion eigenvalue z = +1 or -1.
func (opt Options) ZBlock(z int) Options {
	opt.zblock = z
	return opt
}

// PBlock selects the reflection eigenvalue p = +1 or -1.
func (opt Options) PBlock(p int) Options {
	opt.pblock = p
	return opt
}

// PZBlock selects the eigenvalue of reflection combined with spin inversion.
func (opt Options) PZBlock(pz int) Options {
	opt.pzblock = pz
	return opt
}

// KBlock selects momentum k of translations by a sites, which requires periodic boundaries.
func (opt Options) KBlock(k, a int) Options {
	opt.kblock, opt.a, opt.hasK = k, a, true
	return opt
}

// Pauli uses Pauli matrices instead of spin-1/2 operators.
func (opt Options) Pauli(pauli bool) Options {
	opt.pauli = pauli
	return opt
}

// Map adds a symmetry that must commute with every other symmetry.
func (opt Options) Map(perm []int, flip bool, q int) Options {
	opt.maps = append(slices.Clone(opt.maps), Map{Perm: slices.Clone(perm), Flip: flip, Q: q})
	return opt
}

// Workers sets the number of goroutines enumerating states.
func (opt Options) Workers(n int) Options {
	opt.workers = n
	return opt
}

// Basis is the set of orbit representatives of a symmetry sector, sorted ascending.
type Basis struct {
	l     int
	opt   Options
	gens  []generator
	group []element

	states []uint64
	norms  []float64
}

func New(l int, options ...Options) (*Basis, error) {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	if l < 1 || l > maxSites {
		return nil, errors.Wrap(ErrSector, fmt.Sprintf("L=%d", l))
	}

	b := &Basis{l: l, opt: opt}
	var err error
	b.gens, err = generators(l, opt)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	b.group = group(l, b.gens)

	if err := b.enumerate(context.Background()); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return b, nil
}

func generators(l int, opt Options) ([]generator, error) {
	if opt.hasNup && (opt.nup < 0 || opt.nup > l) {
		return nil, errors.Wrap(ErrSector, fmt.Sprintf("Nup=%d L=%d", opt.nup, l))
	}
	for _, v := range []int{opt.zblock, opt.pblock, opt.pzblock} {
		if v != 0 && v != 1 && v != -1 {
			return nil, errors.Wrap(ErrSector, fmt.Sprintf("block %d", v))
		}
	}

	p, z, pz := opt.pblock, opt.zblock, opt.pzblock
	switch {
	case p != 0 && z != 0 && pz != 0:
		if pz != p*z {
			return nil, errors.Wrap(ErrSector, fmt.Sprintf("pblock %d zblock %d pzblock %d", p, z, pz))
		}
	case p != 0 && pz != 0:
		z = p * pz
	case z != 0 && pz != 0:
		p = z * pz
	}
	if p != 0 && z != 0 {
		pz = 0
	}

	gens := make([]generator, 0)
	if opt.hasK {
		if p != 0 || z != 0 || pz != 0 {
			return nil, errors.Wrap(ErrSector, "translation cannot be combined with reflection or spin inversion")
		}
		if opt.a < 1 || l%opt.a != 0 {
			return nil, errors.Wrap(ErrSector, fmt.Sprintf("a=%d L=%d", opt.a, l))
		}
		gens = append(gens, generator{name: "T", t: translation(l, opt.a), period: l / opt.a, q: opt.kblock})
	}
	if p != 0 {
		gens = append(gens, generator{name: "P", t: reflection(l), period: 2, q: (1 - p) / 2})
	}
	if z != 0 {
		gens = append(gens, generator{name: "Z", t: inversion(l), period: 2, q: (1 - z) / 2})
	}
	if pz != 0 {
		gens = append(gens, generator{name: "PZ", t: reflection(l).then(inversion(l)), period: 2, q: (1 - pz) / 2})
	}
	for i, m := range opt.maps {
		if !isPermutation(m.Perm, l) {
			return nil, errors.Wrap(ErrSector, fmt.Sprintf("map %d %v", i, m.Perm))
		}
		t := transform{perm: slices.Clone(m.Perm), flip: m.Flip}
		gens = append(gens, generator{name: fmt.Sprintf("map%d", i), t: t, period: t.order(), q: m.Q})
	}

	for i, g := range gens {
		if g.t.flip && opt.hasNup && 2*opt.nup != l {
			return nil, errors.Wrap(ErrSector, fmt.Sprintf("%s requires Nup=L/2, got Nup=%d L=%d", g.name, opt.nup, l))
		}
		for _, h := range gens[:i] {
			if g.t.equal(h.t) {
				return nil, errors.Wrap(ErrSector, fmt.Sprintf("duplicate %s %s", h.name, g.name))
			}
			if !g.t.then(h.t).equal(h.t.then(g.t)) {
				return nil, errors.Wrap(ErrSector, fmt.Sprintf("%s does not commute with %s", g.name, h.name))
			}
		}
	}
	return gens, nil
}

func isPermutation(perm []int, l int) bool {
	if len(perm) != l {
		return false
	}
	seen := make([]bool, l)
	for _, j := range perm {
		if j < 0 || j >= l || seen[j] {
			return false
		}
		seen[j] = true
	}
	return true
}

func (b *Basis) enumerate(ctx context.Context) error {
	var total int
	switch {
	case b.opt.hasNup:
		total = int(binomial(b.l, b.opt.nup))
	default:
		total = 1 << b.l
	}

	chunks := parallel.Chunks(total, b.opt.chunk)
	states := make([][]uint64, len(chunks))
	norms := make([][]float64, len(chunks))
	err := parallel.New(b.opt.workers).Run(ctx, len(chunks), func(ctx context.Context, c int) error {
		start, end := chunks[c][0], chunks[c][1]
		var s uint64
		switch {
		case b.opt.hasNup:
			s = unrank(uint64(start), b.l, b.opt.nup)
		default:
			s = uint64(start)
		}
		for i := start; i < end; i++ {
			if i > start {
				switch {
				case b.opt.hasNup:
					s = nextCombination(s)
				default:
					s++
				}
			}
			if n, ok := b.norm(s); ok {
				states[c] = append(states[c], s)
				norms[c] = append(norms[c], n)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "")
	}

	b.states = slices.Concat(states...)
	b.norms = slices.Concat(norms...)
	if b.states == nil {
		b.states, b.norms = []uint64{}, []float64{}
	}
	return nil
}

// norm returns |G| times the character sum over the stabilizer of s.
// ok is false if s is not the minimum of its orbit or the sum vanishes.
func (b *Basis) norm(s uint64) (float64, bool) {
	var sum complex128
	for _, g := range b.group {
		img := g.t.apply(s)
		if img < s {
			return 0, false
		}
		if img == s {
			sum += g.char
		}
	}
	n := float64(len(b.group)) * math.Round(real(sum))
	if n == 0 {
		return 0, false
	}
	return n, true
}

func (b *Basis) L() int         { return b.l }
func (b *Basis) Ns() int        { return len(b.states) }
func (b *Basis) Pauli() bool    { return b.opt.pauli }
func (b *Basis) GroupSize() int { return len(b.group) }

// Nup returns the number of up spins, if fixed.
func (b *Basis) Nup() (int, bool) { return b.opt.nup, b.opt.hasNup }

func (b *Basis) State(i int) uint64 { return b.states[i] }
func (b *Basis) Norm(i int) float64 { return b.norms[i] }
func (b *Basis) States() []uint64   { return slices.Clone(b.states) }

// Index returns the position of representative r.
func (b *Basis) Index(r uint64) (int, bool) {
	return slices.BinarySearch(b.states, r)
}

// Representative returns the orbit representative r of s, and the character phase of the symmetry h with s = h r.
func (b *Basis) Representative(s uint64) (uint64, complex128) {
	r, char := s, complex128(1)
	for _, g := range b.group {
		if img := g.t.apply(s); img < r {
			r, char = img, g.char
		}
	}
	return r, cmplx.Conj(char)
}

// Orbit returns the distinct images of s in ascending order.
func (b *Basis) Orbit(s uint64) []uint64 {
	orbit := make([]uint64, 0, len(b.group))
	for _, g := range b.group {
		orbit = append(orbit, g.t.apply(s))
	}
	slices.Sort(orbit)
	return slices.Compact(orbit)
}

// Expand maps a vector in this basis to the full 2^L dimensional space.
func (b *Basis) Expand(v []complex128) ([]complex128, error) {
	if len(v) != len(b.states) {
		return nil, errors.Errorf("wrong length %d, expected %d", len(v), len(b.states))
	}
	if b.l > 30 {
		return nil, errors.Errorf("L=%d too large to expand", b.l)
	}

	full := make([]complex128, 1<<b.l)
	for i, r := range b.states {
		c := v[i] / complex(math.Sqrt(b.norms[i]), 0)
		for _, g := range b.group {
			full[g.t.apply(r)] += cmplx.Conj(g.char) * c
		}
	}
	return full, nil
}

// Sector describes the symmetry sector.
func (b *Basis) Sector() string {
	parts := []string{fmt.Sprintf("L=%d", b.l)}
	if b.opt.hasNup {
		parts = append(parts, fmt.Sprintf("Nup=%d", b.opt.nup))
	}
	for _, g := range b.gens {
		parts = append(parts, g.String())
	}
	if b.opt.pauli {
		parts = append(parts, "pauli")
	}
	return strings.Join(parts, " ")
}

func (b *Basis) String() string {
	lines := []string{fmt.Sprintf("%s Ns=%d", b.Sector(), len(b.states))}
	for i, s := range b.states {
		lines = append(lines, fmt.Sprintf("%d |%0*b> %g", i, b.l, s, b.norms[i]))
	}
	return strings.Join(lines, "\n")
}

// binomial returns n choose k.
func binomial(n, k int) uint64 {
	if k < 0 || k > n {
		return 0
	}
	k = min(k, n-k)
	c := uint64(1)
	for i := range k {
		hi, lo := bits.Mul64(c, uint64(n-i))
		c, _ = bits.Div64(hi, lo, uint64(i+1))
	}
	return c
}

// unrank returns the state with k up spins at position r in ascending order.
func unrank(r uint64, l, k int) uint64 {
	var s uint64
	c := l - 1
	for j := k; j >= 1; j-- {
		for binomial(c, j) > r {
			c--
		}
		s |= 1 << c
		r -= binomial(c, j)
		c--
	}
	return s
}

// nextCombination returns the next larger integer with the same number of set bits.
func nextCombination(v uint64) uint64 {
	t := v | (v - 1)
	return (t + 1) | (((^t & -^t) - 1) >> (bits.TrailingZeros64(v) + 1))
}
