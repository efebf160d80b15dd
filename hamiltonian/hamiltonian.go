// Package hamiltonian holds time-dependent Hamiltonians H(t) = H0 + sum_i f_i(t) H_i on a symmetry-reduced basis.
package hamiltonian

import (
	"context"
	"fmt"
	"slices"

	"github.com/fumin/qspin/basis"
	"github.com/fumin/qspin/mat"
	"github.com/fumin/qspin/operator"
	"github.com/pkg/errors"
)

var ErrDimensionMismatch = errors.New("dimension mismatch")

// Drive is a real function of time with fixed extra arguments.
// Parts driven by the same *Drive are merged.
type Drive struct {
	Func func(t float64, args ...float64) float64
	Args []float64
}

func NewDrive(f func(t float64, args ...float64) float64, args ...float64) *Drive {
	return &Drive{Func: f, Args: args}
}

func (d *Drive) At(t float64) float64 {
	return d.Func(t, d.Args...)
}

// Dynamic is an operator string on a list of bonds, multiplied by a drive.
type Dynamic struct {
	Op    string
	Bonds []operator.Bond
	Drive *Drive
}

// Part is a matrix multiplied by a drive.
type Part[T mat.Number] struct {
	Drive *Drive
	M     *mat.CSR[T]
}

type Hamiltonian[T mat.Number] struct {
	dim     int
	static  *mat.CSR[T]
	dynamic []Part[T]
}

// New assembles the static terms into a single matrix, and every dynamic entry into its own matrix.
func New[T mat.Number](ctx context.Context, b *basis.Basis, static []operator.Term, dynamic []Dynamic, options ...operator.Options) (*Hamiltonian[T], error) {
	terms := make([]operator.Term, 0, len(dynamic))
	for _, d := range dynamic {
		if d.Drive == nil || d.Drive.Func == nil {
			return nil, errors.Errorf("nil drive %s", d.Op)
		}
		terms = append(terms, operator.Term{Op: d.Op, Bonds: d.Bonds})
	}
	if err := operator.Check(b, slices.Concat(static, terms)); err != nil {
		return nil, errors.Wrap(err, "")
	}

	h := &Hamiltonian[T]{dim: b.Ns()}
	var err error
	h.static, err = operator.Assemble[T](ctx, b, static, options...)
	if err != nil {
		return nil, errors.Wrap(err, "static")
	}
	h.dynamic = make([]Part[T], 0, len(dynamic))
	for i, d := range dynamic {
		m, err := operator.Assemble[T](ctx, b, terms[i:i+1], options...)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("dynamic %d", i))
		}
		h.dynamic = append(h.dynamic, Part[T]{Drive: d.Drive, M: m})
	}
	h.SumDuplicates()
	return h, nil
}

// FromMatrices builds a Hamiltonian from already assembled square matrices of equal dimension.
func FromMatrices[T mat.Number](static *mat.CSR[T], dynamic []Part[T]) (*Hamiltonian[T], error) {
	if static.Rows() != static.Cols() {
		return nil, errors.Wrap(ErrDimensionMismatch, fmt.Sprintf("static %dx%d", static.Rows(), static.Cols()))
	}
	h := &Hamiltonian[T]{dim: static.Rows(), static: static, dynamic: make([]Part[T], 0, len(dynamic))}
	for i, p := range dynamic {
		if p.M.Rows() != h.dim || p.M.Cols() != h.dim {
			return nil, errors.Wrap(ErrDimensionMismatch, fmt.Sprintf("dynamic %d %dx%d", i, p.M.Rows(), p.M.Cols()))
		}
		if p.Drive == nil {
			return nil, errors.Errorf("nil drive %d", i)
		}
		h.dynamic = append(h.dynamic, p)
	}
	h.SumDuplicates()
	return h, nil
}

func (h *Hamiltonian[T]) Dim() int            { return h.dim }
func (h *Hamiltonian[T]) Static() *mat.CSR[T] { return h.static }
func (h *Hamiltonian[T]) Dynamic() []Part[T]  { return slices.Clone(h.dynamic) }

// SumDuplicates merges dynamic parts sharing a drive, keeping the order of first appearance.
func (h *Hamiltonian[T]) SumDuplicates() {
	index := make(map[*Drive]int, len(h.dynamic))
	merged := make([]Part[T], 0, len(h.dynamic))
	for _, p := range h.dynamic {
		i, ok := index[p.Drive]
		if !ok {
			index[p.Drive] = len(merged)
			merged = append(merged, p)
			continue
		}
		merged[i].M = merged[i].M.Add(1, p.M)
	}
	h.dynamic = merged
}

// Materialize returns the matrix H(t).
func (h *Hamiltonian[T]) Materialize(t float64) *mat.CSR[T] {
	coo := h.static.COO()
	for _, p := range h.dynamic {
		f := mat.FromFloat[T](p.Drive.At(t))
		for v := range p.M.All() {
			coo.Data = append(coo.Data, mat.VRowCol[T]{V: f * v.V, Row: v.Row, Col: v.Col})
		}
	}
	return coo.CSR()
}

// Dot returns H(t) v.
func (h *Hamiltonian[T]) Dot(v []T, t float64) ([]T, error) {
	if len(v) != h.dim {
		return nil, errors.Wrap(ErrDimensionMismatch, fmt.Sprintf("%d %d", len(v), h.dim))
	}
	y := h.static.Dot(v)
	for _, p := range h.dynamic {
		p.M.DotAdd(y, mat.FromFloat[T](p.Drive.At(t)), v)
	}
	return y, nil
}

// MatrixElement returns vl^H H(t) vr.
func (h *Hamiltonian[T]) MatrixElement(vl, vr []T, t float64) (T, error) {
	if len(vl) != h.dim {
		return 0, errors.Wrap(ErrDimensionMismatch, fmt.Sprintf("%d %d", len(vl), h.dim))
	}
	hv, err := h.Dot(vr, t)
	if err != nil {
		return 0, errors.Wrap(err, "")
	}
	return mat.Vdot(vl, hv), nil
}

// Add returns h + other.
func (h *Hamiltonian[T]) Add(other *Hamiltonian[T]) (*Hamiltonian[T], error) {
	return h.combine(1, other)
}

// Sub returns h - other.
func (h *Hamiltonian[T]) Sub(other *Hamiltonian[T]) (*Hamiltonian[T], error) {
	return h.combine(-1, other)
}

func (h *Hamiltonian[T]) combine(c T, other *Hamiltonian[T]) (*Hamiltonian[T], error) {
	if h.dim != other.dim {
		return nil, errors.Wrap(ErrDimensionMismatch, fmt.Sprintf("%d %d", h.dim, other.dim))
	}
	z := &Hamiltonian[T]{dim: h.dim, static: h.static.Add(c, other.static)}
	z.dynamic = make([]Part[T], 0, len(h.dynamic)+len(other.dynamic))
	z.dynamic = append(z.dynamic, h.dynamic...)
	for _, p := range other.dynamic {
		z.dynamic = append(z.dynamic, Part[T]{Drive: p.Drive, M: p.M.Scale(c)})
	}
	z.SumDuplicates()
	return z, nil
}

func (h *Hamiltonian[T]) Dense(t float64) [][]T {
	return h.Materialize(t).Dense()
}

// Bounds returns an interval containing the spectrum of H(t).
func (h *Hamiltonian[T]) Bounds(t float64) (float64, float64) {
	return mat.Gershgorin(h.Materialize(t))
}

func (h *Hamiltonian[T]) String() string {
	return fmt.Sprintf("dim %d static %d nonzeros %d dynamic parts", h.dim, h.static.NumNonZero(), len(h.dynamic))
}
