package mat

import (
	"fmt"
	"iter"
	"slices"
	"sort"
)

// CSR is a compressed sparse row matrix.
// Column indices within a row are strictly increasing and no stored value is zero.
type CSR[T Number] struct {
	rows    int
	cols    int
	indptr  []int
	indices []int
	data    []T
}

func CSRZeros[T Number](rows, cols int) *CSR[T] {
	return &CSR[T]{rows: rows, cols: cols, indptr: make([]int, rows+1)}
}

func (a *CSR[T]) Rows() int       { return a.rows }
func (a *CSR[T]) Cols() int       { return a.cols }
func (a *CSR[T]) NumNonZero() int { return len(a.data) }

func (a *CSR[T]) At(i, j int) T {
	if i < 0 || i >= a.rows || j < 0 || j >= a.cols {
		panic(fmt.Sprintf("index out of range %d %d %dx%d", i, j, a.rows, a.cols))
	}
	start, end := a.indptr[i], a.indptr[i+1]
	pos := sort.SearchInts(a.indices[start:end], j) + start
	if pos < end && a.indices[pos] == j {
		return a.data[pos]
	}
	return 0
}

// All iterates over the stored elements in row-major order.
func (a *CSR[T]) All() iter.Seq[VRowCol[T]] {
	return func(yield func(VRowCol[T]) bool) {
		for i := range a.rows {
			for k := a.indptr[i]; k < a.indptr[i+1]; k++ {
				if !yield(VRowCol[T]{V: a.data[k], Row: i, Col: a.indices[k]}) {
					return
				}
			}
		}
	}
}

func (a *CSR[T]) COO() *COO[T] {
	m := COOZeros[T](a.rows, a.cols)
	m.Data = slices.Grow(m.Data, len(a.data))
	for v := range a.All() {
		m.Data = append(m.Data, v)
	}
	return m
}

func (a *CSR[T]) Dense() [][]T {
	return a.COO().Dense()
}

func (a *CSR[T]) Equal(b *CSR[T]) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	return slices.Equal(a.indptr, b.indptr) && slices.Equal(a.indices, b.indices) && slices.Equal(a.data, b.data)
}

// Dot returns the matrix-vector product a x.
func (a *CSR[T]) Dot(x []T) []T {
	y := make([]T, a.rows)
	a.DotAdd(y, 1, x)
	return y
}

// DotAdd computes y += alpha * a x.
func (a *CSR[T]) DotAdd(y []T, alpha T, x []T) {
	if len(x) != a.cols || len(y) != a.rows {
		panic(fmt.Sprintf("wrong dimensions %dx%d x %d y %d", a.rows, a.cols, len(x), len(y)))
	}
	for i := range a.rows {
		var s T
		for k := a.indptr[i]; k < a.indptr[i+1]; k++ {
			s += a.data[k] * x[a.indices[k]]
		}
		y[i] += alpha * s
	}
}

// Add returns a + c*b.
func (a *CSR[T]) Add(c T, b *CSR[T]) *CSR[T] {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, b.rows, b.cols))
	}
	m := a.COO()
	for v := range b.All() {
		m.Data = append(m.Data, VRowCol[T]{V: c * v.V, Row: v.Row, Col: v.Col})
	}
	return m.CSR()
}

// Scale returns c*a.
func (a *CSR[T]) Scale(c T) *CSR[T] {
	return CSRZeros[T](a.rows, a.cols).Add(c, a)
}

// H returns the conjugate transpose of a.
func (a *CSR[T]) H() *CSR[T] {
	m := COOZeros[T](a.cols, a.rows)
	for v := range a.All() {
		m.Data = append(m.Data, VRowCol[T]{V: Conj(v.V), Row: v.Col, Col: v.Row})
	}
	return m.CSR()
}

func (a *CSR[T]) String() string {
	return a.COO().String()
}
