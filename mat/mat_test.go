package mat

import (
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"testing"

	"github.com/pkg/errors"
)

func TestSlice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m *COO[float64]
		y [2]int
		x [2]int
		s *COO[float64]
	}{
		{
			m: M([][]float64{
				{0, 1, 2, 3, 4},
				{5, 6, 7, 8, 9},
				{10, 11, 12, 13, 14},
				{15, 16, 17, 18, 19},
				{20, 21, 22, 23, 24},
				{25, 26, 27, 28, 29},
			}),
			y: [2]int{-5, -2},
			x: [2]int{1, 3},
			s: M([][]float64{
				{6, 7},
				{11, 12},
				{16, 17},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.m), func(t *testing.T) {
			t.Parallel()
			s := test.m.Slice(test.y, test.x)
			if !s.Equal(test.s) {
				t.Fatalf("%s, expected %s", s, test.s)
			}
		})
	}
}

func TestAdd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a          *COO[complex64]
		c          complex64
		b          *COO[complex64]
		z          *COO[complex64]
		numNonZero int
	}{
		{
			a: M([][]complex64{
				{1, 0},
				{0, 2i},
			}),
			c: 1i,
			b: M([][]complex64{
				{1i, 0},
				{2, -5},
			}),
			z: M([][]complex64{
				{0, 0},
				{2i, -3i},
			}),
			numNonZero: 2,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Add(test.c, test.b)
			if !test.a.Equal(test.z) {
				t.Fatalf("%s, expected %s", test.a, test.z)
			}
			if len(test.a.Data) != test.numNonZero {
				t.Fatalf("%d, expected %d", len(test.a.Data), test.numNonZero)
			}
		})
	}
}

func TestKron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a *COO[float64]
		b *COO[float64]
		c *COO[float64]
	}{
		{
			a: M([][]float64{
				{1, -4, 7},
				{-2, 0, 3},
			}),
			b: M([][]float64{
				{8, -9, -6, 5},
				{1, -3, 0, 7},
				{2, 8, -8, -3},
				{1, 2, -5, -1},
			}),
			c: M([][]float64{
				{8, -9, -6, 5, -32, 36, 24, -20, 56, -63, -42, 35},
				{1, -3, 0, 7, -4, 12, 0, -28, 7, -21, 0, 49},
				{2, 8, -8, -3, -8, -32, 32, 12, 14, 56, -56, -21},
				{1, 2, -5, -1, -4, -8, 20, 4, 7, 14, -35, -7},
				{-16, 18, 12, -10, 0, 0, 0, 0, 24, -27, -18, 15},
				{-2, 6, 0, -14, 0, 0, 0, 0, 3, -9, 0, 21},
				{-4, -16, 16, 6, 0, 0, 0, 0, 6, 24, -24, -9},
				{-2, -4, 10, 2, 0, 0, 0, 0, 3, 6, -15, -3},
			}),
		},
		// Scalar kronecker.
		{
			a: M([][]float64{{1}}),
			b: M([][]float64{
				{1, 2},
				{3, 4},
			}),
			c: M([][]float64{
				{1, 2},
				{3, 4},
			}),
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.a), func(t *testing.T) {
			t.Parallel()
			test.a.Kron(test.b)
			if !test.a.Equal(test.c) {
				t.Fatalf("%s, expected %s", test.a, test.c)
			}
		})
	}
}

func TestSumDuplicates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		data []VRowCol[float64]
		csr  [][]float64
		nnz  int
	}{
		{
			data: []VRowCol[float64]{
				{V: 1, Row: 1, Col: 0},
				{V: 2, Row: 0, Col: 1},
				{V: -1, Row: 1, Col: 0},
				{V: 3, Row: 0, Col: 1},
				{V: 4, Row: 1, Col: 1},
			},
			csr: [][]float64{
				{0, 5},
				{0, 4},
			},
			nnz: 2,
		},
		{
			data: []VRowCol[float64]{},
			csr: [][]float64{
				{0, 0},
				{0, 0},
			},
			nnz: 0,
		},
	}
	for i, test := range tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			t.Parallel()
			coo := COOZeros[float64](2, 2)
			coo.Data = append(coo.Data, test.data...)
			before := len(coo.Data)

			csr := coo.CSR()
			if len(coo.Data) != before {
				t.Fatalf("CSR modified its receiver %d %d", len(coo.Data), before)
			}
			if csr.NumNonZero() != test.nnz {
				t.Fatalf("%d, expected %d", csr.NumNonZero(), test.nnz)
			}
			if !csr.Equal(M(test.csr).CSR()) {
				t.Fatalf("%s, expected %v", csr, test.csr)
			}

			coo.SumDuplicates()
			if len(coo.Data) != test.nnz {
				t.Fatalf("%d, expected %d", len(coo.Data), test.nnz)
			}
		})
	}
}

func TestCSR(t *testing.T) {
	t.Parallel()
	a := M([][]complex128{
		{1, 2i, 0},
		{0, 0, 3},
	}).CSR()

	if a.At(0, 1) != 2i || a.At(1, 0) != 0 || a.At(1, 2) != 3 {
		t.Fatalf("%s", a)
	}

	y := a.Dot([]complex128{1, 1i, 2})
	if y[0] != -1 || y[1] != 6 {
		t.Fatalf("%v", y)
	}

	y = []complex128{1, 1}
	a.DotAdd(y, 2, []complex128{1, 0, 1})
	if y[0] != 3 || y[1] != 7 {
		t.Fatalf("%v", y)
	}

	h := a.H()
	expected := M([][]complex128{
		{1, 0},
		{-2i, 0},
		{0, 3},
	}).CSR()
	if !h.Equal(expected) {
		t.Fatalf("%s, expected %s", h, expected)
	}

	sum := a.Add(-1, a)
	if sum.NumNonZero() != 0 {
		t.Fatalf("%s", sum)
	}
	if s := a.Scale(2); s.At(1, 2) != 6 {
		t.Fatalf("%s", s)
	}

	var visited []VRowCol[complex128]
	for v := range a.All() {
		visited = append(visited, v)
	}
	if len(visited) != 3 || visited[0].Col != 0 || visited[2].Row != 1 {
		t.Fatalf("%#v", visited)
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()
	if _, err := Convert[float64](1 + 1i); !errors.Is(err, ErrComplex) {
		t.Fatalf("%+v", err)
	}
	if _, err := Convert[float32](1i); !errors.Is(err, ErrComplex) {
		t.Fatalf("%+v", err)
	}
	if v, err := Convert[float64](-2); err != nil || v != -2 {
		t.Fatalf("%f %+v", v, err)
	}
	if v, err := Convert[complex64](1 + 1i); err != nil || v != 1+1i {
		t.Fatalf("%v %+v", v, err)
	}
	if !IsComplex[complex64]() || IsComplex[float32]() {
		t.Fatalf("IsComplex")
	}
	if Conj[complex128](1+2i) != 1-2i || Conj[float64](3) != 3 {
		t.Fatalf("Conj")
	}
}

func TestWriteReadCOO(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	m := M([][]complex128{
		{0.5, 0, -1i},
		{0, 0, 0},
		{1i, 2 + 3i, 0},
	})
	if err := m.WriteCOO(dir); err != nil {
		t.Fatalf("%+v", err)
	}

	read, err := ReadCOO[complex128](dir)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !read.Equal(m) {
		t.Fatalf("%s, expected %s", read, m)
	}

	if _, err := ReadCOO[float64](dir); !errors.Is(err, ErrComplex) {
		t.Fatalf("%+v", err)
	}
}

func TestEigenSym(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m      *CSR[complex128]
		values []float64
	}{
		{
			m: M([][]complex128{
				{2, 1},
				{1, 2},
			}).CSR(),
			values: []float64{1, 3},
		},
		// Pauli y.
		{
			m: M([][]complex128{
				{0, -1i},
				{1i, 0},
			}).CSR(),
			values: []float64{-1, 1},
		},
		{
			m: M([][]complex128{
				{1, 1i, 0},
				{-1i, 1, 0},
				{0, 0, 5},
			}).CSR(),
			values: []float64{0, 2, 5},
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.m), func(t *testing.T) {
			t.Parallel()
			vvs, err := EigenSym(test.m, true)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if len(vvs) != len(test.values) {
				t.Fatalf("%d, expected %d", len(vvs), len(test.values))
			}
			for i, vv := range vvs {
				if math.Abs(real(vv.Val)-test.values[i]) > 1e-10 {
					t.Fatalf("%d %v, expected %f", i, vv.Val, test.values[i])
				}
				if n := Norm(vv.Vec); math.Abs(n-1) > 1e-10 {
					t.Fatalf("%d norm %f", i, n)
				}
				mv := test.m.Dot(vv.Vec)
				for j := range mv {
					if cmplx.Abs(mv[j]-vv.Val*vv.Vec[j]) > 1e-10 {
						t.Fatalf("%d %d %v %v", i, j, mv, vv.Vec)
					}
				}
			}
			for i := range vvs {
				for j := i + 1; j < len(vvs); j++ {
					if d := cmplx.Abs(Vdot(vvs[i].Vec, vvs[j].Vec)); d > 1e-10 {
						t.Fatalf("%d %d overlap %f", i, j, d)
					}
				}
			}

			values, err := EigenSym(test.m, false)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			for i, vv := range values {
				if math.Abs(real(vv.Val)-test.values[i]) > 1e-10 {
					t.Fatalf("%d %v, expected %f", i, vv.Val, test.values[i])
				}
			}
		})
	}
}

func TestGershgorin(t *testing.T) {
	t.Parallel()
	m := M([][]float64{
		{1, -2, 0},
		{-2, 0, 1},
		{0, 1, 4},
	}).CSR()
	lo, hi := Gershgorin(m)
	if lo != -3 || hi != 5 {
		t.Fatalf("%f %f", lo, hi)
	}

	vvs, err := EigenSym(m, false)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	for _, vv := range vvs {
		if real(vv.Val) < lo || real(vv.Val) > hi {
			t.Fatalf("%v not in [%f, %f]", vv.Val, lo, hi)
		}
	}

	if lo, hi := Gershgorin(CSRZeros[float64](0, 0)); lo != 0 || hi != 0 {
		t.Fatalf("%f %f", lo, hi)
	}
}
