package mat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestDiskAdd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a          [][]complex64
		c          complex64
		b          [][]complex64
		z          *COO[complex64]
		numNonZero int
	}{
		{
			a: [][]complex64{
				{1, 0},
				{0, 2i},
			},
			c: 1i,
			b: [][]complex64{
				{1i, 0},
				{2, -5},
			},
			z: M([][]complex64{
				{0, 0},
				{2i, -3i},
			}),
			numNonZero: 2,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v", test.a), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			a := DiskM(filepath.Join(dir, "a.db"), test.a)
			defer a.Close()
			b := DiskM(filepath.Join(dir, "b.db"), test.b)
			defer b.Close()

			a.Add(test.c, b)
			if !a.COO().Equal(test.z) {
				t.Fatalf("%s, expected %s", a.COO(), test.z)
			}
			if a.NumNonZero() != test.numNonZero {
				t.Fatalf("%d, expected %d", a.NumNonZero(), test.numNonZero)
			}
		})
	}
}

func TestDiskKron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a [][]float64
		b *COO[float64]
		c *COO[float64]
	}{
		{
			a: [][]float64{
				{1, -4, 7},
				{-2, 0, 3},
			},
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
		{
			a: [][]float64{{1}},
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
		t.Run(fmt.Sprintf("%v", test.a), func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			a := DiskM(filepath.Join(dir, "a.db"), test.a)
			defer a.Close()
			a.Kron(test.b)
			if !a.COO().Equal(test.c) {
				t.Fatalf("%s, expected %s", a.COO(), test.c)
			}
		})
	}
}

func TestDiskStoreReopen(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)
	dbPath := filepath.Join(dir, "h.db")

	m, err := NewDiskMatrix[float64](dbPath, 3, 3)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	coo := COOZeros[float64](3, 3)
	coo.Data = append(coo.Data,
		VRowCol[float64]{V: 1, Row: 2, Col: 0},
		VRowCol[float64]{V: 0.5, Row: 0, Col: 1},
		VRowCol[float64]{V: 2, Row: 2, Col: 0},
		VRowCol[float64]{V: 1, Row: 1, Col: 1},
		VRowCol[float64]{V: -1, Row: 1, Col: 1},
	)
	if err := m.Store(context.Background(), coo); err != nil {
		t.Fatalf("%+v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("%+v", err)
	}

	reopened, err := OpenDiskMatrix[float64](dbPath)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer reopened.Remove()
	if reopened.Rows() != 3 || reopened.Cols() != 3 {
		t.Fatalf("%dx%d", reopened.Rows(), reopened.Cols())
	}
	expected := M([][]float64{
		{0, 0.5, 0},
		{0, 0, 0},
		{3, 0, 0},
	})
	if !reopened.COO().Equal(expected) {
		t.Fatalf("%s, expected %s", reopened.COO(), expected)
	}
	if v := reopened.At(2, 0); v != 3 {
		t.Fatalf("%f", v)
	}
	if v := reopened.At(1, 1); v != 0 {
		t.Fatalf("%f", v)
	}

	if err := reopened.Store(context.Background(), COOZeros[float64](2, 2)); err == nil {
		t.Fatalf("expected dimension error")
	}
}

func TestDiskComplexIntoReal(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)
	dbPath := filepath.Join(dir, "c.db")

	c := DiskM(dbPath, [][]complex128{{1i, 0}, {0, 1}})
	if err := c.Close(); err != nil {
		t.Fatalf("%+v", err)
	}

	r, err := OpenDiskMatrix[float64](dbPath)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer r.Close()
	if _, err := r.coo(); !errors.Is(err, ErrComplex) {
		t.Fatalf("%+v", err)
	}
}
