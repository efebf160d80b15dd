package mat

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	FnameShape = "shape.csv"
	FnameCOO   = "coo.csv"
)

type Matrix[T Number] interface {
	Zeros(int, int)
	Rows() int
	Cols() int

	Add(T, Matrix[T])
	Kron(*COO[T])
	COO() *COO[T]

	WriteCOO(string) error
}

// VRowCol is a single matrix element.
type VRowCol[T Number] struct {
	V   T
	Row int
	Col int
}

// COO is a coordinate list matrix.
// Data may hold duplicate coordinates until SumDuplicates is called.
type COO[T Number] struct {
	rows int
	cols int
	Data []VRowCol[T]

	m map[[2]int]T
}

func M[T Number](dense [][]T) *COO[T] {
	m := &COO[T]{rows: len(dense), cols: len(dense[0]), Data: make([]VRowCol[T], 0), m: make(map[[2]int]T)}
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			m.Data = append(m.Data, VRowCol[T]{V: v, Row: i, Col: j})
		}
	}
	return m
}

func COOZeros[T Number](rows, cols int) *COO[T] {
	return &COO[T]{rows: rows, cols: cols, Data: make([]VRowCol[T], 0), m: make(map[[2]int]T)}
}

func COOIdentity[T Number](rows int) *COO[T] {
	m := COOZeros[T](rows, rows)
	for i := 0; i < rows; i++ {
		m.Data = append(m.Data, VRowCol[T]{V: 1, Row: i, Col: i})
	}
	return m
}

func (m *COO[T]) Rows() int { return m.rows }
func (m *COO[T]) Cols() int { return m.cols }

func (m *COO[T]) Zeros(rows, cols int) {
	m.rows, m.cols = rows, cols
	m.Data = m.Data[:0]
}

func (m *COO[T]) Scalar(v T) {
	m.rows, m.cols = 1, 1
	m.Data = m.Data[:0]
	m.Data = append(m.Data, VRowCol[T]{V: v, Row: 0, Col: 0})
}

func (a *COO[T]) Equal(b *COO[T]) bool {
	if a.rows != b.rows {
		return false
	}
	if a.cols != b.cols {
		return false
	}
	return slices.Equal(a.Data, b.Data)
}

func (m *COO[T]) Slice(yBoundN, xBoundN [2]int) *COO[T] {
	yBound, xBound := yBoundN, xBoundN
	for i := 0; i < 2; i++ {
		if yBound[i] < 0 {
			yBound[i] += m.rows
		}
		if xBound[i] < 0 {
			xBound[i] += m.cols
		}
	}

	s := COOZeros[T](yBound[1]-yBound[0], xBound[1]-xBound[0])
	for _, v := range m.Data {
		if v.Row < yBound[0] {
			continue
		}
		if v.Row >= yBound[1] {
			break
		}
		if v.Col < xBound[0] || v.Col >= xBound[1] {
			continue
		}
		s.Data = append(s.Data, VRowCol[T]{V: v.V, Row: v.Row - yBound[0], Col: v.Col - xBound[0]})
	}
	return s
}

// Add sets a to a + c*b.
// Both a and b must be free of duplicate coordinates.
func (a *COO[T]) Add(c T, bMatrix Matrix[T]) {
	b := bMatrix.COO()
	if b.rows != a.rows || b.cols != a.cols {
		panic(fmt.Sprintf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, b.rows, b.cols))
	}
	if b.m == nil {
		b.m = make(map[[2]int]T)
	}
	clear(b.m)
	for _, v := range b.Data {
		b.m[[2]int{v.Row, v.Col}] = v.V
	}

	for i, av := range a.Data {
		byx := [2]int{av.Row, av.Col}
		bv := b.m[byx]
		delete(b.m, byx)

		a.Data[i].V = av.V + c*bv
	}

	a.Data = slices.DeleteFunc(a.Data, func(v VRowCol[T]) bool {
		return v.V == 0
	})
	for yx, bv := range b.m {
		if c*bv == 0 {
			continue
		}
		a.Data = append(a.Data, VRowCol[T]{V: c * bv, Row: yx[0], Col: yx[1]})
	}
	slices.SortFunc(a.Data, rowMajor)
	clear(b.m)
}

func (a *COO[T]) Kron(b *COO[T]) {
	rows := a.rows * b.rows
	cols := a.cols * b.cols
	a.rows, a.cols = rows, cols

	prevElemNum := len(a.Data)
	for i := prevElemNum - 1; i >= 0; i-- {
		av := a.Data[i]
		a.Data[i].V = 0
		for _, bv := range b.Data {
			ky := av.Row*b.rows + bv.Row
			kx := av.Col*b.cols + bv.Col
			a.Data = append(a.Data, VRowCol[T]{V: av.V * bv.V, Row: ky, Col: kx})
		}
	}

	a.Data = slices.DeleteFunc(a.Data, func(v VRowCol[T]) bool {
		return v.V == 0
	})
	slices.SortFunc(a.Data, rowMajor)
}

// SumDuplicates merges elements sharing a coordinate and drops exact zeros.
// Duplicates are summed in the order they appear in Data, so the result depends only on Data.
func (m *COO[T]) SumDuplicates() {
	slices.SortStableFunc(m.Data, rowMajor)

	merged := m.Data[:0]
	for _, v := range m.Data {
		last := len(merged) - 1
		if last >= 0 && merged[last].Row == v.Row && merged[last].Col == v.Col {
			merged[last].V += v.V
			continue
		}
		merged = append(merged, v)
	}
	m.Data = slices.DeleteFunc(merged, func(v VRowCol[T]) bool {
		return v.V == 0
	})
}

// CSR returns the compressed sparse row form of m.
// m itself is left untouched.
func (m *COO[T]) CSR() *CSR[T] {
	c := &COO[T]{rows: m.rows, cols: m.cols, Data: slices.Clone(m.Data)}
	c.SumDuplicates()

	a := &CSR[T]{rows: m.rows, cols: m.cols, indptr: make([]int, m.rows+1), indices: make([]int, len(c.Data)), data: make([]T, len(c.Data))}
	for k, v := range c.Data {
		if v.Row < 0 || v.Row >= m.rows || v.Col < 0 || v.Col >= m.cols {
			panic(fmt.Sprintf("%#v %d %d", v, m.rows, m.cols))
		}
		a.indptr[v.Row+1]++
		a.indices[k] = v.Col
		a.data[k] = v.V
	}
	for i := 0; i < m.rows; i++ {
		a.indptr[i+1] += a.indptr[i]
	}
	return a
}

func (m *COO[T]) COO() *COO[T] {
	return m
}

func (m *COO[T]) Dense() [][]T {
	dense := make([][]T, m.rows)
	for i := range dense {
		dense[i] = make([]T, m.cols)
	}

	for _, v := range m.Data {
		dense[v.Row][v.Col] += v.V
	}

	return dense
}

func (m *COO[T]) WriteCOO(dir string) error {
	shapePath := filepath.Join(dir, FnameShape)
	if err := os.WriteFile(shapePath, []byte(fmt.Sprintf("%d,%d", m.rows, m.cols)), 0644); err != nil {
		return errors.Wrap(err, "")
	}

	cooPath := filepath.Join(dir, FnameCOO)
	cooF, err := os.Create(cooPath)
	if err != nil {
		return errors.Wrap(err, "")
	}

	w := csv.NewWriter(cooF)
	for _, v := range m.Data {
		if err1 := w.Write([]string{FormatNumpy(Complex(v.V)), strconv.Itoa(v.Row), strconv.Itoa(v.Col)}); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
		}
	}
	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}

	if err1 := cooF.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

// COOReader streams the elements written by WriteCOO.
// An empty value or row field repeats the previous one.
type COOReader[T Number] struct {
	f *os.File
	r *csv.Reader
	i int

	prev VRowCol[T]
}

func NewCOOReader[T Number](dir string) (*COOReader[T], error) {
	r := &COOReader[T]{i: -1}

	cooPath := filepath.Join(dir, FnameCOO)
	var err error
	r.f, err = os.Open(cooPath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	r.r = csv.NewReader(r.f)
	return r, nil
}

func (r *COOReader[T]) Close() error {
	return r.f.Close()
}

func (r *COOReader[T]) Read() (VRowCol[T], error) {
	r.i++
	record, err := r.r.Read()
	if err == io.EOF {
		return VRowCol[T]{}, io.EOF
	}
	if err != nil {
		return VRowCol[T]{}, errors.Wrap(err, fmt.Sprintf("%d", r.i))
	}
	if len(record) != 3 {
		return VRowCol[T]{}, errors.Errorf("%d %#v", r.i, record)
	}

	var vrc VRowCol[T]
	switch {
	case record[0] == "":
		vrc.V = r.prev.V
	default:
		s := strings.ReplaceAll(record[0], "j", "i")
		c, err := strconv.ParseComplex(s, 128)
		if err != nil {
			return VRowCol[T]{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
		vrc.V, err = Convert[T](c)
		if err != nil {
			return VRowCol[T]{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
	}

	switch {
	case record[1] == "":
		vrc.Row = r.prev.Row
	default:
		vrc.Row, err = strconv.Atoi(record[1])
		if err != nil {
			return VRowCol[T]{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
	}

	vrc.Col, err = strconv.Atoi(record[2])
	if err != nil {
		return VRowCol[T]{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
	}

	r.prev = vrc
	return vrc, nil
}

func ReadCOO[T Number](dir string) (*COO[T], error) {
	rows, cols, err := readShape(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	m := COOZeros[T](rows, cols)

	r, err := NewCOOReader[T](dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer r.Close()
	for {
		v, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "")
		}

		m.Data = append(m.Data, v)
	}

	return m, nil
}

func readShape(dir string) (int, int, error) {
	f, err := os.Open(filepath.Join(dir, FnameShape))
	if err != nil {
		return -1, -1, errors.Wrap(err, "")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return -1, -1, errors.Wrap(err, "")
	}
	if len(records) == 0 {
		return -1, -1, errors.Errorf("empty")
	}
	row := records[0]

	if len(row) != 2 {
		return -1, -1, errors.Errorf("%#v", row)
	}
	i, err := strconv.Atoi(row[0])
	if err != nil {
		return -1, -1, errors.Wrap(err, fmt.Sprintf("%#v", row))
	}
	j, err := strconv.Atoi(row[1])
	if err != nil {
		return -1, -1, errors.Wrap(err, fmt.Sprintf("%#v", row))
	}

	return i, j, nil
}

func (m *COO[T]) String() string {
	dense := m.Dense()

	lines := []string{}
	for _, row := range dense {
		cs := []string{}
		for _, v := range row {
			c := Complex(v)
			switch {
			case imag(c) == 0:
				cs = append(cs, format(real(c)))
			case real(c) == 0:
				cs = append(cs, format(imag(c))+"i")
			default:
				cs = append(cs, format(real(c))+"+"+format(imag(c))+"i")
			}
		}
		l := strings.Join(cs, "\t")
		lines = append(lines, l)
	}

	return strings.Join(lines, "\n")
}

// ValVec is an eigenvalue with its eigenvector.
type ValVec struct {
	Val complex128
	Vec []complex128
}

func rowMajor[T Number](a, b VRowCol[T]) int {
	if c := cmp.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	return cmp.Compare(a.Col, b.Col)
}

func format(v float64) string {
	// If v is 0 or -0, return "0" immediately to avoid returning "-0".
	if v == 0 {
		return " 0"
	}

	s := strconv.FormatFloat(v, 'g', 6, 64)

	// Add a space before non-negative numbers to align with other negative numbers in the same column.
	if v >= 0 {
		s = " " + s
	}

	return s
}

func FormatNumpy(v complex128) string {
	switch {
	case imag(v) == 0:
		return strconv.FormatFloat(real(v), 'g', -1, 64)
	default:
		s := strconv.FormatComplex(v, 'g', -1, 128)
		s = strings.ReplaceAll(s, "i", "j")
		return s
	}
}
