package mat

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableMatrix = "m"
	tableShape  = "shape"
)

// DiskMatrix is a sparse matrix kept in a sqlite database.
// Elements written to the same coordinate are summed by the database.
type DiskMatrix[T Number] struct {
	Path string
	rows int
	cols int

	db *sql.DB
}

func DiskM[T Number](dbPath string, dense [][]T) *DiskMatrix[T] {
	m, err := NewDiskMatrix[T](dbPath, len(dense), len(dense[0]))
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	if err := m.Store(context.Background(), M(dense)); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return m
}

// NewDiskMatrix creates an empty rows x cols matrix at dbPath, replacing any matrix stored there.
func NewDiskMatrix[T Number](dbPath string, rows, cols int) (*DiskMatrix[T], error) {
	m := &DiskMatrix[T]{Path: dbPath, rows: rows, cols: cols}
	var err error
	m.db, err = newDB(m.Path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(m.db); err != nil {
		m.db.Close()
		return nil, errors.Wrap(err, "")
	}
	if err := m.setShape(rows, cols); err != nil {
		m.db.Close()
		return nil, errors.Wrap(err, "")
	}
	return m, nil
}

// OpenDiskMatrix opens a matrix previously created by NewDiskMatrix.
func OpenDiskMatrix[T Number](dbPath string) (*DiskMatrix[T], error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, errors.Wrap(err, "")
	}
	m := &DiskMatrix[T]{Path: dbPath}
	var err error
	m.db, err = newDB(m.Path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT rows, cols FROM %s`, tableShape)
	if err := m.db.QueryRowContext(ctx, sqlStr).Scan(&m.rows, &m.cols); err != nil {
		m.db.Close()
		return nil, errors.Wrap(err, dbPath)
	}
	return m, nil
}

func (m *DiskMatrix[T]) Close() error {
	return m.db.Close()
}

// Remove closes the database and deletes its file.
func (m *DiskMatrix[T]) Remove() error {
	var err error
	if err1 := m.db.Close(); err1 != nil && err == nil {
		err = err1
	}
	if err1 := os.Remove(m.Path); err1 != nil && err == nil {
		err = err1
	}
	return err
}

func (m *DiskMatrix[T]) Zeros(rows, cols int) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := deleteAll(ctx, m.db); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	if err := m.setShape(rows, cols); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

func (m *DiskMatrix[T]) Rows() int { return m.rows }
func (m *DiskMatrix[T]) Cols() int { return m.cols }

func (m *DiskMatrix[T]) At(i, j int) T {
	v, err := m.at(i, j)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return v
}

func (m *DiskMatrix[T]) at(i, j int) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT re, im FROM %s WHERE i=? AND j=?`, tableMatrix)
	var re, im float64
	err := m.db.QueryRowContext(ctx, sqlStr, i, j).Scan(&re, &im)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, errors.Wrap(err, "")
	default:
		v, err := Convert[T](complex(re, im))
		if err != nil {
			return v, errors.Wrap(err, "")
		}
		return v, nil
	}
}

func (a *DiskMatrix[T]) COO() *COO[T] {
	b, err := a.coo()
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return b
}

func (a *DiskMatrix[T]) coo() (*COO[T], error) {
	b := COOZeros[T](a.rows, a.cols)
	err := a.scan(func(v VRowCol[T]) error {
		b.Data = append(b.Data, v)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return b, nil
}

// scan calls fn on every stored element in row-major order.
func (a *DiskMatrix[T]) scan(fn func(VRowCol[T]) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT i, j, re, im FROM %s ORDER BY i, j`, tableMatrix)
	rows, err := a.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer rows.Close()

	for rows.Next() {
		var i, j int
		var re, im float64
		if err := rows.Scan(&i, &j, &re, &im); err != nil {
			return errors.Wrap(err, "")
		}
		v, err := Convert[T](complex(re, im))
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d %d", i, j))
		}
		if err := fn(VRowCol[T]{V: v, Row: i, Col: j}); err != nil {
			return errors.Wrap(err, "")
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Store adds the elements of b into a in a single transaction.
// Duplicate coordinates, in b or already in a, are summed, and elements summing to zero are removed.
func (a *DiskMatrix[T]) Store(ctx context.Context, b *COO[T]) error {
	return a.accumulate(ctx, 1, b)
}

func (a *DiskMatrix[T]) Add(c T, b Matrix[T]) {
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()
	if err := a.accumulate(ctx, c, b.COO()); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

func (a *DiskMatrix[T]) accumulate(ctx context.Context, c T, b *COO[T]) error {
	if b.rows != a.rows || b.cols != a.cols {
		return errors.Errorf("wrong dimensions %dx%d %dx%d", a.rows, a.cols, b.rows, b.cols)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tx.Rollback()

	sqlStr := fmt.Sprintf(`INSERT INTO %s (i, j, re, im) VALUES (?, ?, ?, ?) ON CONFLICT (i, j) DO UPDATE SET re = re + excluded.re, im = im + excluded.im`, tableMatrix)
	stmt, err := tx.PrepareContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, sqlStr)
	}
	defer stmt.Close()
	for _, v := range b.Data {
		cv := Complex(c * v.V)
		if _, err := stmt.ExecContext(ctx, v.Row, v.Col, real(cv), imag(cv)); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%#v", v))
		}
	}

	sqlStr = fmt.Sprintf(`DELETE FROM %s WHERE re = 0 AND im = 0`, tableMatrix)
	if _, err := tx.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func (a *DiskMatrix[T]) Kron(b *COO[T]) {
	if err := a.kron(b); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
}

func (a *DiskMatrix[T]) kron(b *COO[T]) error {
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer os.RemoveAll(dir)

	if err := a.WriteCOO(dir); err != nil {
		return errors.Wrap(err, "")
	}
	cooReader, err := NewCOOReader[T](dir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer cooReader.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()
	if err := deleteAll(ctx, a.db); err != nil {
		return errors.Wrap(err, fmt.Sprintf("db %s", a.Path))
	}
	if err := a.setShape(a.rows*b.rows, a.cols*b.cols); err != nil {
		return errors.Wrap(err, "")
	}

	block := COOZeros[T](a.rows, a.cols)
	for {
		av, err := cooReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "")
		}

		block.Data = block.Data[:0]
		for _, bv := range b.Data {
			ky := av.Row*b.rows + bv.Row
			kx := av.Col*b.cols + bv.Col
			block.Data = append(block.Data, VRowCol[T]{V: av.V * bv.V, Row: ky, Col: kx})
		}
		if err := a.accumulate(ctx, 1, block); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

func (m *DiskMatrix[T]) NumNonZero() int {
	n, err := m.numNonZero()
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return n
}

func (m *DiskMatrix[T]) numNonZero() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf("SELECT count(1) FROM %s", tableMatrix)
	var n int
	if err := m.db.QueryRowContext(ctx, sqlStr).Scan(&n); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return n, nil
}

func (m *DiskMatrix[T]) WriteCOO(dir string) error {
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

	err = m.scan(func(v VRowCol[T]) error {
		return w.Write([]string{FormatNumpy(Complex(v.V)), strconv.Itoa(v.Row), strconv.Itoa(v.Col)})
	})
	if err != nil {
		err = errors.Wrap(err, "")
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

func (m *DiskMatrix[T]) setShape(rows, cols int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`DELETE FROM %s`, tableShape)
	if _, err := m.db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`INSERT INTO %s (rows, cols) VALUES (?, ?)`, tableShape)
	if _, err := m.db.ExecContext(ctx, sqlStr, rows, cols); err != nil {
		return errors.Wrap(err, "")
	}
	m.rows, m.cols = rows, cols
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	// A single connection keeps transactions and plain statements on the same sqlite handle.
	db.SetMaxOpenConns(1)
	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, sqlStr := range []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableMatrix),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableShape),
		fmt.Sprintf(`CREATE TABLE %s (i INTEGER, j INTEGER, re REAL, im REAL, PRIMARY KEY (i, j)) STRICT`, tableMatrix),
		fmt.Sprintf(`CREATE TABLE %s (rows INTEGER, cols INTEGER) STRICT`, tableShape),
	} {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}

func deleteAll(ctx context.Context, db *sql.DB) error {
	sqlStr := fmt.Sprintf(`DELETE FROM %s`, tableMatrix)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
