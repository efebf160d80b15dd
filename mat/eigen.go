package mat

import (
	"cmp"
	"math"
	"math/cmplx"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// EigenSym diagonalizes the Hermitian matrix m, returning eigenvalues in ascending order.
// Eigenvectors are computed only if vectors is true.
//
// Real symmetric matrices go straight to LAPACK.
// A complex Hermitian matrix A+iB is embedded in the real symmetric matrix [[A, -B], [B, A]],
// whose spectrum is that of A+iB with every eigenvalue doubled.
func EigenSym[T Number](m *CSR[T], vectors bool) ([]ValVec, error) {
	if m.rows != m.cols {
		return nil, errors.Errorf("not square %dx%d", m.rows, m.cols)
	}
	n := m.rows
	if n == 0 {
		return []ValVec{}, nil
	}

	isReal := true
	for v := range m.All() {
		if imag(Complex(v.V)) != 0 {
			isReal = false
			break
		}
	}

	dim := n
	if !isReal {
		dim = 2 * n
	}
	sym := mat.NewSymDense(dim, nil)
	for v := range m.All() {
		c := Complex(v.V)
		sym.SetSym(v.Row, v.Col, real(c))
		if !isReal {
			sym.SetSym(n+v.Row, n+v.Col, real(c))
			sym.SetSym(v.Row, n+v.Col, -imag(c))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, vectors); !ok {
		return nil, errors.Errorf("eigen factorization failed %d", dim)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	if vectors {
		eig.VectorsTo(&vecs)
	}

	if isReal {
		vvs := make([]ValVec, 0, n)
		for i, v := range vals {
			vv := ValVec{Val: complex(v, 0)}
			if vectors {
				vv.Vec = make([]complex128, 0, n)
				for j := range n {
					vv.Vec = append(vv.Vec, complex(vecs.At(j, i), 0))
				}
			}
			vvs = append(vvs, vv)
		}
		return vvs, nil
	}

	if !vectors {
		vvs := make([]ValVec, 0, n)
		for i := 0; i < dim; i += 2 {
			vvs = append(vvs, ValVec{Val: complex(vals[i], 0)})
		}
		return vvs, nil
	}
	return embeddedVectors(vals, &vecs, n), nil
}

// embeddedVectors recovers n complex eigenvectors from the 2n real eigenvectors of the embedding.
// Within each degenerate cluster of 2k real vectors, k orthonormal complex vectors are extracted by pivoted Gram-Schmidt.
func embeddedVectors(vals []float64, vecs *mat.Dense, n int) []ValVec {
	vvs := make([]ValVec, 0, n)
	for start := 0; start < len(vals); {
		end := start + 1
		for end < len(vals) && math.Abs(vals[end]-vals[start]) <= 1e-9*max(1, math.Abs(vals[start])) {
			end++
		}

		candidates := make([][]complex128, 0, end-start)
		for j := start; j < end; j++ {
			u := make([]complex128, n)
			for i := range n {
				u[i] = complex(vecs.At(i, j), vecs.At(n+i, j))
			}
			candidates = append(candidates, u)
		}
		basis := make([][]complex128, 0, (end-start)/2)
		for len(basis) < (end-start)/2 {
			// Pick the candidate least dependent on the vectors chosen so far.
			best, bestNorm := -1, 0.0
			for c, u := range candidates {
				if norm := Norm(u); norm > bestNorm {
					best, bestNorm = c, norm
				}
			}
			u := candidates[best]
			for i := range u {
				u[i] /= complex(bestNorm, 0)
			}
			basis = append(basis, u)
			candidates = slices.Delete(candidates, best, best+1)
			for _, v := range candidates {
				p := Vdot(u, v)
				for i := range v {
					v[i] -= p * u[i]
				}
			}
		}

		var avg float64
		for _, v := range vals[start:end] {
			avg += v
		}
		avg /= float64(end - start)
		for _, u := range basis {
			vvs = append(vvs, ValVec{Val: complex(avg, 0), Vec: u})
		}
		start = end
	}
	slices.SortStableFunc(vvs, func(a, b ValVec) int { return cmp.Compare(real(a.Val), real(b.Val)) })
	return vvs
}

// Phase rotates vec so that its first non-negligible component is real and positive.
func Phase(vec []complex128) {
	for _, v := range vec {
		if cmplx.Abs(v) > 1e-9 {
			c := cmplx.Conj(v) / complex(cmplx.Abs(v), 0)
			for i := range vec {
				vec[i] *= c
			}
			return
		}
	}
}
