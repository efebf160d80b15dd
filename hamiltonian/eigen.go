package hamiltonian

import (
	"fmt"
	"math"

	"github.com/fumin/qspin/mat"
	"github.com/fumin/tensor"
	"github.com/pkg/errors"
)

const maxTaylorTerms = 1024

// EigenValues returns the eigenvalues of H(t) in ascending order.
func (h *Hamiltonian[T]) EigenValues(t float64) ([]float64, error) {
	vvs, err := mat.EigenSym(h.Materialize(t), false)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	vals := make([]float64, 0, len(vvs))
	for _, vv := range vvs {
		vals = append(vals, real(vv.Val))
	}
	return vals, nil
}

// Eigen returns the eigenvalues and eigenvectors of H(t) in ascending order of eigenvalue.
func (h *Hamiltonian[T]) Eigen(t float64) ([]mat.ValVec, error) {
	vvs, err := mat.EigenSym(h.Materialize(t), true)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	for _, vv := range vvs {
		mat.Phase(vv.Vec)
	}
	return vvs, nil
}

// GroundState returns the lowest eigenvalue of H(t) and its eigenvector using Arnoldi iteration in single precision.
// The matrix is shifted by its upper spectral bound, so that the ground state is also the eigenvalue of largest magnitude.
func (h *Hamiltonian[T]) GroundState(t float64) (float64, []complex128, error) {
	if h.dim == 0 {
		return 0, []complex128{}, nil
	}
	m := h.Materialize(t)
	_, hi := mat.Gershgorin(m)

	dense := make([][]complex64, h.dim)
	for i := range dense {
		dense[i] = make([]complex64, h.dim)
		dense[i][i] = complex64(complex(-hi, 0))
	}
	for v := range m.All() {
		dense[v.Row][v.Col] += complex64(mat.Complex(v.V))
	}
	a := tensor.T2(dense)

	eigvals, eigvecs := tensor.Zeros(1), tensor.Zeros(1)
	var bufs [7]*tensor.Dense
	for i := range bufs {
		bufs[i] = tensor.Zeros(1)
	}
	if err := tensor.Arnoldi(eigvals, eigvecs, a, 1, bufs); err != nil {
		return 0, nil, errors.Wrap(err, "")
	}

	val := eigvals.Reshape(1).At(0)
	vecT := eigvecs.Reshape(h.dim)
	vec := make([]complex128, 0, h.dim)
	for i := range h.dim {
		vec = append(vec, complex128(vecT.At(i)))
	}
	norm := mat.Norm(vec)
	for i := range vec {
		vec[i] /= complex(norm, 0)
	}
	mat.Phase(vec)

	return float64(real(val)) + hi, vec, nil
}

// Exp returns exp(z H(t)) v, computed as n successive Taylor series in z H(t) / n.
// Each series is truncated once the norm of an even order term drops below atol.
func (h *Hamiltonian[T]) Exp(v []T, z T, t float64, n int, atol float64) ([]T, error) {
	if h.dim == 0 {
		return []T{}, nil
	}
	if n <= 0 {
		return nil, errors.Errorf("n must be positive %d", n)
	}
	if len(v) != h.dim {
		return nil, errors.Wrap(ErrDimensionMismatch, fmt.Sprintf("%d %d", len(v), h.dim))
	}

	m := h.Materialize(t)
	x := make([]T, len(v))
	copy(x, v)
	term := make([]T, len(v))
	for range n {
		copy(term, x)
		converged := false
		for i := 1; i <= maxTaylorTerms; i++ {
			c := z / mat.FromFloat[T](float64(n*i))
			next := make([]T, len(term))
			m.DotAdd(next, c, term)
			term = next
			for j := range x {
				x[j] += term[j]
			}
			if i%2 == 0 && mat.Norm(term) < atol {
				converged = true
				break
			}
			if math.IsNaN(mat.Norm(term)) {
				return nil, errors.Errorf("diverged at order %d", i)
			}
		}
		if !converged {
			return nil, errors.Errorf("taylor series not converged after %d terms", maxTaylorTerms)
		}
	}
	return x, nil
}
