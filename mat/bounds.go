package mat

import (
	"math"
)

// Gershgorin returns an interval containing the real parts of all eigenvalues of m.
// Theorem A3, Bounds for the eigenvalues of a matrix, Kenneth R. Garren.
func Gershgorin[T Number](m *CSR[T]) (float64, float64) {
	if m.rows == 0 {
		return 0, 0
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range m.rows {
		var center, radius float64
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			if m.indices[k] == i {
				center = real(Complex(m.data[k]))
			} else {
				radius += Abs(m.data[k])
			}
		}
		lo = min(lo, center-radius)
		hi = max(hi, center+radius)
	}
	return lo, hi
}
