// Package qspin builds spin lattice models on symmetry-reduced bases.
package qspin

import (
	"fmt"
	"math"
	"slices"

	"github.com/fumin/qspin/basis"
	"github.com/fumin/qspin/mat"
	"github.com/fumin/qspin/operator"
	"github.com/pkg/errors"
)

// Site returns the index of site (y, x) of an n[0] x n[1] lattice.
func Site(n [2]int, y, x int) int {
	return y*n[1] + x
}

// NearestNeighbors returns the bonds of an n[0] x n[1] square lattice.
// Periodic boundaries wrap only dimensions longer than two, so that no bond appears twice.
func NearestNeighbors(n [2]int, periodic bool) [][]int {
	bonds := make([][]int, 0)
	for y := 0; y < n[0]; y++ {
		for x := 0; x < n[1]; x++ {
			up := y - 1
			if up < 0 && periodic && n[0] > 2 {
				up = n[0] - 1
			}
			if up >= 0 {
				bonds = append(bonds, []int{Site(n, up, x), Site(n, y, x)})
			}

			left := x - 1
			if left < 0 && periodic && n[1] > 2 {
				left = n[1] - 1
			}
			if left >= 0 {
				bonds = append(bonds, []int{Site(n, y, left), Site(n, y, x)})
			}
		}
	}
	return bonds
}

// Bonds attaches coupling j to every site list.
func Bonds(j complex128, sites [][]int) []operator.Bond {
	bonds := make([]operator.Bond, 0, len(sites))
	for _, s := range sites {
		bonds = append(bonds, operator.Bond{J: j, Sites: slices.Clone(s)})
	}
	return bonds
}

// Field returns the single site operator op with coupling j on every site.
func Field(op string, j complex128, numSites int) operator.Term {
	sites := make([][]int, 0, numSites)
	for i := range numSites {
		sites = append(sites, []int{i})
	}
	return operator.Term{Op: op, Bonds: Bonds(j, sites)}
}

// TransverseFieldIsing returns H = -sum_<ij> Z_i Z_j - h sum_i X_i, in units where Z and X are Pauli matrices.
func TransverseFieldIsing(n [2]int, h float64, periodic bool) []operator.Term {
	return []operator.Term{
		{Op: "zz", Bonds: Bonds(-1, NearestNeighbors(n, periodic))},
		Field("x", complex(-h, 0), n[0]*n[1]),
	}
}

// XXZ returns H = sum_<ij> (S+_i S-_j + S-_i S+_j)/2 + delta S^z_i S^z_j.
func XXZ(n [2]int, delta float64, periodic bool) []operator.Term {
	nn := NearestNeighbors(n, periodic)
	return []operator.Term{
		{Op: "+-", Bonds: Bonds(0.5, nn)},
		{Op: "-+", Bonds: Bonds(0.5, nn)},
		{Op: "zz", Bonds: Bonds(complex(delta, 0), nn)},
	}
}

// local returns the single site matrix of symbol c, in the basis {down, up}.
func local(c byte, pauli bool) ([2][2]complex128, error) {
	s := complex(0.5, 0)
	if pauli {
		s = 1
	}
	switch c {
	case 'I':
		return [2][2]complex128{{1, 0}, {0, 1}}, nil
	case 'z':
		return [2][2]complex128{{-s, 0}, {0, s}}, nil
	case 'x':
		return [2][2]complex128{{0, s}, {s, 0}}, nil
	case 'y':
		return [2][2]complex128{{0, 1i * s}, {-1i * s, 0}}, nil
	case '+':
		return [2][2]complex128{{0, 0}, {2 * s, 0}}, nil
	case '-':
		return [2][2]complex128{{0, 2 * s}, {0, 0}}, nil
	case 'n':
		return [2][2]complex128{{0, 0}, {0, 1}}, nil
	}
	return [2][2]complex128{}, errors.Wrap(basis.ErrOpstr, fmt.Sprintf("%q", c))
}

func mul2(a, b [2][2]complex128) [2][2]complex128 {
	var c [2][2]complex128
	for i := range 2 {
		for j := range 2 {
			c[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j]
		}
	}
	return c
}

// KronHamiltonian writes the full 2^l dimensional matrix of terms into hamiltonian, building every bond as a Kronecker product of single site matrices.
// Site 0 is the leftmost factor.
func KronHamiltonian(hamiltonian, buf mat.Matrix[complex128], l int, pauli bool, terms []operator.Term) error {
	hamiltonian.Zeros(1<<l, 1<<l)
	one := mat.M([][]complex128{{1}})
	for _, term := range terms {
		for _, bond := range term.Bonds {
			if len(bond.Sites) != len(term.Op) {
				return errors.Wrap(basis.ErrSites, fmt.Sprintf("%q %v", term.Op, bond.Sites))
			}
			sites := make([][2][2]complex128, l)
			for i := range sites {
				sites[i] = [2][2]complex128{{1, 0}, {0, 1}}
			}
			for k := range term.Op {
				m, err := local(term.Op[k], pauli)
				if err != nil {
					return errors.Wrap(err, "")
				}
				i := bond.Sites[k]
				if i < 0 || i >= l {
					return errors.Wrap(basis.ErrSites, fmt.Sprintf("%d %d", i, l))
				}
				sites[i] = mul2(sites[i], m)
			}

			buf.Zeros(1, 1)
			buf.Add(1, one)
			for _, m := range sites {
				buf.Kron(mat.M([][]complex128{m[0][:], m[1][:]}))
			}
			hamiltonian.Add(bond.J, buf)
		}
	}
	return nil
}

type Statistics struct {
	EigenValue     []float64
	Magnetization  float64
	BinderCumulant float64
}

// GetStatistics returns the spectrum, and the magnetization and Binder cumulant of the ground state vvs[0] of basis b.
func GetStatistics(b *basis.Basis, vvs []mat.ValVec) (Statistics, error) {
	var stats Statistics
	if len(vvs) == 0 {
		return Statistics{}, errors.Errorf("no eigenvectors")
	}
	for _, vv := range vvs {
		stats.EigenValue = append(stats.EigenValue, real(vv.Val))
	}
	full, err := b.Expand(vvs[0].Vec)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "")
	}

	numSpins := b.L()
	var totalProb float64
	var m2 float64
	for state, amplitude := range full {
		probability := real(amplitude)*real(amplitude) + imag(amplitude)*imag(amplitude)
		if probability == 0 {
			continue
		}
		// Count the magnetization in the direction of the majority of spins.
		ups := 0
		for i := range numSpins {
			ups += state >> i & 1
		}
		basisM := math.Abs(float64(2*ups - numSpins))

		totalProb += probability
		stats.Magnetization += probability * basisM
		stats.BinderCumulant += probability * math.Pow(basisM, 4)
		m2 += probability * math.Pow(basisM, 2)
	}
	if math.Abs(totalProb-1) > 1e-3 {
		return Statistics{}, errors.Errorf("%f", totalProb)
	}

	stats.Magnetization /= float64(numSpins)
	stats.BinderCumulant /= (m2 * m2)
	stats.BinderCumulant = 1 - stats.BinderCumulant/3
	return stats, nil
}
