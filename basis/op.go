package basis

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// CheckOp validates an operator string and its sites.
func (b *Basis) CheckOp(opstr string, sites []int) error {
	if len(opstr) != len(sites) {
		return errors.Wrap(ErrSites, fmt.Sprintf("%q %v", opstr, sites))
	}
	for i, c := range []byte(opstr) {
		switch c {
		case 'I', '+', '-', 'z', 'x', 'y', 'n':
		default:
			return errors.Wrap(ErrOpstr, fmt.Sprintf("%q position %d", opstr, i))
		}
		if sites[i] < 0 || sites[i] >= b.l {
			return errors.Wrap(ErrSites, fmt.Sprintf("site %d L=%d", sites[i], b.l))
		}
	}
	return nil
}

// Op acts with the operator string on the basis state at index col.
// The rightmost symbol acts first.
// It returns the matrix element and the index of the resulting basis state,
// or ok false if the operator annihilates the state or leaves the sector.
func (b *Basis) Op(col int, opstr string, sites []int) (me complex128, row int, ok bool, err error) {
	if err := b.CheckOp(opstr, sites); err != nil {
		return 0, -1, false, errors.Wrap(err, "")
	}
	s, me, ok := b.act(b.states[col], opstr, sites)
	if !ok {
		return 0, -1, false, nil
	}

	r, phase := b.Representative(s)
	row, found := b.Index(r)
	if !found {
		return 0, -1, false, nil
	}
	me *= phase * complex(math.Sqrt(b.norms[row]/b.norms[col]), 0)
	return me, row, true, nil
}

// act applies opstr to the product state s.
func (b *Basis) act(s uint64, opstr string, sites []int) (uint64, complex128, bool) {
	scale := 0.5
	if b.opt.pauli {
		scale = 1
	}

	me := complex128(1)
	for k := len(opstr) - 1; k >= 0; k-- {
		bit := uint64(1) << (b.l - 1 - sites[k])
		up := s&bit != 0
		switch opstr[k] {
		case 'I':
		case 'z':
			if up {
				me *= complex(scale, 0)
			} else {
				me *= complex(-scale, 0)
			}
		case 'x':
			s ^= bit
			me *= complex(scale, 0)
		case 'y':
			s ^= bit
			if up {
				me *= complex(0, scale)
			} else {
				me *= complex(0, -scale)
			}
		case '+':
			if up {
				return s, 0, false
			}
			s |= bit
			me *= complex(2*scale, 0)
		case '-':
			if !up {
				return s, 0, false
			}
			s &^= bit
			me *= complex(2*scale, 0)
		case 'n':
			if !up {
				return s, 0, false
			}
		}
	}
	return s, me, true
}
