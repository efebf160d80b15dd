package basis

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"
)

// transform maps site i to site perm[i], optionally inverting every spin afterwards.
type transform struct {
	perm []int
	flip bool
}

func identity(l int) transform {
	t := transform{perm: make([]int, l)}
	for i := range t.perm {
		t.perm[i] = i
	}
	return t
}

func translation(l, a int) transform {
	t := transform{perm: make([]int, l)}
	for i := range t.perm {
		t.perm[i] = (i + a) % l
	}
	return t
}

func reflection(l int) transform {
	t := transform{perm: make([]int, l)}
	for i := range t.perm {
		t.perm[i] = l - 1 - i
	}
	return t
}

func inversion(l int) transform {
	t := identity(l)
	t.flip = true
	return t
}

// then returns the transform applying t first and u second.
func (t transform) then(u transform) transform {
	c := transform{perm: make([]int, len(t.perm)), flip: t.flip != u.flip}
	for i, j := range t.perm {
		c.perm[i] = u.perm[j]
	}
	return c
}

func (t transform) equal(u transform) bool {
	return t.flip == u.flip && slices.Equal(t.perm, u.perm)
}

func (t transform) isIdentity() bool {
	if t.flip {
		return false
	}
	for i, j := range t.perm {
		if i != j {
			return false
		}
	}
	return true
}

// order returns the smallest k > 0 with t^k the identity.
func (t transform) order() int {
	p := identity(len(t.perm))
	for k := 1; ; k++ {
		p = p.then(t)
		if p.isIdentity() {
			return k
		}
	}
}

// apply returns the image of state s, where site i is bit l-1-i.
func (t transform) apply(s uint64) uint64 {
	l := len(t.perm)
	var img uint64
	for i, j := range t.perm {
		if s>>(l-1-i)&1 == 1 {
			img |= 1 << (l - 1 - j)
		}
	}
	if t.flip {
		img ^= mask(l)
	}
	return img
}

func mask(l int) uint64 {
	return 1<<l - 1
}

// generator is a symmetry with quantum number q, whose powers carry characters exp(2 pi i q j / period).
type generator struct {
	name   string
	t      transform
	period int
	q      int
}

func (g generator) String() string {
	return fmt.Sprintf("%s(%d/%d)", g.name, g.q, g.period)
}

// element is a group element together with its character.
type element struct {
	t    transform
	char complex128
}

// group returns every product of generator powers, the identity first.
func group(l int, gens []generator) []element {
	elems := []element{{t: identity(l), char: 1}}
	for _, g := range gens {
		next := make([]element, 0, len(elems)*g.period)
		for _, e := range elems {
			power := identity(l)
			for j := range g.period {
				next = append(next, element{t: e.t.then(power), char: e.char * root(g.q*j, g.period)})
				power = power.then(g.t)
			}
		}
		elems = next
	}
	return elems
}

// root returns exp(2 pi i n / p), exact at multiples of a quarter turn.
func root(n, p int) complex128 {
	n %= p
	if n < 0 {
		n += p
	}
	if (4*n)%p == 0 {
		switch 4 * n / p {
		case 0:
			return 1
		case 1:
			return 1i
		case 2:
			return -1
		case 3:
			return -1i
		}
	}
	return cmplx.Exp(complex(0, 2*math.Pi*float64(n)/float64(p)))
}
