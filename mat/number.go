package mat

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

// ErrComplex is returned when a value with a non-zero imaginary part is stored in a real type.
var ErrComplex = errors.New("complex value in real storage")

// Number is the set of storage types a matrix can hold.
type Number interface {
	float32 | float64 | complex64 | complex128
}

// IsComplex reports whether T is a complex type.
func IsComplex[T Number]() bool {
	var z T
	switch any(z).(type) {
	case complex64, complex128:
		return true
	}
	return false
}

// Convert converts c to T.
// It fails instead of truncating when T is real and c has an imaginary part.
func Convert[T Number](c complex128) (T, error) {
	var v T
	switch p := any(&v).(type) {
	case *float32:
		if imag(c) != 0 {
			return v, errors.Wrap(ErrComplex, fmt.Sprintf("%v float32", c))
		}
		*p = float32(real(c))
	case *float64:
		if imag(c) != 0 {
			return v, errors.Wrap(ErrComplex, fmt.Sprintf("%v float64", c))
		}
		*p = real(c)
	case *complex64:
		*p = complex64(c)
	case *complex128:
		*p = c
	}
	return v, nil
}

// Complex widens v to complex128.
func Complex[T Number](v T) complex128 {
	switch x := any(v).(type) {
	case float32:
		return complex(float64(x), 0)
	case float64:
		return complex(x, 0)
	case complex64:
		return complex128(x)
	case complex128:
		return x
	}
	panic(fmt.Sprintf("%T", v))
}

// FromFloat converts a real scalar to T.
func FromFloat[T Number](f float64) T {
	v, _ := Convert[T](complex(f, 0))
	return v
}

// Conj returns the complex conjugate of v, which is v itself for real types.
func Conj[T Number](v T) T {
	switch x := any(v).(type) {
	case complex64:
		return any(complex64(cmplx.Conj(complex128(x)))).(T)
	case complex128:
		return any(cmplx.Conj(x)).(T)
	}
	return v
}

// Abs returns the modulus of v.
func Abs[T Number](v T) float64 {
	return cmplx.Abs(Complex(v))
}

// Norm returns the Euclidean norm of x.
func Norm[T Number](x []T) float64 {
	var n float64
	for _, v := range x {
		c := Complex(v)
		n += real(c)*real(c) + imag(c)*imag(c)
	}
	return math.Sqrt(n)
}

// Vdot returns the conjugate-linear inner product x^H y.
func Vdot[T Number](x, y []T) T {
	if len(x) != len(y) {
		panic(fmt.Sprintf("%d %d", len(x), len(y)))
	}
	var s T
	for i, xi := range x {
		s += Conj(xi) * y[i]
	}
	return s
}
