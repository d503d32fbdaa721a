// Package herm computes spectral functions of Hermitian complex matrices:
// the principal square root of a positive-semidefinite matrix and the
// Moore-Penrose pseudoinverse.
//
// Both go through the real symmetric embedding of A = X + iY,
//
//	E(A) = | X  -Y |
//	       | Y   X |
//
// which is an algebra homomorphism, so spectral functions commute with it
// and can be evaluated with gonum's real symmetric eigensolver. Each
// eigenvalue of A appears twice in E(A); the function is applied to the
// embedded spectrum and the top-left/bottom-left blocks are read back.
package herm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// DefaultSqrtTol is the relative clipping tolerance used by SqrtPSD
	// when tol <= 0: eigenvalues in [-DefaultSqrtTol*max, 0) are treated
	// as rounding noise and clipped to zero.
	DefaultSqrtTol = 1e-10

	// DefaultRcond is the relative singular-value cutoff used by Pinv
	// when rcond <= 0. The cutoff materially affects accuracy near the
	// truncation boundary of the operators this package is applied to,
	// which is why it is exposed as a parameter at all.
	DefaultRcond = 1e-12
)

// ErrNotPSD reports that a matrix handed to SqrtPSD has an eigenvalue
// more negative than the clipping tolerance allows.
var ErrNotPSD = errors.New("herm: matrix is not positive semidefinite")

// SqrtPSD returns the principal square root of the Hermitian positive-
// semidefinite matrix a. Only the Hermitian part of a is referenced.
// Eigenvalues within tol*max(|eig|) below zero are clipped to zero;
// anything lower returns ErrNotPSD. tol <= 0 selects DefaultSqrtTol.
func SqrtPSD(a *mat.CDense, tol float64) (*mat.CDense, error) {
	if tol <= 0 {
		tol = DefaultSqrtTol
	}
	vals, vecs, err := factorize(a)
	if err != nil {
		return nil, err
	}
	floor := -tol * maxAbs(vals)
	for i, v := range vals {
		if v < floor {
			return nil, fmt.Errorf("%w: eigenvalue %g below tolerance %g", ErrNotPSD, v, floor)
		}
		if v < 0 {
			v = 0
		}
		vals[i] = math.Sqrt(v)
	}
	n, _ := a.Dims()
	return assemble(vals, vecs, n), nil
}

// Pinv returns the Moore-Penrose pseudoinverse of the Hermitian matrix a.
// Eigenvalues of magnitude at most rcond*max(|eig|) are treated as zero.
// rcond <= 0 selects DefaultRcond.
func Pinv(a *mat.CDense, rcond float64) (*mat.CDense, error) {
	if rcond <= 0 {
		rcond = DefaultRcond
	}
	vals, vecs, err := factorize(a)
	if err != nil {
		return nil, err
	}
	cutoff := rcond * maxAbs(vals)
	for i, v := range vals {
		if math.Abs(v) > cutoff {
			vals[i] = 1 / v
		} else {
			vals[i] = 0
		}
	}
	n, _ := a.Dims()
	return assemble(vals, vecs, n), nil
}

// factorize eigendecomposes the real symmetric embedding of a.
func factorize(a *mat.CDense) ([]float64, *mat.Dense, error) {
	n, c := a.Dims()
	if n != c {
		return nil, nil, fmt.Errorf("herm: matrix must be square, got %dx%d", n, c)
	}
	e := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			x := real(a.At(i, j))
			e.SetSym(i, j, x)
			e.SetSym(n+i, n+j, x)
		}
		for j := 0; j < n; j++ {
			e.SetSym(i, n+j, -imag(a.At(i, j)))
		}
	}
	var es mat.EigenSym
	if !es.Factorize(e, true) {
		return nil, nil, errors.New("herm: eigendecomposition failed")
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	return es.Values(nil), &vecs, nil
}

// assemble rebuilds Q*diag(vals)*Q^T in the embedded space and reads the
// complex result back from its blocks.
func assemble(vals []float64, vecs *mat.Dense, n int) *mat.CDense {
	d := mat.NewDiagDense(2*n, vals)
	var qd, e mat.Dense
	qd.Mul(vecs, d)
	e.Mul(&qd, vecs.T())

	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, complex(e.At(i, j), e.At(n+i, j)))
		}
	}
	return out
}

func maxAbs(vals []float64) float64 {
	var m float64
	for _, v := range vals {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}
