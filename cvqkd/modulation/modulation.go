// Package modulation models Alice's choice of symbol distribution over
// the complex plane: continuous Gaussian modulation, and the discrete QAM
// family (binomial- and Gaussian-weighted square lattices) together with
// the truncated Fock-space operators the key-rate bound needs.
package modulation

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter reports a modulation constructor precondition
// violation.
var ErrInvalidParameter = errors.New("modulation: invalid parameter")

// A Modulation is an immutable symbol distribution, characterized for the
// key-rate computation by its variance va and its non-Gaussianity term w.
type Modulation interface {
	// Va returns the modulation variance over the complex plane. The
	// covariance of the modulation is always va/2 per quadrature, and
	// va = 2*<N> with <N> the mean photon number.
	Va() float64

	// W returns the non-Gaussianity leakage term of Denys, Brown &
	// Leverrier (2021): the weight a random coherent state of the
	// modulation is mapped by a_tau onto the subspace orthogonal to its
	// own span.
	W() float64
}

// Gaussian is the continuous Gaussian modulation.
type Gaussian struct {
	va float64
}

// NewGaussian returns a Gaussian modulation of variance va > 0.
func NewGaussian(va float64) (*Gaussian, error) {
	if va <= 0 {
		return nil, fmt.Errorf("%w: va must be positive, got %g", ErrInvalidParameter, va)
	}
	return &Gaussian{va: va}, nil
}

// Va implements Modulation.
func (g *Gaussian) Va() float64 { return g.va }

// W returns exactly 0: for a Gaussian modulation a_tau is proportional to
// the annihilation operator, so every coherent state is an eigenvector of
// it and nothing leaks outside its span.
func (g *Gaussian) W() float64 { return 0 }
