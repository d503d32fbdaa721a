package modulation

import (
	"fmt"
	"math"
)

// NewGaussianQAM returns a QAM whose distribution discretizes a Gaussian:
// each lattice point x carries weight exp(-nu*|x|^2), renormalized by the
// total weight over the lattice. nu > 0 is a shaping parameter meant to
// be optimized against a cost function by the caller. Unlike the binomial
// family there is no closed-form scale, so the lattice is rescaled by the
// actual weighted second moment to realize variance va exactly.
func NewGaussianQAM(dim, size int, va, nu float64) (*QAM, error) {
	if err := validateQAM(dim, size, va); err != nil {
		return nil, err
	}
	if nu <= 0 {
		return nil, fmt.Errorf("%w: nu must be positive, got %g", ErrInvalidParameter, nu)
	}
	constellation := lattice(size)
	distribution := make([]float64, len(constellation))
	var total float64
	for i, alpha := range constellation {
		distribution[i] = math.Exp(-nu * abs2(alpha))
		total += distribution[i]
	}
	var second float64
	for i, alpha := range constellation {
		distribution[i] /= total
		second += distribution[i] * abs2(alpha)
	}
	scale := complex(math.Sqrt(va/(2*second)), 0)
	for i := range constellation {
		constellation[i] *= scale
	}
	return newQAM(dim, size, va, constellation, distribution)
}
