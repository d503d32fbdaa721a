package modulation

import "math"

// NewBinomial returns a QAM whose distribution is a product of two
// binomial laws, one per quadrature, which approaches the Gaussian
// modulation as size grows. The lattice is scaled by
// sqrt(va/(4*(size-1))), the closed-form factor realizing variance va.
// Requires dim >= 1, size >= 2 and va > 0.
func NewBinomial(dim, size int, va float64) (*QAM, error) {
	if err := validateQAM(dim, size, va); err != nil {
		return nil, err
	}
	norm := math.Pow(2, -2*float64(size-1))
	distribution := make([]float64, 0, size*size)
	for k := 0; k < size; k++ {
		for l := 0; l < size; l++ {
			distribution = append(distribution, norm*binom(size-1, k)*binom(size-1, l))
		}
	}
	scale := complex(math.Sqrt(va/(4*float64(size-1))), 0)
	constellation := lattice(size)
	for i := range constellation {
		constellation[i] *= scale
	}
	return newQAM(dim, size, va, constellation, distribution)
}

// binom returns the binomial coefficient C(n, k) as a float64.
func binom(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	c := 1.0
	for i := 1; i <= k; i++ {
		c = c * float64(n-k+i) / float64(i)
	}
	return c
}
