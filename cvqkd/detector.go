package cvqkd

import (
	"fmt"
	"math"
)

// A Detector represents Bob's heterodyne measurement apparatus. It
// exposes the symplectic eigenvalues and the Holevo bound derived from a
// two-mode covariance triple (V, W, Z). Implementations are immutable.
type Detector interface {
	// Eta returns the detector efficiency in (0, 1].
	Eta() float64

	// Vel returns the electronic noise variance, >= 0.
	Vel() float64

	// Sympl returns the symplectic eigenvalues of the covariance triple.
	// The number of eigenvalues depends on the detector: three for the
	// ideal case, four when the electronic noise is modeled with an EPR
	// ancilla.
	Sympl(v, w, z float64) ([]float64, error)

	// HolevoBound returns the upper bound on Eve's accessible information
	// given the covariance triple, in bits. All eigenvalues must strictly
	// exceed 1 (the vacuum), otherwise ErrNumerical is returned.
	HolevoBound(v, w, z float64) (float64, error)
}

// symplPair returns the two symplectic eigenvalues of the two-mode
// covariance matrix itself, shared by both detector models.
func symplPair(v, w, z float64) (float64, float64, error) {
	d := Delta(v, w, z)
	g := Gamma(v, w, z)
	disc := d*d - 4*g
	if disc < 0 {
		return 0, 0, fmt.Errorf("%w: negative discriminant %g in symplectic spectrum", ErrNumerical, disc)
	}
	s := math.Sqrt(disc)
	if d-s < 0 {
		return 0, 0, fmt.Errorf("%w: negative squared eigenvalue %g", ErrNumerical, (d-s)/2)
	}
	return math.Sqrt((d + s) / 2), math.Sqrt((d - s) / 2), nil
}

// holevo combines the entropy terms: the first two eigenvalues describe
// the joint state, the rest the state conditioned on Bob's measurement.
func holevo(eigs []float64) (float64, error) {
	for _, v := range eigs {
		if v <= 1 {
			return 0, fmt.Errorf("%w: symplectic eigenvalue %g not above vacuum", ErrNumerical, v)
		}
	}
	b := G((eigs[0]-1)/2) + G((eigs[1]-1)/2)
	for _, v := range eigs[2:] {
		b -= G((v - 1) / 2)
	}
	return b, nil
}

// IdealHeterodyne is a lossless, noiseless heterodyne detector: eta = 1,
// vel = 0.
type IdealHeterodyne struct{}

// Eta implements Detector.
func (IdealHeterodyne) Eta() float64 { return 1 }

// Vel implements Detector.
func (IdealHeterodyne) Vel() float64 { return 0 }

// Sympl returns (v1, v2) for the two-mode state and v3 for Alice's state
// conditioned on Bob's heterodyne measurement.
func (IdealHeterodyne) Sympl(v, w, z float64) ([]float64, error) {
	v1, v2, err := symplPair(v, w, z)
	if err != nil {
		return nil, err
	}
	v3 := v - z*z/(w+1)
	return []float64{v1, v2, v3}, nil
}

// HolevoBound implements Detector.
func (d IdealHeterodyne) HolevoBound(v, w, z float64) (float64, error) {
	eigs, err := d.Sympl(v, w, z)
	if err != nil {
		return 0, err
	}
	return holevo(eigs)
}

// NoisyHeterodyne is a heterodyne detector with efficiency eta and
// electronic noise vel, modeled by mixing Bob's mode with an EPR state on
// a beam splitter of transmittance eta.
type NoisyHeterodyne struct {
	eta, vel float64
}

// NewNoisyHeterodyne returns a noisy heterodyne detector. Requires
// 0 < eta <= 1 and vel >= 0.
func NewNoisyHeterodyne(eta, vel float64) (NoisyHeterodyne, error) {
	if eta <= 0 || eta > 1 {
		return NoisyHeterodyne{}, fmt.Errorf("%w: eta must lie in (0, 1], got %g", ErrInvalidParameter, eta)
	}
	if vel < 0 {
		return NoisyHeterodyne{}, fmt.Errorf("%w: vel must be non-negative, got %g", ErrInvalidParameter, vel)
	}
	return NoisyHeterodyne{eta: eta, vel: vel}, nil
}

// Eta implements Detector.
func (d NoisyHeterodyne) Eta() float64 { return d.eta }

// Vel implements Detector.
func (d NoisyHeterodyne) Vel() float64 { return d.vel }

// Sympl returns (v1, v2) for the two-mode state AB and (v3, v4) for the
// state exiting the detector beam splitter, conditioned on Bob's
// measurement.
func (d NoisyHeterodyne) Sympl(v, w, z float64) ([]float64, error) {
	v1, v2, err := symplPair(v, w, z)
	if err != nil {
		return nil, err
	}
	eta := d.eta

	// The variance of the EPR ancilla would read nu = 1 + 2*vel/(1-eta)
	// for a physical noise model; the closed forms below follow the
	// reference derivation, which fixes nu = 1.
	nu := 1.0

	den := 1 + w*eta + nu - eta*nu
	r1 := (sq(v*(1+eta*w+nu-eta*nu)-eta*z*z) +
		sq(eta*nu+w*(1-eta+nu)) +
		sq(1+nu+eta*(w*nu-1)) -
		2*(1-eta)*sq(nu+1)*z*z -
		2*eta*(1-eta)*(nu*nu-1)*z*z -
		2*eta*(nu*nu-1)*sq(1+w)) / (den * den)
	r1 -= 1
	r2 := sq(z*z-v*(w+eta)+(v*w-z*z)*(eta-1)*nu) / (den * den)

	disc := r1*r1 - 4*r2
	if disc < 0 {
		return nil, fmt.Errorf("%w: negative discriminant %g in conditioned spectrum", ErrNumerical, disc)
	}
	s := math.Sqrt(disc)
	if r1-s < 0 {
		return nil, fmt.Errorf("%w: negative squared eigenvalue %g", ErrNumerical, (r1-s)/2)
	}
	v3 := math.Sqrt(0.5 * (r1 + s))
	v4 := math.Sqrt(0.5 * (r1 - s))
	return []float64{v1, v2, v3, v4}, nil
}

// HolevoBound implements Detector.
func (d NoisyHeterodyne) HolevoBound(v, w, z float64) (float64, error) {
	eigs, err := d.Sympl(v, w, z)
	if err != nil {
		return 0, err
	}
	return holevo(eigs)
}

func sq(x float64) float64 { return x * x }
