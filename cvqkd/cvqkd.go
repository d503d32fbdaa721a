// Package cvqkd estimates the secret key rate of a continuous-variable
// quantum key distribution protocol under a Gaussian channel with excess
// noise, for Gaussian or discrete (QAM) modulation and an ideal or noisy
// heterodyne detector.
//
// A Modulation, GaussianChannel and Detector are combined by one of three
// Simulator variants: a finite-sample Monte-Carlo estimator, an exact
// calculator for QAM modulation under a Gaussian channel, and a closed-form
// calculator for the jointly Gaussian case. The covariance bound and the
// key-rate formula follow Denys, Brown & Leverrier, Quantum 5, 540 (2021).
package cvqkd

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/qosst/qosst-sim/cvqkd/modulation"
)

// DefaultBeta is the reconciliation efficiency assumed when Opts.Beta is
// left to zero-initialize.
var DefaultBeta = 0.95

// A Simulator estimates the key rate achievable with one fixed choice of
// modulation, channel and detector. Implementations are immutable after
// construction: the finite-size variant performs its single Monte-Carlo
// draw inside the constructor, so every query afterwards is pure.
type Simulator interface {
	// SNR returns the signal-to-shot-noise ratio of Bob's measurements,
	// which drives the Alice-Bob mutual information.
	SNR() float64

	// Covariance returns the (V, W, Z) triple bounding the covariance
	// matrix of the equivalent entanglement-based protocol. Z is the
	// Denys-Brown-Leverrier lower bound Z*.
	Covariance() (v, w, z float64, err error)

	// SKR returns the estimated secret key rate in bits per symbol:
	// beta*log2(1+SNR) minus the Holevo bound on Eve's information.
	SKR() (float64, error)
}

// An Opts packages together the arguments necessary to construct a
// Simulator. The collaborators are read-only and may be shared across
// several simulators, e.g. a parameter sweep reusing one modulation over
// many channel settings.
type Opts struct {
	// Modulation is Alice's symbol distribution. Must be non-nil. The
	// finite-size and Gaussian-channel variants require a discrete
	// (*modulation.QAM) modulation; the Gaussian-modulation variant
	// requires *modulation.Gaussian.
	Modulation modulation.Modulation

	// Channel is the lossy, noisy quantum channel between Alice and Bob.
	Channel GaussianChannel

	// Detector is Bob's measurement apparatus.
	Detector Detector

	// Beta is the reconciliation efficiency in (0, 1]. Defaults to
	// DefaultBeta.
	Beta float64

	// NSymbols is the number of symbols to exchange in a Monte-Carlo run.
	// Finite-size only.
	NSymbols int

	// Rand is the source used for the Monte-Carlo draw. A nil source
	// falls back to the process-global generator; tests should pass an
	// explicitly seeded source. Concurrent sweeps must give each
	// finite-size construction its own source. Finite-size only.
	Rand rand.Source
}

// simulator holds the collaborators and the three summary scalars shared
// by every variant. The variants embed it and fill in c1, c2 and nB at
// construction time.
type simulator struct {
	mod     modulation.Modulation
	channel GaussianChannel
	det     Detector
	beta    float64

	c1, c2, nB float64
}

func newSimulator(opts Opts) (simulator, error) {
	if opts.Modulation == nil {
		return simulator{}, fmt.Errorf("%w: must provide Modulation", ErrInvalidParameter)
	}
	if opts.Detector == nil {
		return simulator{}, fmt.Errorf("%w: must provide Detector", ErrInvalidParameter)
	}
	if opts.Modulation.Va() <= 0 {
		return simulator{}, fmt.Errorf("%w: modulation variance must be positive, got %g",
			ErrInvalidParameter, opts.Modulation.Va())
	}
	beta := opts.Beta
	if beta == 0 {
		beta = DefaultBeta
	}
	if beta < 0 || beta > 1 {
		return simulator{}, fmt.Errorf("%w: beta must lie in (0, 1], got %g", ErrInvalidParameter, beta)
	}
	return simulator{
		mod:     opts.Modulation,
		channel: opts.Channel,
		det:     opts.Detector,
		beta:    beta,
	}, nil
}

// Covariance composes the (V, W, Z*) bound from the modulation variance
// and the estimated c1, c2, nB:
//
//	V  = va + 1
//	W  = 2*nB + 1
//	Z* = 2*c1 - 2*sqrt(w*(nB - 2*c2^2/va))
//
// A negative radicand means the estimates left the physical region, which
// can happen with otherwise-valid inputs under finite-sample noise; it is
// reported as ErrNumerical rather than silently complexified.
func (s *simulator) Covariance() (float64, float64, float64, error) {
	va := s.mod.Va()
	v := va + 1
	w := 2*s.nB + 1
	rad := s.mod.W() * (s.nB - 2*s.c2*s.c2/va)
	if rad < 0 {
		return 0, 0, 0, fmt.Errorf("%w: negative radicand %g in the Z* bound", ErrNumerical, rad)
	}
	z := 2*s.c1 - 2*math.Sqrt(rad)
	return v, w, z, nil
}

// keyRate combines the covariance bound and the detector's Holevo bound
// with the mutual information derived from snr.
func (s *simulator) keyRate(snr float64) (float64, error) {
	v, w, z, err := s.Covariance()
	if err != nil {
		return 0, err
	}
	holevo, err := s.det.HolevoBound(v, w, z)
	if err != nil {
		return 0, err
	}
	return s.beta*math.Log2(1+snr) - holevo, nil
}
