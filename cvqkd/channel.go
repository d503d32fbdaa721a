package cvqkd

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// A GaussianChannel is a lossy quantum channel of transmittance t with
// excess noise xi referred to the channel input. It is a stateless value:
// sampling draws from the source handed to SampleOutput.
type GaussianChannel struct {
	t, xi float64
}

// NewGaussianChannel returns a Gaussian channel. Requires 0 <= t <= 1 and
// xi >= 0.
func NewGaussianChannel(t, xi float64) (GaussianChannel, error) {
	if t < 0 || t > 1 {
		return GaussianChannel{}, fmt.Errorf("%w: transmittance must lie in [0, 1], got %g", ErrInvalidParameter, t)
	}
	if xi < 0 {
		return GaussianChannel{}, fmt.Errorf("%w: excess noise must be non-negative, got %g", ErrInvalidParameter, xi)
	}
	return GaussianChannel{t: t, xi: xi}, nil
}

// T returns the channel transmittance.
func (c GaussianChannel) T() float64 { return c.t }

// Xi returns the excess noise at the channel input.
func (c GaussianChannel) Xi() float64 { return c.xi }

// SampleOutput draws what Bob measures when Alice's symbols traverse the
// channel and the detector: sqrt(t*eta/2)*symbols plus i.i.d. complex
// Gaussian noise whose quadratures are each N(0, sigma^2) with
// sigma = 0.5*sqrt(1 + vel + eta*t*xi/2). A nil src falls back to the
// process-global generator; pass an explicitly seeded source for
// reproducible draws.
func (c GaussianChannel) SampleOutput(symbols []complex128, det Detector, src rand.Source) []complex128 {
	noise := distuv.Normal{
		Mu:    0,
		Sigma: 0.5 * math.Sqrt(1+det.Vel()+det.Eta()*c.t*c.xi/2),
		Src:   src,
	}
	gain := complex(math.Sqrt(c.t*det.Eta()/2), 0)
	out := make([]complex128, len(symbols))
	for i, s := range symbols {
		out[i] = gain*s + complex(noise.Rand(), noise.Rand())
	}
	return out
}
