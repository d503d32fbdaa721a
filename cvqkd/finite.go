package cvqkd

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/qosst/qosst-sim/cvqkd/modulation"
)

// FiniteSize is the Monte-Carlo simulator: it exchanges a finite number
// of symbols through the channel and estimates c1, c2 and nB empirically.
// It makes no assumption on the channel model, but the modulation must be
// discrete. The single draw happens in NewFiniteSize; there is no
// resampling method, so a constructed FiniteSize is immutable.
type FiniteSize struct {
	simulator
	mod *modulation.QAM

	alice []complex128
	bob   []complex128
	snr   float64
}

// NewFiniteSize draws opts.NSymbols symbols from the modulation's
// distribution, passes them through the channel, and derives the summary
// statistics. The estimates converge to NewGaussianChannelAsymptotic's
// exact values as NSymbols grows; a finite draw can land below the
// asymptote (or, rarely, outside the physical region, surfacing
// ErrNumerical from SKR), which is expected sampling variance rather than
// a defect.
func NewFiniteSize(opts Opts) (*FiniteSize, error) {
	base, err := newSimulator(opts)
	if err != nil {
		return nil, err
	}
	qam, ok := opts.Modulation.(*modulation.QAM)
	if !ok {
		return nil, fmt.Errorf("%w: finite-size simulation requires a discrete (QAM) modulation, got %T",
			ErrInvalidParameter, opts.Modulation)
	}
	if opts.NSymbols < 1 {
		return nil, fmt.Errorf("%w: NSymbols must be at least 1, got %d", ErrInvalidParameter, opts.NSymbols)
	}

	// Alice's string: categorical draw of constellation indices, sorted
	// so that equal symbols are contiguous and the per-symbol statistics
	// fall out of a single pass.
	cat := distuv.NewCategorical(append([]float64(nil), qam.Distribution()...), opts.Rand)
	idx := make([]int, opts.NSymbols)
	for i := range idx {
		idx[i] = int(cat.Rand())
	}
	sort.Ints(idx)

	constellation := qam.Constellation()
	alice := make([]complex128, len(idx))
	for i, k := range idx {
		alice[i] = constellation[k]
	}

	// Bob's string: channel output rescaled to shot-noise units.
	bob := opts.Channel.SampleOutput(alice, opts.Detector, opts.Rand)
	scale := complex(math.Sqrt(2/opts.Detector.Eta()), 0)
	for i := range bob {
		bob[i] *= scale
	}

	// Per-symbol empirical means and the mean received photon number.
	nPoints := len(constellation)
	counts := make([]int, nPoints)
	sums := make([]complex128, nPoints)
	sqSums := make([]float64, nPoints)
	for i, k := range idx {
		counts[k]++
		sums[k] += bob[i]
		sqSums[k] += abs2(bob[i])
	}
	dist := qam.Distribution()
	betas := make([]complex128, nPoints)
	var nB float64
	for k, n := range counts {
		if n == 0 {
			continue
		}
		betas[k] = sums[k] / complex(float64(n), 0)
		nB += dist[k] * sqSums[k] / float64(n)
	}
	// Shot-noise bias correction. The variant subtracting
	// (1+vel)/eta - 1 instead also appears in the reference derivation;
	// it is deliberately not used here.
	nB -= (1 + opts.Detector.Vel()) / opts.Detector.Eta()

	var c1, c2 complex128
	for k, alpha := range constellation {
		weight := complex(dist[k], 0)
		c1 += weight * cmplx.Conj(qam.ATauExpectation(alpha)) * betas[k]
		c2 += weight * cmplx.Conj(alpha) * betas[k]
	}

	base.nB = nB
	base.c1 = real(c1)
	base.c2 = real(c2)
	s := &FiniteSize{
		simulator: base,
		mod:       qam,
		alice:     alice,
		bob:       bob,
	}
	s.snr = s.empiricalSNR()
	return s, nil
}

// SNR returns the empirical signal-to-shot-noise ratio of the draw.
func (s *FiniteSize) SNR() float64 { return s.snr }

// SKR implements Simulator.
func (s *FiniteSize) SKR() (float64, error) { return s.keyRate(s.snr) }

// AliceSymbols returns a copy of the transmitted string.
func (s *FiniteSize) AliceSymbols() []complex128 {
	return append([]complex128(nil), s.alice...)
}

// BobSymbols returns a copy of the received string in shot-noise units.
func (s *FiniteSize) BobSymbols() []complex128 {
	return append([]complex128(nil), s.bob...)
}

// empiricalSNR estimates the SNR from the correlation between Alice's and
// Bob's quadratures, normalized by Alice's power.
func (s *FiniteSize) empiricalSNR() float64 {
	n := len(s.alice)
	aq, ap := make([]float64, n), make([]float64, n)
	bq, bp := make([]float64, n), make([]float64, n)
	for i := range s.alice {
		aq[i], ap[i] = real(s.alice[i]), imag(s.alice[i])
		bq[i], bp[i] = real(s.bob[i]), imag(s.bob[i])
	}
	alicePower := floats.Dot(aq, aq) + floats.Dot(ap, ap)
	rho := (floats.Dot(aq, bq) + floats.Dot(ap, bp)) / alicePower
	bobPower := floats.Dot(bq, bq) + floats.Dot(bp, bp)
	return 1 / (bobPower/(rho*rho*alicePower) - 1)
}

func abs2(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}
