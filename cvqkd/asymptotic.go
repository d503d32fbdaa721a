package cvqkd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"

	"github.com/qosst/qosst-sim/cvqkd/modulation"
)

// GaussianChannelAsymptotic computes the exact asymptotic key rate of any
// QAM modulation under a Gaussian channel, the limit the finite-size
// estimator converges to as the number of symbols grows.
type GaussianChannelAsymptotic struct {
	simulator
	snr float64
}

// NewGaussianChannelAsymptotic returns the asymptotic calculator for a
// discrete modulation. Opts.NSymbols and Opts.Rand are ignored.
func NewGaussianChannelAsymptotic(opts Opts) (*GaussianChannelAsymptotic, error) {
	base, err := newSimulator(opts)
	if err != nil {
		return nil, err
	}
	qam, ok := opts.Modulation.(*modulation.QAM)
	if !ok {
		return nil, fmt.Errorf("%w: Gaussian-channel asymptotics require a discrete (QAM) modulation, got %T",
			ErrInvalidParameter, opts.Modulation)
	}
	t := opts.Channel.T()
	base.nB = t * (qam.Va() + opts.Channel.Xi()) / 2
	base.c1 = math.Sqrt(t) * tauTrace(qam)
	base.c2 = math.Sqrt(t) * qam.Va() / 2
	return &GaussianChannelAsymptotic{
		simulator: base,
		snr:       theoreticalSNR(opts.Channel, opts.Detector, qam.Va()),
	}, nil
}

// SNR implements Simulator.
func (s *GaussianChannelAsymptotic) SNR() float64 { return s.snr }

// SKR implements Simulator.
func (s *GaussianChannelAsymptotic) SKR() (float64, error) { return s.keyRate(s.snr) }

// tauTrace returns Re tr(tau_half * a * tau_half * a^T), the exact value
// of c1/sqrt(t) for a Gaussian channel.
func tauTrace(q *modulation.QAM) float64 {
	tauHalf, a := q.TauHalf(), q.Lowering()
	m1 := cmul(tauHalf, a)
	m2 := cmul(m1, tauHalf)
	m3 := cmul(m2, a.T())
	n, _ := m3.Dims()
	var tr complex128
	for i := 0; i < n; i++ {
		tr += m3.At(i, i)
	}
	return real(tr)
}

// cmul returns the matrix product a*b. gonum's mat.CDense has no Mul
// method, so the product is computed by the library's cblas128 backend.
func cmul(a, b mat.CMatrix) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	ad := mat.NewCDense(ar, ac, nil)
	ad.Copy(a)
	bd := mat.NewCDense(br, bc, nil)
	bd.Copy(b)
	out := mat.NewCDense(ar, bc, nil)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, ad.RawCMatrix(), bd.RawCMatrix(), 0, out.RawCMatrix())
	return out
}

// GaussianModulationAsymptotic computes the closed-form asymptotic key
// rate for the jointly Gaussian case: Gaussian modulation over a Gaussian
// channel. No Fock-space machinery is involved.
type GaussianModulationAsymptotic struct {
	simulator
	snr float64
}

// NewGaussianModulationAsymptotic returns the closed-form calculator.
// Opts.Modulation must be a *modulation.Gaussian; Opts.NSymbols and
// Opts.Rand are ignored.
func NewGaussianModulationAsymptotic(opts Opts) (*GaussianModulationAsymptotic, error) {
	base, err := newSimulator(opts)
	if err != nil {
		return nil, err
	}
	if _, ok := opts.Modulation.(*modulation.Gaussian); !ok {
		return nil, fmt.Errorf("%w: Gaussian-modulation asymptotics require a Gaussian modulation, got %T",
			ErrInvalidParameter, opts.Modulation)
	}
	t := opts.Channel.T()
	va := opts.Modulation.Va()
	base.nB = t * (va + opts.Channel.Xi()) / 2
	base.c1 = math.Sqrt(t * va / 2 * (va/2 + 1))
	base.c2 = math.Sqrt(t) * va / 2
	return &GaussianModulationAsymptotic{
		simulator: base,
		snr:       theoreticalSNR(opts.Channel, opts.Detector, va),
	}, nil
}

// SNR implements Simulator.
func (s *GaussianModulationAsymptotic) SNR() float64 { return s.snr }

// SKR implements Simulator.
func (s *GaussianModulationAsymptotic) SKR() (float64, error) { return s.keyRate(s.snr) }

// theoreticalSNR is the exact SNR of a Gaussian channel followed by a
// heterodyne detector, shared by both asymptotic calculators.
func theoreticalSNR(ch GaussianChannel, det Detector, va float64) float64 {
	t, eta := ch.T(), det.Eta()
	return t * va * eta / (2 + 2*det.Vel() + eta*t*ch.Xi())
}
