package cvqkd

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/qosst/qosst-sim/cvqkd/modulation"
)

func mustGaussian(t *testing.T, va float64) *modulation.Gaussian {
	t.Helper()
	m, err := modulation.NewGaussian(va)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func mustBinomial(t *testing.T, dim, size int, va float64) *modulation.QAM {
	t.Helper()
	m, err := modulation.NewBinomial(dim, size, va)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func mustChannel(t *testing.T, tr, xi float64) GaussianChannel {
	t.Helper()
	ch, err := NewGaussianChannel(tr, xi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ch
}

func mustNoisy(t *testing.T, eta, vel float64) NoisyHeterodyne {
	t.Helper()
	det, err := NewNoisyHeterodyne(eta, vel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return det
}

func TestGaussianModulationCovariance(t *testing.T) {
	va := 5.0
	tr := Transmission(10)
	ch := mustChannel(t, tr, 0.02)
	sim, err := NewGaussianModulationAsymptotic(Opts{
		Modulation: mustGaussian(t, va),
		Channel:    ch,
		Detector:   IdealHeterodyne{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, w, z, err := sim.Covariance()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(v-(va+1)) > 1e-12 {
		t.Errorf("V == %v, want %v", v, va+1)
	}
	if want := tr*(va+0.02) + 1; math.Abs(w-want) > 1e-12 {
		t.Errorf("W == %v, want %v", w, want)
	}
	// With w == 0 the bound collapses to Z* = 2*c1.
	if want := 2 * math.Sqrt(tr*va/2*(va/2+1)); math.Abs(z-want) > 1e-12 {
		t.Errorf("Z* == %v, want %v", z, want)
	}
	skr, err := sim.SKR()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skr <= 0 {
		t.Errorf("SKR == %v at 10 km with an ideal detector, want positive", skr)
	}
}

// TestSKRMonotoneInDistance sweeps 0..20 km with the excess noise held
// proportional to 1/t: higher loss must never increase the key rate.
func TestSKRMonotoneInDistance(t *testing.T) {
	det := mustNoisy(t, 0.65, 0.01)
	gauss := mustGaussian(t, 5)
	qam := mustBinomial(t, 64, 4, 5)

	build := map[string]func(ch GaussianChannel) (Simulator, error){
		"gaussian modulation": func(ch GaussianChannel) (Simulator, error) {
			return NewGaussianModulationAsymptotic(Opts{Modulation: gauss, Channel: ch, Detector: det, Beta: 0.95})
		},
		"binomial QAM": func(ch GaussianChannel) (Simulator, error) {
			return NewGaussianChannelAsymptotic(Opts{Modulation: qam, Channel: ch, Detector: det, Beta: 0.95})
		},
	}
	for name, mk := range build {
		t.Run(name, func(t *testing.T) {
			prev := math.Inf(1)
			for d := 0.0; d <= 20; d++ {
				tr := Transmission(d)
				sim, err := mk(mustChannel(t, tr, 0.02/tr))
				if err != nil {
					t.Fatalf("distance %g: %v", d, err)
				}
				skr, err := sim.SKR()
				if err != nil {
					t.Fatalf("distance %g: %v", d, err)
				}
				if skr > prev+1e-12 {
					t.Fatalf("SKR(%g km) == %v, above SKR at previous step %v", d, skr, prev)
				}
				prev = skr
			}
		})
	}
}

// TestFiniteSizeConvergence checks the Monte-Carlo estimator against the
// exact Gaussian-channel calculator on the same modulation.
func TestFiniteSizeConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Monte-Carlo convergence check in short mode")
	}
	qam := mustBinomial(t, 20, 2, 1)
	ch := mustChannel(t, 0.8, 0.2)
	det := mustNoisy(t, 0.7, 0.05)

	asym, err := NewGaussianChannelAsymptotic(Opts{Modulation: qam, Channel: ch, Detector: det})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fin, err := NewFiniteSize(Opts{
		Modulation: qam,
		Channel:    ch,
		Detector:   det,
		NSymbols:   150000,
		Rand:       rand.NewPCG(12345, 67890),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rel := math.Abs(fin.SNR()-asym.SNR()) / asym.SNR(); rel > 0.05 {
		t.Errorf("empirical SNR %v vs exact %v: relative error %v", fin.SNR(), asym.SNR(), rel)
	}
	exact, err := asym.SKR()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := fin.SKR()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-exact) > 0.05 {
		t.Errorf("finite-size SKR %v vs asymptotic %v, want agreement within 0.05", got, exact)
	}
}

func TestFiniteSizeReproducible(t *testing.T) {
	qam := mustBinomial(t, 20, 2, 1)
	ch := mustChannel(t, 0.8, 0.1)
	det := mustNoisy(t, 0.7, 0.05)
	mk := func() *FiniteSize {
		s, err := NewFiniteSize(Opts{
			Modulation: qam,
			Channel:    ch,
			Detector:   det,
			NSymbols:   5000,
			Rand:       rand.NewPCG(7, 11),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return s
	}
	a, b := mk(), mk()

	aAlice, bAlice := a.AliceSymbols(), b.AliceSymbols()
	aBob, bBob := a.BobSymbols(), b.BobSymbols()
	for i := range aAlice {
		if aAlice[i] != bAlice[i] {
			t.Fatalf("alice strings diverge at %d", i)
		}
		if aBob[i] != bBob[i] {
			t.Fatalf("bob strings diverge at %d", i)
		}
	}
	if a.SNR() != b.SNR() {
		t.Errorf("SNR %v != %v for identical seeds", a.SNR(), b.SNR())
	}
	sa, errA := a.SKR()
	sb, errB := b.SKR()
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v, %v", errA, errB)
	}
	if sa != sb {
		t.Errorf("SKR %v != %v for identical seeds", sa, sb)
	}
}

func TestOptsValidation(t *testing.T) {
	qam := mustBinomial(t, 8, 2, 1)
	gauss := mustGaussian(t, 1)
	ch := mustChannel(t, 0.8, 0.1)

	tcs := []struct {
		name string
		make func() (Simulator, error)
	}{
		{name: "nil modulation", make: func() (Simulator, error) {
			return NewGaussianModulationAsymptotic(Opts{Channel: ch, Detector: IdealHeterodyne{}})
		}},
		{name: "nil detector", make: func() (Simulator, error) {
			return NewGaussianModulationAsymptotic(Opts{Modulation: gauss, Channel: ch})
		}},
		{name: "gaussian modulation in finite-size", make: func() (Simulator, error) {
			return NewFiniteSize(Opts{Modulation: gauss, Channel: ch, Detector: IdealHeterodyne{}, NSymbols: 10})
		}},
		{name: "gaussian modulation in QAM asymptotics", make: func() (Simulator, error) {
			return NewGaussianChannelAsymptotic(Opts{Modulation: gauss, Channel: ch, Detector: IdealHeterodyne{}})
		}},
		{name: "QAM in gaussian asymptotics", make: func() (Simulator, error) {
			return NewGaussianModulationAsymptotic(Opts{Modulation: qam, Channel: ch, Detector: IdealHeterodyne{}})
		}},
		{name: "beta above one", make: func() (Simulator, error) {
			return NewGaussianModulationAsymptotic(Opts{Modulation: gauss, Channel: ch, Detector: IdealHeterodyne{}, Beta: 1.5})
		}},
		{name: "zero symbols", make: func() (Simulator, error) {
			return NewFiniteSize(Opts{Modulation: qam, Channel: ch, Detector: IdealHeterodyne{}})
		}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.make(); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("got error %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestDefaultBeta(t *testing.T) {
	gauss := mustGaussian(t, 5)
	ch := mustChannel(t, 0.8, 0.02)
	mk := func(beta float64) float64 {
		sim, err := NewGaussianModulationAsymptotic(Opts{
			Modulation: gauss, Channel: ch, Detector: IdealHeterodyne{}, Beta: beta,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		skr, err := sim.SKR()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return skr
	}
	if def, explicit := mk(0), mk(DefaultBeta); def != explicit {
		t.Errorf("default beta SKR %v != explicit DefaultBeta SKR %v", def, explicit)
	}
}

type stubModulation struct {
	va, w float64
}

func (s stubModulation) Va() float64 { return s.va }
func (s stubModulation) W() float64  { return s.w }

func TestCovarianceNegativeRadicand(t *testing.T) {
	// A non-Gaussian modulation whose estimated nB falls below
	// 2*c2^2/va drives the Z* radicand negative; the error must be a
	// numerical-domain violation, not a silent complex result.
	s := simulator{
		mod:  stubModulation{va: 1, w: 0.1},
		det:  IdealHeterodyne{},
		beta: DefaultBeta,
		nB:   0,
		c2:   1,
	}
	if _, _, _, err := s.Covariance(); !errors.Is(err, ErrNumerical) {
		t.Errorf("got error %v, want ErrNumerical", err)
	}
	if _, err := s.keyRate(1); !errors.Is(err, ErrNumerical) {
		t.Errorf("keyRate error == %v, want ErrNumerical", err)
	}
}
