package cvqkd

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestNewGaussianChannel(t *testing.T) {
	tcs := []struct {
		name  string
		t, xi float64
		eErr  bool
	}{
		{name: "valid", t: 0.5, xi: 0.02},
		{name: "lossless", t: 1, xi: 0},
		{name: "opaque", t: 0, xi: 0},
		{name: "transmittance above one", t: 1.2, xi: 0, eErr: true},
		{name: "negative transmittance", t: -0.1, xi: 0, eErr: true},
		{name: "negative excess noise", t: 0.5, xi: -0.01, eErr: true},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGaussianChannel(tc.t, tc.xi)
			if tc.eErr && !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("got error %v, want ErrInvalidParameter", err)
			}
			if !tc.eErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSampleOutputReproducible(t *testing.T) {
	ch, err := NewGaussianChannel(0.7, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	det, err := NewNoisyHeterodyne(0.8, 0.02)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	symbols := make([]complex128, 1000)
	for i := range symbols {
		symbols[i] = complex(float64(i%7)-3, float64(i%5)-2)
	}
	a := ch.SampleOutput(symbols, det, rand.NewPCG(1, 2))
	b := ch.SampleOutput(symbols, det, rand.NewPCG(1, 2))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("outputs diverge at %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestSampleOutputMoments(t *testing.T) {
	const n = 200000
	ch, err := NewGaussianChannel(0.6, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	det, err := NewNoisyHeterodyne(0.8, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := ch.SampleOutput(make([]complex128, n), det, rand.NewPCG(3, 4))

	re := make([]float64, n)
	im := make([]float64, n)
	for i, z := range out {
		re[i], im[i] = real(z), imag(z)
	}
	sigma := 0.5 * math.Sqrt(1+det.Vel()+det.Eta()*ch.T()*ch.Xi()/2)
	for _, quad := range [][]float64{re, im} {
		if mean := stat.Mean(quad, nil); math.Abs(mean) > 0.01 {
			t.Errorf("quadrature mean == %v, want ~0", mean)
		}
		if v := stat.Variance(quad, nil); math.Abs(v-sigma*sigma) > 0.03*sigma*sigma {
			t.Errorf("quadrature variance == %v, want ~%v", v, sigma*sigma)
		}
	}
}

func TestSampleOutputGain(t *testing.T) {
	const n = 100000
	ch, err := NewGaussianChannel(0.64, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	symbols := make([]complex128, n)
	for i := range symbols {
		symbols[i] = 10
	}
	out := ch.SampleOutput(symbols, IdealHeterodyne{}, rand.NewPCG(5, 6))
	re := make([]float64, n)
	for i, z := range out {
		re[i] = real(z)
	}
	// sqrt(t*eta/2)*10 with t=0.64, eta=1.
	want := math.Sqrt(0.32) * 10
	if mean := stat.Mean(re, nil); math.Abs(mean-want) > 0.02 {
		t.Errorf("mean == %v, want ~%v", mean, want)
	}
}
