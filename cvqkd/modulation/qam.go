package modulation

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"

	"github.com/qosst/qosst-sim/cvqkd/herm"
)

// A QAM is a discrete modulation over a regular square lattice
// {x + iy : x, y = -(size-1), -(size-3), ..., (size-1)}, rescaled so that
// the realized variance is exactly va, with a probability distribution
// aligned index-by-index with the constellation.
//
// The coherent states of the constellation live in the infinite Fock
// space; all operators are truncated to dimension dim. There is no bound
// check relating dim to the largest constellation amplitude: callers must
// choose dim with generous headroom above the photon-number support of
// the outermost point (the reference configuration uses dim=105 for
// size=8, va=5), or tau and the coherent-state norms silently lose mass.
//
// A QAM is immutable after construction and safe to share.
type QAM struct {
	dim  int
	size int
	va   float64
	w    float64

	constellation []complex128
	distribution  []float64

	lowering *mat.CDense
	tauHalf  *mat.CDense
	aTau     *mat.CDense

	// sqrtFact[n] = sqrt(n!), accumulated in float64. Exact overflow
	// bound is n = 170, far above any usable truncation.
	sqrtFact []float64
}

// newQAM finishes construction from a scaled constellation and its
// distribution: it builds tau, its principal square root, the truncated
// annihilation operator, a_tau and the leakage term w.
func newQAM(dim, size int, va float64, constellation []complex128, distribution []float64) (*QAM, error) {
	q := &QAM{
		dim:           dim,
		size:          size,
		va:            va,
		constellation: constellation,
		distribution:  distribution,
		sqrtFact:      make([]float64, dim),
	}
	q.sqrtFact[0] = 1
	for n := 1; n < dim; n++ {
		q.sqrtFact[n] = q.sqrtFact[n-1] * math.Sqrt(float64(n))
	}

	// tau[i,j] = sum_k w_k exp(-|a_k|^2) a_k^i conj(a_k)^j / sqrt(i! j!)
	pows := make([][]complex128, len(constellation))
	wexp := make([]float64, len(constellation))
	for k, alpha := range constellation {
		wexp[k] = distribution[k] * math.Exp(-abs2(alpha))
		pows[k] = make([]complex128, dim)
		p := complex(1, 0)
		for i := 0; i < dim; i++ {
			pows[k][i] = p
			p *= alpha
		}
	}
	tau := mat.NewCDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			var sum complex128
			for k := range constellation {
				sum += complex(wexp[k], 0) * pows[k][i] * cmplx.Conj(pows[k][j])
			}
			tau.Set(i, j, sum/complex(q.sqrtFact[i]*q.sqrtFact[j], 0))
		}
	}

	// Truncated annihilation operator: a[i,j] = sqrt(j) for i = j-1.
	q.lowering = mat.NewCDense(dim, dim, nil)
	for j := 1; j < dim; j++ {
		q.lowering.Set(j-1, j, complex(math.Sqrt(float64(j)), 0))
	}

	// tau is Hermitian PSD in exact arithmetic; near the truncation
	// boundary it is only PSD up to floating error and tau_half may be
	// singular, hence the clipped square root and the pseudoinverse.
	tauHalf, err := herm.SqrtPSD(tau, 0)
	if err != nil {
		return nil, fmt.Errorf("modulation: building tau_half: %w", err)
	}
	pinv, err := herm.Pinv(tauHalf, 0)
	if err != nil {
		return nil, fmt.Errorf("modulation: inverting tau_half: %w", err)
	}
	q.tauHalf = tauHalf
	ta := cmul(tauHalf, q.lowering)
	q.aTau = cmul(ta, pinv)

	// w = sum_k w_k ( <psi_k| a_tau^dag a_tau |psi_k> - |<psi_k| a_tau |psi_k>|^2 ),
	// computed as ||a_tau psi||^2 - |<psi, a_tau psi>|^2, which is real by
	// construction.
	for k, alpha := range constellation {
		psi := q.CoherentState(alpha)
		av := matVec(q.aTau, psi)
		m := cdot(psi, av)
		q.w += distribution[k] * (real(cdot(av, av)) - real(m)*real(m) - imag(m)*imag(m))
	}
	return q, nil
}

// Va implements Modulation.
func (q *QAM) Va() float64 { return q.va }

// W implements Modulation.
func (q *QAM) W() float64 { return q.w }

// Dim returns the Fock-space truncation dimension.
func (q *QAM) Dim() int { return q.dim }

// Size returns the side length of the square lattice; the constellation
// has Size^2 points.
func (q *QAM) Size() int { return q.size }

// Constellation returns the ordered constellation amplitudes. The slice
// is shared and must not be modified.
func (q *QAM) Constellation() []complex128 { return q.constellation }

// Distribution returns the probabilities aligned with Constellation. The
// slice is shared and must not be modified.
func (q *QAM) Distribution() []float64 { return q.distribution }

// TauHalf returns the principal square root of the modulation matrix tau
// in the truncated Fock basis. Read-only.
func (q *QAM) TauHalf() *mat.CDense { return q.tauHalf }

// ATau returns tau_half * a * pinv(tau_half). Read-only.
func (q *QAM) ATau() *mat.CDense { return q.aTau }

// Lowering returns the truncated annihilation operator. Read-only.
func (q *QAM) Lowering() *mat.CDense { return q.lowering }

// CoherentState returns the coherent state of amplitude alpha in the
// truncated Fock basis: exp(-|alpha|^2/2) * alpha^n / sqrt(n!).
func (q *QAM) CoherentState(alpha complex128) []complex128 {
	norm := complex(math.Exp(-abs2(alpha)/2), 0)
	psi := make([]complex128, q.dim)
	p := complex(1, 0)
	for n := 0; n < q.dim; n++ {
		psi[n] = norm * p / complex(q.sqrtFact[n], 0)
		p *= alpha
	}
	return psi
}

// ATauExpectation returns <psi_alpha| a_tau |psi_alpha> for the truncated
// coherent state of amplitude alpha.
func (q *QAM) ATauExpectation(alpha complex128) complex128 {
	psi := q.CoherentState(alpha)
	return cdot(psi, matVec(q.aTau, psi))
}

// lattice returns the unscaled square lattice in row-major order: the
// real quadrature varies slowest, matching the distribution orderings of
// the concrete constructors.
func lattice(size int) []complex128 {
	points := make([]complex128, 0, size*size)
	for i := 0; i < size; i++ {
		x := float64(2*i - size + 1)
		for j := 0; j < size; j++ {
			y := float64(2*j - size + 1)
			points = append(points, complex(x, y))
		}
	}
	return points
}

func validateQAM(dim, size int, va float64) error {
	if dim < 1 {
		return fmt.Errorf("%w: dim must be at least 1, got %d", ErrInvalidParameter, dim)
	}
	if size < 2 {
		return fmt.Errorf("%w: size must be at least 2, got %d", ErrInvalidParameter, size)
	}
	if va <= 0 {
		return fmt.Errorf("%w: va must be positive, got %g", ErrInvalidParameter, va)
	}
	return nil
}

func abs2(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}

// cdot returns the Hermitian inner product <a|b> = sum conj(a_i) b_i.
func cdot(a, b []complex128) complex128 {
	var s complex128
	for i := range a {
		s += cmplx.Conj(a[i]) * b[i]
	}
	return s
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

func matVec(m *mat.CDense, v []complex128) []complex128 {
	r, c := m.Dims()
	out := make([]complex128, r)
	for i := 0; i < r; i++ {
		var s complex128
		for j := 0; j < c; j++ {
			s += m.At(i, j) * v[j]
		}
		out[i] = s
	}
	return out
}
