package cvqkd

import "errors"

var (
	// ErrInvalidParameter reports a constructor precondition violation,
	// e.g. a zero modulation variance or a non-discrete modulation passed
	// to the finite-size simulator.
	ErrInvalidParameter = errors.New("cvqkd: invalid parameter")

	// ErrNumerical reports a numerical-domain violation: a negative
	// radicand, or a symplectic eigenvalue at or below the vacuum value 1.
	// Unlike ErrInvalidParameter it can arise from valid inputs combined
	// with finite-sample noise.
	ErrNumerical = errors.New("cvqkd: numerical domain violation")
)
