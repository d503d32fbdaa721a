package cvqkd

import "math"

// G is the von Neumann entropy of a thermal state with mean photon number
// x, in bits. Defined for x > 0; callers must guarantee the symplectic
// eigenvalues they derive x from strictly exceed 1 before forming (v-1)/2.
func G(x float64) float64 {
	return (x+1)*math.Log2(x+1) - x*math.Log2(x)
}

// Delta is the first coefficient of the characteristic polynomial whose
// roots are the squared symplectic eigenvalues of a two-mode covariance
// matrix with blocks V, W, Z.
func Delta(v, w, z float64) float64 {
	return v*v + w*w - 2*z*z
}

// Gamma is the second coefficient, the determinant term, of the same
// polynomial.
func Gamma(v, w, z float64) float64 {
	return v*v*w*w - 2*v*w*z*z + z*z*z*z
}

// Kron is Kronecker's delta on integers.
func Kron(i, j int) int {
	if i == j {
		return 1
	}
	return 0
}

// Transmission returns the transmittance of a standard optical fiber of
// the given length in km, assuming 0.2 dB/km attenuation.
func Transmission(distanceKm float64) float64 {
	return math.Pow(10, -0.02*distanceKm)
}
