package core

import "math"

// erf approximates the error function via Abramowitz & Stegun 7.1.26.
// Pinned deliberately (§9 Design Notes): replay must be bit-identical
// across language implementations, and the platform's math.Erf is not
// guaranteed to agree with another runtime's. Do not substitute math.Erf.
func erf(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return sign * y
}

// StdNormalCDF computes Φ(x), the standard normal cumulative distribution
// function, via the pinned erf approximation above (§4.1).
func StdNormalCDF(x float64) float64 {
	return 0.5 * (1.0 + erf(x/math.Sqrt2))
}
