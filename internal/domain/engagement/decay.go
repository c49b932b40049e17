package engagement

import "math"

// decayFactor returns exp(-lambda * dt) for dt in seconds. Negative dt is
// treated as zero so projections never amplify.
func decayFactor(lambda, dt float64) float64 {
	if dt <= 0 {
		return 1
	}
	return math.Exp(-lambda * dt)
}

// Decay applies exponential time decay to a value over dt seconds.
func Decay(value, lambda, dt float64) float64 {
	return value * decayFactor(lambda, dt)
}
