// Package changeover implements the smooth switching function that splits
// pairwise gravity between the symplectic and the encounter part of the
// hybrid integrator.
package changeover

// Inner is the fraction of the critical radius below which the switch is
// fully closed.
const Inner = 0.1

// K returns the weight of the symplectic (far-field) part of the force
// between two bodies at separation r. It is 0 inside Inner*rcrit, 1 beyond
// rcrit and a quintic smoothstep in between, so K, K' and K'' are continuous.
func K(r, rcrit float64) float64 {
	switch {
	case r <= Inner*rcrit:
		return 0
	case r >= rcrit:
		return 1
	}
	y := (r - Inner*rcrit) / ((1 - Inner) * rcrit)
	return y * y * y * (10 - 15*y + 6*y*y)
}

// DKDR is the derivative of K with respect to r.
func DKDR(r, rcrit float64) float64 {
	w := (1 - Inner) * rcrit
	y := (r - Inner*rcrit) / w
	if y <= 0 || y >= 1 {
		return 0
	}
	return 30 * y * y * (1 - 2*y + y*y) / w
}
