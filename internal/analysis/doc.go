// Package analysis characterizes integrated orbits.
//
// Two runs started from nearby initial conditions diverge at a rate set by
// the largest Lyapunov exponent. [LyapunovExponent] estimates it from the
// snapshots of a reference run and a perturbed copy:
//
//	lambda := analysis.LyapunovExponent(ref.Snapshots, pert.Snapshots, ref.Times)
//	if lambda > 0 {
//	    // the configuration is chaotic on this timescale
//	}
//
// [OrbitalPeriods] reads the dominant period of every surviving body off
// the Fourier spectrum of its heliocentric x coordinate.
package analysis
