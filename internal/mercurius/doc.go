// Package mercurius implements a hybrid symplectic integrator for
// planetary systems.
//
// Well separated bodies are advanced with a Wisdom-Holman style splitting
// in canonical heliocentric coordinates:
//
//	interaction(dt/2) jump(dt/2) com(dt) kepler(dt) jump(dt/2) interaction(dt/2)
//
// Before each step's Kepler drift is committed, every pair of bodies is
// checked for a close approach during the step. Bodies that come within
// 1.1 times their critical radius are integrated again over the same
// interval by an adaptive high-order stepper, starting from their pre-drift
// state and including the short-range share of their mutual gravity.
//
// The last interaction half-kick of a step is deferred and merged with the
// first kick of the next one. While a kick is pending the integrator is
// unsynchronized; [Integrator.Synchronize] applies it and restores a
// consistent inertial particle array.
//
// # Usage
//
//	sys := dynamo.NewSystem(1, 0.05)
//	sys.Add(dynamo.Particle{M: 1})
//	sys.Add(planet)
//	in := mercurius.New(logger)
//	for i := 0; i < steps; i++ {
//	    in.Step(sys)
//	}
//	in.Synchronize(sys)
package mercurius
