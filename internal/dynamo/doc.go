// Package dynamo provides the core primitives shared by every part of the
// N-body integrator.
//
// The package defines the particle record, the system handle that owns the
// live particle array, and the collaborator contracts the hybrid integrator
// consumes:
//
//   - [Particle]: mass, radius, position, velocity and acceleration of a body
//   - [System]: the live particle array plus time, step size and gravity kind
//   - [ForceEvaluator]: fills accelerations for a given [ForceContext]
//   - [Stepper]: adaptive high-order integrator used during close encounters
//   - [Collider]: collision search and resolution, may shrink the system
//
// # Thread Safety
//
// A System is NOT thread-safe. While an integrator step is in progress the
// particle array may be swapped for an encounter subset, so callers must not
// touch it concurrently.
package dynamo
