package sim

import "github.com/san-kum/mercurius/internal/dynamo"

// Integrator is the split step interface of the hybrid integrator. Forces
// are evaluated between Part1 and Part2.
type Integrator interface {
	Part1(sys *dynamo.System)
	UpdateAcceleration(sys *dynamo.System)
	Part2(sys *dynamo.System)
	Synchronize(sys *dynamo.System)
}

// finishTolerance is the fraction of a step below which the remaining time
// to the end of a run is treated as round-off.
const finishTolerance = 1e-9
