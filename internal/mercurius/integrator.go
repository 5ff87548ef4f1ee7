package mercurius

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/san-kum/mercurius/internal/collision"
	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/gravity"
	"github.com/san-kum/mercurius/internal/integrators"
	"github.com/san-kum/mercurius/internal/transform"
)

const (
	DefaultRcritFactor = 3.0
	DefaultStallRatio  = 1e-14

	// initialSubstep is the first encounter sub-step as a fraction of the
	// outer step.
	initialSubstep = 1e-4

	// encounterFactor widens the critical radius for the encounter test.
	encounterFactor = 1.1

	maxParticles = 1 << 28
)

type Stats struct {
	Steps          int
	EncounterSteps int
	Substeps       int
	Stalls         int
	Collisions     int
	MaxEncounterN  int
}

type Integrator struct {
	Coordinates dynamo.Coordinates
	// RcritFactor scales the Hill radius term of the critical radius.
	RcritFactor float64
	// SafeMode synchronizes after every step.
	SafeMode bool
	// RecalculateHeliocentric and RecalculateRhill are set by the caller
	// after changing masses, radii or coordinates of the particles.
	RecalculateHeliocentric bool
	RecalculateRhill        bool
	// StallRatio is the sub-step to step ratio below which an encounter
	// integration gives up.
	StallRatio float64

	Evaluator dynamo.ForceEvaluator
	Stepper   dynamo.Stepper
	// Collider may be nil, in which case encounters never merge bodies.
	Collider dynamo.Collider

	Stats Stats

	log *slog.Logger

	mode         dynamo.Mode
	synchronized bool
	refreshRhill bool
	m0           float64
	lastN        int

	allocatedN int
	ph         []dynamo.Particle
	phold      []dynamo.Particle
	rhill      []float64
	encounter  []bool
	encounterN int

	enc encounterView
}

// New returns an integrator with the default MERCURIUS gravity, an RK45
// encounter stepper and no collision handling. A nil logger discards all
// diagnostics.
func New(logger *slog.Logger) *Integrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	in := &Integrator{
		Evaluator: gravity.NewMercurius(),
		Stepper:   integrators.NewRK45(),
		log:       logger.With(slog.String("component", "mercurius")),
	}
	in.Reset()
	return in
}

// WithCollisions installs a direct collision search that merges bodies
// during encounters.
func (in *Integrator) WithCollisions() *Integrator {
	in.Collider = collision.NewDirect(in.log)
	return in
}

func (in *Integrator) Mode() dynamo.Mode { return in.mode }

func (in *Integrator) IsSynchronized() bool { return in.synchronized }

func (in *Integrator) EncounterN() int { return in.encounterN }

// CriticalRadii returns the per-body changeover radii. The slice is owned by
// the integrator.
func (in *Integrator) CriticalRadii() []float64 { return in.rhill }

// InEncounter reports whether body i was flagged by the last prediction.
func (in *Integrator) InEncounter(i int) bool {
	return i >= 0 && i < len(in.encounter) && in.encounter[i]
}

// Canonical returns the canonical state. It is owned by the integrator.
func (in *Integrator) Canonical() []dynamo.Particle { return in.ph }

// Reset releases every buffer and restores the default configuration.
func (in *Integrator) Reset() {
	in.mode = dynamo.ModeNormal
	in.encounterN = 0
	in.Coordinates = dynamo.DemocraticHeliocentric
	in.RcritFactor = DefaultRcritFactor
	in.StallRatio = DefaultStallRatio
	in.SafeMode = false
	in.RecalculateHeliocentric = false
	in.RecalculateRhill = false
	in.synchronized = true
	in.refreshRhill = false
	in.m0 = 0
	in.lastN = 0
	in.Stats = Stats{}

	in.allocatedN = 0
	in.ph = nil
	in.phold = nil
	in.rhill = nil
	in.encounter = nil
	in.enc = encounterView{}
}

func (in *Integrator) allocate(n int) {
	if n < 0 || n > maxParticles {
		panic(fmt.Errorf("%w: %d particles", dynamo.ErrAllocation, n))
	}
	if in.allocatedN < n {
		in.allocatedN = n
		in.ph = append(make([]dynamo.Particle, 0, n), in.ph...)
		in.phold = append(make([]dynamo.Particle, 0, n), in.phold...)
		in.rhill = append(make([]float64, 0, n), in.rhill...)
		in.encounter = append(make([]bool, 0, n), in.encounter...)
	}
	in.ph = in.ph[:n]
	in.phold = in.phold[:n]
	in.rhill = in.rhill[:n]
	in.encounter = in.encounter[:n]
}

func (in *Integrator) forceContext(sys *dynamo.System) dynamo.ForceContext {
	ctx := dynamo.ForceContext{
		Mode:        in.mode,
		Coordinates: in.Coordinates,
		G:           sys.G,
		NActive:     sys.NActive,
		Rcrit:       in.rhill,
		CentralMass: in.m0,
	}
	if in.mode == dynamo.ModeEncounter {
		ctx.Rcrit = in.enc.rhill
	}
	return ctx
}

// UpdateAcceleration evaluates the forces on the live particle array for the
// current mode.
func (in *Integrator) UpdateAcceleration(sys *dynamo.System) {
	in.Evaluator.Accelerations(sys.Particles, in.forceContext(sys))
}

// Part1 prepares the buffers and coordinates for the next step.
func (in *Integrator) Part1(sys *dynamo.System) {
	if sys.VarConfigN > 0 {
		in.log.Warn("MERCURIUS does not work with variational equations")
	}
	n := sys.N()
	if n == 0 {
		return
	}

	if n != in.lastN || in.allocatedN < n {
		in.RecalculateHeliocentric = true
		in.RecalculateRhill = true
		if !in.synchronized && len(in.ph) != n {
			in.log.Warn("particle count changed while not synchronized, synchronizing the previous bodies",
				slog.Int("before", len(in.ph)), slog.Int("after", n))
			in.Synchronize(sys)
		}
	}
	in.allocate(n)
	in.lastN = n

	if in.SafeMode || in.RecalculateHeliocentric {
		in.RecalculateHeliocentric = false
		if !in.synchronized {
			in.Synchronize(sys)
			in.log.Warn("recalculating heliocentric coordinates but pos/vel were not synchronized before")
		}
		in.m0 = sys.Particles[0].M
		transform.ToCanonical(in.Coordinates, sys.Particles, in.ph)
	}

	if in.RecalculateRhill || in.refreshRhill {
		if !in.synchronized {
			in.Synchronize(sys)
			if !in.refreshRhill {
				in.log.Warn("recalculating critical radii but pos/vel were not synchronized before")
			}
		}
		in.RecalculateRhill = false
		in.refreshRhill = false
		in.criticalRadii(sys)
	}

	if !in.synchronized {
		transform.ToInertialPos(in.Coordinates, sys.Particles, in.ph)
	}

	if sys.Gravity != dynamo.GravityBasic && sys.Gravity != dynamo.GravityMercurius {
		in.log.Warn("MERCURIUS has its own gravity routine, the configured one is ignored",
			slog.String("gravity", sys.Gravity.String()))
	}
	sys.Gravity = dynamo.GravityMercurius
	in.mode = dynamo.ModeNormal
}

// Part2 advances the system by sys.Dt. Accelerations must have been
// evaluated after Part1.
func (in *Integrator) Part2(sys *dynamo.System) {
	if sys.N() == 0 {
		return
	}
	dt := sys.Dt

	if in.synchronized {
		in.interactionStep(sys, dt/2)
	} else {
		in.interactionStep(sys, dt)
	}
	in.jumpStep(sys, dt/2)
	in.comStep(dt)

	copy(in.phold, in.ph)
	in.keplerStep(sys, dt)

	in.predictEncounters(sys)
	in.encounterStep(sys, dt)

	in.jumpStep(sys, dt/2)

	in.synchronized = false
	sys.DtLastDone = dt
	if in.SafeMode {
		in.Synchronize(sys)
	}

	sys.T += dt
	in.Stats.Steps++
}

// Step runs Part1, a force evaluation and Part2.
func (in *Integrator) Step(sys *dynamo.System) {
	in.Part1(sys)
	if sys.N() == 0 {
		return
	}
	in.UpdateAcceleration(sys)
	in.Part2(sys)
}

// Synchronize applies the pending half-kick and writes consistent inertial
// positions and velocities into sys. It is a no-op when already
// synchronized. When bodies were added or removed since the last step, the
// kick is applied to the bodies that took part in it.
func (in *Integrator) Synchronize(sys *dynamo.System) {
	if in.synchronized {
		return
	}
	if sys.N() == 0 || len(in.ph) == 0 {
		in.synchronized = true
		return
	}
	if len(in.ph) != sys.N() {
		in.synchronizeResized(sys)
		return
	}
	in.synchronize(sys)
}

func (in *Integrator) synchronize(sys *dynamo.System) {
	dt := sys.DtLastDone
	if dt == 0 {
		dt = sys.Dt
	}

	transform.ToInertialPos(in.Coordinates, sys.Particles, in.ph)
	in.mode = dynamo.ModeNormal
	in.UpdateAcceleration(sys)
	in.interactionStep(sys, dt/2)
	transform.ToInertial(in.Coordinates, sys.Particles, in.ph)

	in.synchronized = true
}

// synchronizeResized synchronizes against a view holding exactly the bodies
// of the last step. The index-aligned prefix is shared with sys; bodies
// removed from the tail are stood in for by their canonical mass so the
// barycenter stays consistent. Bodies appended since then are left as given.
func (in *Integrator) synchronizeResized(sys *dynamo.System) {
	m := len(in.ph)
	n := sys.N()
	full := sys.Particles
	nActive := sys.NActive

	var view []dynamo.Particle
	if n > m {
		view = full[:m]
	} else {
		view = make([]dynamo.Particle, m)
		copy(view, full)
		for i := n; i < m; i++ {
			view[i] = dynamo.Particle{M: in.ph[i].M, R: in.ph[i].R, ID: in.ph[i].ID}
		}
	}

	sys.Particles = view
	if sys.NActive > m {
		sys.NActive = dynamo.AllActive
	}
	in.synchronize(sys)
	sys.Particles = full
	sys.NActive = nActive

	if n < m {
		copy(full, view[:n])
	}
}
