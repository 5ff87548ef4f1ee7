package mercurius

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/mercurius/internal/dynamo"
)

// encounterView holds the flagged subset while it is swapped into the
// system, along with the global state needed to swap it back.
type encounterView struct {
	particles []dynamo.Particle
	rhill     []float64
	// index maps a subset position to its global index. It shrinks
	// together with the subset when bodies merge.
	index []int

	full          []dynamo.Particle
	globalN       int
	globalNActive int
	t, dt         float64
}

func (v *encounterView) reserve(n int) {
	if n > maxParticles {
		panic(fmt.Errorf("%w: %d encounter particles", dynamo.ErrAllocation, n))
	}
	if cap(v.particles) < n {
		v.particles = make([]dynamo.Particle, 0, n)
		v.rhill = make([]float64, 0, n)
		v.index = make([]int, 0, n)
	}
	v.particles = v.particles[:0]
	v.rhill = v.rhill[:0]
	v.index = v.index[:0]
}

func (v *encounterView) remove(i int) {
	v.rhill = append(v.rhill[:i], v.rhill[i+1:]...)
	v.index = append(v.index[:i], v.index[i+1:]...)
}

// enter swaps the flagged bodies into sys. They start from their pre-drift
// canonical state with their current physical radius.
func (in *Integrator) enter(sys *dynamo.System) {
	v := &in.enc
	v.globalN = sys.N()
	v.globalNActive = sys.NActive
	v.t = sys.T
	v.dt = sys.Dt
	v.reserve(in.encounterN)

	nActive := 0
	for i := 0; i < v.globalN; i++ {
		if !in.encounter[i] {
			continue
		}
		p := in.phold[i]
		p.R = sys.Particles[i].R
		p.Acc = mgl64.Vec3{}
		v.particles = append(v.particles, p)
		v.rhill = append(v.rhill, in.rhill[i])
		v.index = append(v.index, i)
		if v.globalNActive == dynamo.AllActive || i < v.globalNActive {
			nActive++
		}
	}

	v.full = sys.Particles
	sys.Particles = v.particles
	sys.NActive = nActive
	if v.globalNActive == dynamo.AllActive {
		sys.NActive = dynamo.AllActive
	}
	sys.SetRemoveHook(v.remove)
	in.mode = dynamo.ModeEncounter
}

// exit writes the subset back into the canonical state and restores the
// global view. It returns the global indices of bodies that were absorbed
// in collisions, in increasing order.
func (in *Integrator) exit(sys *dynamo.System) []int {
	v := &in.enc
	live := sys.Particles

	var absorbed []int
	k := 0
	for i := 0; i < v.globalN; i++ {
		if !in.encounter[i] {
			continue
		}
		if k < len(v.index) && v.index[k] == i {
			p := live[k]
			in.ph[i].Pos = p.Pos
			in.ph[i].Vel = p.Vel
			in.ph[i].M = p.M
			v.full[i].M = p.M
			v.full[i].R = p.R
			k++
			continue
		}
		absorbed = append(absorbed, i)
	}

	sys.SetRemoveHook(nil)
	sys.Particles = v.full
	sys.NActive = v.globalNActive
	sys.T = v.t
	sys.Dt = v.dt
	v.full = nil
	in.mode = dynamo.ModeNormal
	return absorbed
}

// encounterStep integrates the flagged bodies over dt with the adaptive
// stepper, using the full central attraction and the short-range share of
// their mutual forces.
func (in *Integrator) encounterStep(sys *dynamo.System, dt float64) {
	if in.encounterN == 0 {
		return
	}
	in.Stats.EncounterSteps++
	in.enter(sys)

	tNeeded := sys.T + dt
	field := func(ps []dynamo.Particle) {
		in.Evaluator.Accelerations(ps, in.forceContext(sys))
	}

	in.Stepper.Reset()
	sys.Dt = initialSubstep * dt
	in.UpdateAcceleration(sys)

	for sys.T < tNeeded && math.Abs(sys.Dt/dt) > in.StallRatio {
		remaining := tNeeded - sys.T
		done := in.Stepper.Advance(sys, field)
		in.Stats.Substeps++
		if done >= remaining {
			sys.T = tNeeded
		}

		if in.Collider != nil && sys.N() > 0 {
			if removed := in.Collider.Resolve(sys); removed > 0 {
				in.Stats.Collisions += removed
				in.Stepper.Reset()
				in.UpdateAcceleration(sys)
			}
		}

		if sys.T+sys.Dt > tNeeded {
			sys.Dt = tNeeded - sys.T
		}
	}

	if sys.T < tNeeded {
		in.Stats.Stalls++
		in.log.Warn("encounter sub-step stalled before the end of the step",
			slog.Any("error", dynamo.ErrStepTooSmall),
			slog.Float64("t", in.enc.t),
			slog.Float64("covered", (sys.T-in.enc.t)/dt),
			slog.Float64("substep", sys.Dt),
			slog.Int("bodies", sys.N()))
	}

	absorbed := in.exit(sys)
	if len(absorbed) > 0 {
		in.dropAbsorbed(sys, absorbed)
	}
}

// dropAbsorbed removes merged bodies from the global arrays, highest index
// first so that the remaining indices stay valid.
func (in *Integrator) dropAbsorbed(sys *dynamo.System, absorbed []int) {
	for k := len(absorbed) - 1; k >= 0; k-- {
		i := absorbed[k]
		if err := sys.Remove(i); err != nil {
			in.log.Error("dropping merged body", slog.Int("index", i), slog.Any("error", err))
			continue
		}
		in.ph = append(in.ph[:i], in.ph[i+1:]...)
		in.phold = append(in.phold[:i], in.phold[i+1:]...)
		in.rhill = append(in.rhill[:i], in.rhill[i+1:]...)
		in.encounter = append(in.encounter[:i], in.encounter[i+1:]...)
		in.encounterN--
	}
	in.lastN = sys.N()
	in.refreshRhill = true
	in.log.Debug("bodies merged during encounter",
		slog.Int("removed", len(absorbed)),
		slog.Int("n", sys.N()))
}
