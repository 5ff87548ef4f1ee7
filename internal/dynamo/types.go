package dynamo

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AllActive is the NActive sentinel meaning every body exerts gravity.
const AllActive = -1

type Particle struct {
	Pos mgl64.Vec3
	Vel mgl64.Vec3
	Acc mgl64.Vec3
	M   float64
	R   float64
	ID  int
}

func (p Particle) IsValid() bool {
	for i := 0; i < 3; i++ {
		for _, v := range [...]float64{p.Pos[i], p.Vel[i]} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return !math.IsNaN(p.M) && !math.IsInf(p.M, 0)
}

func CloneParticles(ps []Particle) []Particle {
	c := make([]Particle, len(ps))
	copy(c, ps)
	return c
}

// Mode tells the force evaluator which part of the split Hamiltonian it is
// evaluating.
type Mode int

const (
	ModeNormal Mode = iota
	ModeEncounter
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeEncounter:
		return "encounter"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Coordinates selects the canonical coordinate system of the integrator.
type Coordinates int

const (
	DemocraticHeliocentric Coordinates = iota
	WHDS
)

func (c Coordinates) String() string {
	switch c {
	case DemocraticHeliocentric:
		return "democraticheliocentric"
	case WHDS:
		return "whds"
	default:
		return fmt.Sprintf("Coordinates(%d)", int(c))
	}
}

func ParseCoordinates(s string) (Coordinates, error) {
	switch s {
	case "", "dh", "democraticheliocentric", "democratic_heliocentric":
		return DemocraticHeliocentric, nil
	case "whds":
		return WHDS, nil
	}
	return 0, fmt.Errorf("%w: unknown coordinates %q", ErrParameterBounds, s)
}

type GravityKind int

const (
	GravityBasic GravityKind = iota
	GravityCompensated
	GravityTree
	GravityMercurius
)

func (g GravityKind) String() string {
	switch g {
	case GravityBasic:
		return "basic"
	case GravityCompensated:
		return "compensated"
	case GravityTree:
		return "tree"
	case GravityMercurius:
		return "mercurius"
	default:
		return fmt.Sprintf("GravityKind(%d)", int(g))
	}
}

// ForceContext carries everything a force evaluator needs besides the
// particle array itself.
type ForceContext struct {
	Mode        Mode
	Coordinates Coordinates
	G           float64
	NActive     int
	// Rcrit holds one critical radius per particle, index aligned.
	Rcrit []float64
	// CentralMass is the mass of the body the encounter subset orbits.
	// Only used in ModeEncounter, where the central body is not part of
	// the particle array.
	CentralMass float64
}

// ActiveCount resolves the AllActive sentinel against n particles.
func (c ForceContext) ActiveCount(n int) int {
	if c.NActive < 0 || c.NActive > n {
		return n
	}
	return c.NActive
}

type ForceEvaluator interface {
	Accelerations(ps []Particle, ctx ForceContext)
}

// Field fills the Acc of every particle from the current positions.
type Field func(ps []Particle)

type Stepper interface {
	Reset()
	// Advance takes one adaptive step of at most sys.Dt, advances sys.T by
	// the step actually taken and stores the suggested next step in sys.Dt.
	// Accelerations are current on entry and are left current for the new
	// state on return.
	Advance(sys *System, field Field) float64
}

type Collider interface {
	// Resolve searches sys for collisions, resolves them and returns the
	// number of particles removed.
	Resolve(sys *System) int
}

type Hamiltonian interface {
	Energy(ps []Particle, g float64) float64
}

type Metric interface {
	Name() string
	Observe(sys *System)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(sys *System)
}

type System struct {
	Particles []Particle
	NActive   int
	G         float64
	T         float64
	Dt        float64
	// DtLastDone is the step size used by the most recent completed step.
	DtLastDone float64
	Gravity    GravityKind
	// VarConfigN counts variational particle sets; the hybrid integrator
	// does not support them.
	VarConfigN int

	onRemove func(i int)
}

func NewSystem(g, dt float64) *System {
	return &System{
		NActive: AllActive,
		G:       g,
		Dt:      dt,
	}
}

func (s *System) N() int { return len(s.Particles) }

func (s *System) ActiveCount() int {
	if s.NActive < 0 || s.NActive > len(s.Particles) {
		return len(s.Particles)
	}
	return s.NActive
}

func (s *System) Add(p Particle) {
	if p.ID == 0 {
		p.ID = len(s.Particles) + 1
	}
	s.Particles = append(s.Particles, p)
}

// Remove deletes particle i keeping the order of the remaining particles.
func (s *System) Remove(i int) error {
	if i < 0 || i >= len(s.Particles) {
		return fmt.Errorf("%w: remove index %d of %d", ErrDimensionMismatch, i, len(s.Particles))
	}
	copy(s.Particles[i:], s.Particles[i+1:])
	s.Particles = s.Particles[:len(s.Particles)-1]
	if s.NActive > 0 && i < s.NActive {
		s.NActive--
	}
	if s.onRemove != nil {
		s.onRemove(i)
	}
	return nil
}

// SetRemoveHook installs fn to be called after every Remove. Integrators use
// it to keep index-aligned buffers in step with the particle array.
func (s *System) SetRemoveHook(fn func(i int)) { s.onRemove = fn }

func (s *System) IsValid() bool {
	for _, p := range s.Particles {
		if !p.IsValid() {
			return false
		}
	}
	return true
}

type Config struct {
	Dt            float64
	Duration      float64
	SnapshotEvery int
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		SnapshotEvery: 10,
		ValidateState: true,
	}
}

type Result struct {
	Snapshots   [][]Particle
	Times       []float64
	Energies    []float64
	Metrics     map[string]float64
	EnergyDrift float64
	StepsTaken  int
	Errors      []error
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
