package metrics

import (
	"math"

	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/gravity"
)

// Energy tracks the total inertial energy. Value is the last observation.
type Energy struct {
	name    string
	samples int
	current float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(sys *dynamo.System) {
	e.current = gravity.Energy(sys.Particles, sys.G)
	e.samples++
}

func (e *Energy) Value() float64 { return e.current }

func (e *Energy) Reset() {
	e.current = 0
	e.samples = 0
}

// EnergyDrift is the largest relative deviation from the first observed
// energy.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
	ham           dynamo.Hamiltonian
}

// NewEnergyDrift uses ham to evaluate the energy, or the direct-summation
// energy when ham is nil.
func NewEnergyDrift(ham dynamo.Hamiltonian) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		ham:  ham,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(sys *dynamo.System) {
	var energy float64
	if e.ham != nil {
		energy = e.ham.Energy(sys.Particles, sys.G)
	} else {
		energy = gravity.Energy(sys.Particles, sys.G)
	}

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
