package metrics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/gravity"
)

// AngularMomentumDrift is the largest relative change of the total angular
// momentum vector.
type AngularMomentumDrift struct {
	name     string
	initial  mgl64.Vec3
	maxDrift float64
	samples  int
}

func NewAngularMomentumDrift() *AngularMomentumDrift {
	return &AngularMomentumDrift{name: "angular_momentum_drift"}
}

func (a *AngularMomentumDrift) Name() string { return a.name }

func (a *AngularMomentumDrift) Observe(sys *dynamo.System) {
	l := gravity.AngularMomentum(sys.Particles)
	if a.samples == 0 {
		a.initial = l
	}
	a.samples++

	if norm := a.initial.Len(); norm > 0 {
		a.maxDrift = math.Max(a.maxDrift, l.Sub(a.initial).Len()/norm)
	}
}

func (a *AngularMomentumDrift) Value() float64 { return a.maxDrift }

func (a *AngularMomentumDrift) Reset() {
	a.initial = mgl64.Vec3{}
	a.maxDrift = 0
	a.samples = 0
}
