package mercurius

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/kepler"
)

// keplerChunk is the smallest number of bodies handed to one goroutine.
const keplerChunk = 64

// interactionStep kicks the canonical velocities with the accelerations
// currently stored on the particles.
func (in *Integrator) interactionStep(sys *dynamo.System, dt float64) {
	ps := sys.Particles
	m0 := ps[0].M
	whds := in.Coordinates == dynamo.WHDS && m0 > 0
	for i := 1; i < len(ps); i++ {
		a := ps[i].Acc
		if whds {
			a = a.Mul((m0 + ps[i].M) / m0)
		}
		in.ph[i].Vel = in.ph[i].Vel.Add(a.Mul(dt))
	}
}

// jumpStep shifts the heliocentric positions by the momentum of the other
// bodies. In WHDS each body is excluded from its own shift.
func (in *Integrator) jumpStep(sys *dynamo.System, dt float64) {
	n := len(in.ph)
	m0 := sys.Particles[0].M
	if m0 == 0 {
		return
	}

	var px mgl64.Vec3
	switch in.Coordinates {
	case dynamo.WHDS:
		for i := 1; i < n; i++ {
			m := in.ph[i].M
			px = px.Add(in.ph[i].Vel.Mul(m / (m0 + m)))
		}
		for i := 1; i < n; i++ {
			m := in.ph[i].M
			own := in.ph[i].Vel.Mul(m / (m0 + m))
			in.ph[i].Pos = in.ph[i].Pos.Add(px.Sub(own).Mul(dt))
		}
	default:
		for i := 1; i < n; i++ {
			px = px.Add(in.ph[i].Vel.Mul(in.ph[i].M / m0))
		}
		shift := px.Mul(dt)
		for i := 1; i < n; i++ {
			in.ph[i].Pos = in.ph[i].Pos.Add(shift)
		}
	}
}

// keplerStep drifts every body on its two-body orbit around the central
// mass. Bodies are independent, so the work is split across goroutines.
func (in *Integrator) keplerStep(sys *dynamo.System, dt float64) {
	m0 := sys.Particles[0].M
	g := sys.G
	whds := in.Coordinates == dynamo.WHDS
	ph := in.ph

	dynamo.ParallelFor(len(ph)-1, keplerChunk, func(start, end int) {
		for i := start + 1; i < end+1; i++ {
			gm := g * m0
			if whds {
				gm = g * (m0 + ph[i].M)
			}
			ph[i].Pos, ph[i].Vel = kepler.Drift(ph[i].Pos, ph[i].Vel, gm, dt)
		}
	})
}

// comStep moves the barycenter in a straight line.
func (in *Integrator) comStep(dt float64) {
	in.ph[0].Pos = in.ph[0].Pos.Add(in.ph[0].Vel.Mul(dt))
}
