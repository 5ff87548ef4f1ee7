package mercurius

import (
	"math"

	"github.com/san-kum/mercurius/internal/dynamo"
)

// criticalRadii sets rhill for every body from its current heliocentric
// orbit. Positions come from the canonical state, velocities are taken
// relative to the central body.
func (in *Integrator) criticalRadii(sys *dynamo.System) {
	ps := sys.Particles
	m0 := ps[0].M
	dt := sys.Dt

	in.rhill[0] = 0
	for i := 1; i < len(ps); i++ {
		in.rhill[i] = criticalRadius(
			in.ph[i].Pos.Len(),
			ps[i].Vel.Sub(ps[0].Vel).Len(),
			sys.G, m0, ps[i].M, ps[i].R, dt, in.RcritFactor)
	}
}

// criticalRadius is the largest of four lower bounds on the changeover
// distance: 0.4 of the distance travelled in one step at circular speed and
// at the current speed, a multiple of the Hill radius, and twice the
// physical radius.
func criticalRadius(r, v, g, m0, m, radius, dt, factor float64) float64 {
	gm := g * (m0 + m)
	dt = math.Abs(dt)

	var a, vc float64
	if denom := 2*gm - r*v*v; denom != 0 && r > 0 {
		a = gm * r / denom
	}
	if a != 0 {
		vc = math.Sqrt(gm / math.Abs(a))
	}

	rc := 0.4 * vc * dt
	rc = math.Max(rc, 0.4*v*dt)
	if m0 > 0 {
		rc = math.Max(rc, factor*a*math.Cbrt(m/(3*m0)))
	}
	return math.Max(rc, 2*radius)
}
