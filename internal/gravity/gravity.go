// Package gravity evaluates gravitational accelerations for a particle
// array. Basic is plain direct summation; Mercurius splits every pair
// force with the changeover function so that the symplectic and the
// encounter part of the hybrid integrator each see their share.
package gravity

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/mercurius/internal/changeover"
	"github.com/san-kum/mercurius/internal/dynamo"
)

type Basic struct {
	Softening float64
}

func NewBasic() *Basic {
	return &Basic{}
}

func (b *Basic) Accelerations(ps []dynamo.Particle, ctx dynamo.ForceContext) {
	n := len(ps)
	nActive := ctx.ActiveCount(n)
	eps2 := b.Softening * b.Softening

	for i := range ps {
		ps[i].Acc = mgl64.Vec3{}
	}

	for i := 0; i < nActive; i++ {
		for j := i + 1; j < n; j++ {
			d := ps[j].Pos.Sub(ps[i].Pos)
			r2 := d.Dot(d) + eps2
			rInv := 1.0 / math.Sqrt(r2)
			r3Inv := rInv * rInv * rInv

			if j < nActive {
				ps[i].Acc = ps[i].Acc.Add(d.Mul(ctx.G * ps[j].M * r3Inv))
			}
			ps[j].Acc = ps[j].Acc.Sub(d.Mul(ctx.G * ps[i].M * r3Inv))
		}
	}
}

// Mercurius is the blended evaluator. In ModeNormal it skips the central
// body and weights each pair by K(r, max(rcrit_i, rcrit_j)). In
// ModeEncounter the particles are a heliocentric subset: each body feels the
// full central attraction plus the (1-K) share of its pair forces.
type Mercurius struct {
	Softening float64
}

func NewMercurius() *Mercurius {
	return &Mercurius{}
}

func (m *Mercurius) Accelerations(ps []dynamo.Particle, ctx dynamo.ForceContext) {
	for i := range ps {
		ps[i].Acc = mgl64.Vec3{}
	}
	switch ctx.Mode {
	case dynamo.ModeEncounter:
		m.encounter(ps, ctx)
	default:
		m.normal(ps, ctx)
	}
}

func rcritOf(ctx dynamo.ForceContext, i, j int) float64 {
	if i >= len(ctx.Rcrit) || j >= len(ctx.Rcrit) {
		return 0
	}
	return math.Max(ctx.Rcrit[i], ctx.Rcrit[j])
}

func (m *Mercurius) normal(ps []dynamo.Particle, ctx dynamo.ForceContext) {
	n := len(ps)
	nActive := ctx.ActiveCount(n)
	eps2 := m.Softening * m.Softening

	for i := 1; i < nActive; i++ {
		for j := i + 1; j < n; j++ {
			d := ps[j].Pos.Sub(ps[i].Pos)
			r := math.Sqrt(d.Dot(d) + eps2)
			k := changeover.K(r, rcritOf(ctx, i, j))
			if k == 0 {
				continue
			}
			prefact := ctx.G * k / (r * r * r)

			if j < nActive {
				ps[i].Acc = ps[i].Acc.Add(d.Mul(prefact * ps[j].M))
			}
			ps[j].Acc = ps[j].Acc.Sub(d.Mul(prefact * ps[i].M))
		}
	}
}

func (m *Mercurius) encounter(ps []dynamo.Particle, ctx dynamo.ForceContext) {
	n := len(ps)
	nActive := ctx.ActiveCount(n)
	eps2 := m.Softening * m.Softening
	m0 := ctx.CentralMass

	for i := 0; i < nActive; i++ {
		for j := i + 1; j < n; j++ {
			d := ps[j].Pos.Sub(ps[i].Pos)
			r := math.Sqrt(d.Dot(d) + eps2)
			w := 1 - changeover.K(r, rcritOf(ctx, i, j))
			if w == 0 {
				continue
			}
			prefact := ctx.G * w / (r * r * r)

			if j < nActive {
				ps[i].Acc = ps[i].Acc.Add(d.Mul(prefact * ps[j].M))
			}
			ps[j].Acc = ps[j].Acc.Sub(d.Mul(prefact * ps[i].M))
		}
	}

	for i := range ps {
		gm := ctx.G * m0
		if ctx.Coordinates == dynamo.WHDS && m0 > 0 {
			// pair forces act on the canonical momentum
			ps[i].Acc = ps[i].Acc.Mul((m0 + ps[i].M) / m0)
			gm = ctx.G * (m0 + ps[i].M)
		}
		r := ps[i].Pos.Len()
		if r == 0 {
			continue
		}
		ps[i].Acc = ps[i].Acc.Sub(ps[i].Pos.Mul(gm / (r * r * r)))
	}
}

// Energy is the total inertial energy of ps, kinetic plus pairwise
// potential, with every body treated as active.
func Energy(ps []dynamo.Particle, g float64) float64 {
	ke, pe := 0.0, 0.0
	for i := range ps {
		ke += 0.5 * ps[i].M * ps[i].Vel.Dot(ps[i].Vel)
		for j := i + 1; j < len(ps); j++ {
			r := ps[j].Pos.Sub(ps[i].Pos).Len()
			if r > 0 {
				pe -= g * ps[i].M * ps[j].M / r
			}
		}
	}
	return ke + pe
}

// AngularMomentum is the total angular momentum of ps about the origin.
func AngularMomentum(ps []dynamo.Particle) mgl64.Vec3 {
	var l mgl64.Vec3
	for _, p := range ps {
		l = l.Add(p.Pos.Cross(p.Vel).Mul(p.M))
	}
	return l
}
