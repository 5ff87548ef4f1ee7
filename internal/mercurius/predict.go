package mercurius

import (
	"math"

	"github.com/san-kum/mercurius/internal/dynamo"
)

// predictEncounters flags every pair whose separation may drop below
// encounterFactor times the larger critical radius during the step. The
// squared separation is interpolated by a cubic Hermite polynomial between
// the pre-drift state in phold and the post-drift state in ph.
func (in *Integrator) predictEncounters(sys *dynamo.System) {
	n := len(in.ph)
	nActive := sys.ActiveCount()
	dt := sys.Dt

	in.encounterN = 0
	for i := range in.encounter {
		in.encounter[i] = false
	}

	for i := 1; i < nActive; i++ {
		for j := i + 1; j < n; j++ {
			rmin := minSeparation2(in.phold[i], in.phold[j], in.ph[i], in.ph[j], dt)
			rchange := math.Max(in.rhill[i], in.rhill[j])
			if math.Sqrt(rmin) >= encounterFactor*rchange {
				continue
			}
			in.flag(i)
			in.flag(j)
		}
	}

	if in.encounterN > in.Stats.MaxEncounterN {
		in.Stats.MaxEncounterN = in.encounterN
	}
}

func (in *Integrator) flag(i int) {
	if !in.encounter[i] {
		in.encounter[i] = true
		in.encounterN++
	}
}

// minSeparation2 bounds the squared distance between two bodies over a step
// of length dt, given both bodies at the start (oi, oj) and end (ni, nj).
func minSeparation2(oi, oj, ni, nj dynamo.Particle, dt float64) float64 {
	dxo := oi.Pos.Sub(oj.Pos)
	dvo := oi.Vel.Sub(oj.Vel)
	dxn := ni.Pos.Sub(nj.Pos)
	dvn := ni.Vel.Sub(nj.Vel)

	ro := dxo.Dot(dxo)
	rn := dxn.Dot(dxn)
	drodt := 2 * dxo.Dot(dvo)
	drndt := 2 * dxn.Dot(dvn)

	rmin := math.Min(ro, rn)
	for _, t := range stationaryPoints(ro, rn, drodt, drndt, dt) {
		r := hermite(t, ro, rn, drodt, drndt, dt)
		rmin = math.Min(math.Max(r, 0), rmin)
	}
	return rmin
}

// stationaryPoints returns the roots in (0, 1) of the derivative of the
// interpolant.
func stationaryPoints(ro, rn, drodt, drndt, dt float64) []float64 {
	a := 6*(ro-rn) + 3*dt*(drodt+drndt)
	b := 6*(rn-ro) - 2*dt*(2*drodt+drndt)
	c := dt * drodt

	var roots [2]float64
	k := 0
	add := func(t float64) {
		if t > 0 && t < 1 {
			roots[k] = t
			k++
		}
	}

	if a == 0 {
		if b != 0 {
			add(-c / b)
		}
		return roots[:k]
	}

	s := b*b - 4*a*c
	if s < 0 {
		return nil
	}
	sr := math.Sqrt(s)
	add((-b + sr) / (2 * a))
	add((-b - sr) / (2 * a))
	return roots[:k]
}

func hermite(t, ro, rn, drodt, drndt, dt float64) float64 {
	u := 1 - t
	return u*u*(1+2*t)*ro +
		t*t*(3-2*t)*rn +
		t*u*u*dt*drodt -
		t*t*u*dt*drndt
}
