// Package transform converts particle arrays between inertial coordinates
// and the canonical heliocentric coordinates used by the hybrid integrator.
//
// In both variants the canonical record at index 0 holds the barycenter:
// its position, its velocity and the total mass. Records 1..N-1 hold
// positions relative to the central body. Democratic heliocentric
// coordinates use barycentric velocities; WHDS scales them by (m0+mi)/m0 so
// that the Kepler problem of each body is a true two-body problem.
package transform

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/mercurius/internal/dynamo"
)

// ToCanonical converts the inertial particles into ph using the selected
// variant. ph must have at least len(ps) entries.
func ToCanonical(c dynamo.Coordinates, ps, ph []dynamo.Particle) {
	if c == dynamo.WHDS {
		InertialToWHDSPosVel(ps, ph)
		return
	}
	InertialToDemocraticHeliocentricPosVel(ps, ph)
}

// ToInertialPos restores inertial positions only. Velocities of ps are left
// untouched.
func ToInertialPos(c dynamo.Coordinates, ps, ph []dynamo.Particle) {
	if c == dynamo.WHDS {
		WHDSToInertialPos(ps, ph)
		return
	}
	DemocraticHeliocentricToInertialPos(ps, ph)
}

// ToInertial restores inertial positions and velocities.
func ToInertial(c dynamo.Coordinates, ps, ph []dynamo.Particle) {
	if c == dynamo.WHDS {
		WHDSToInertialPosVel(ps, ph)
		return
	}
	DemocraticHeliocentricToInertialPosVel(ps, ph)
}

func barycenter(ps []dynamo.Particle) (pos, vel mgl64.Vec3, mtot float64) {
	for _, p := range ps {
		pos = pos.Add(p.Pos.Mul(p.M))
		vel = vel.Add(p.Vel.Mul(p.M))
		mtot += p.M
	}
	if mtot > 0 {
		pos = pos.Mul(1 / mtot)
		vel = vel.Mul(1 / mtot)
	}
	return pos, vel, mtot
}

func inertialToHeliocentricPos(ps, ph []dynamo.Particle) mgl64.Vec3 {
	pos, vel, mtot := barycenter(ps)
	ph[0].Pos = pos
	ph[0].Vel = vel
	ph[0].M = mtot
	ph[0].R = ps[0].R
	ph[0].ID = ps[0].ID
	for i := 1; i < len(ps); i++ {
		ph[i].Pos = ps[i].Pos.Sub(ps[0].Pos)
		ph[i].M = ps[i].M
		ph[i].R = ps[i].R
		ph[i].ID = ps[i].ID
	}
	return vel
}

func InertialToDemocraticHeliocentricPosVel(ps, ph []dynamo.Particle) {
	if len(ps) == 0 {
		return
	}
	vcom := inertialToHeliocentricPos(ps, ph)
	for i := 1; i < len(ps); i++ {
		ph[i].Vel = ps[i].Vel.Sub(vcom)
	}
}

func InertialToWHDSPosVel(ps, ph []dynamo.Particle) {
	if len(ps) == 0 {
		return
	}
	vcom := inertialToHeliocentricPos(ps, ph)
	m0 := ps[0].M
	for i := 1; i < len(ps); i++ {
		f := (m0 + ps[i].M) / m0
		ph[i].Vel = ps[i].Vel.Sub(vcom).Mul(f)
	}
}

func democraticHeliocentricToInertialPos(ps, ph []dynamo.Particle) {
	if len(ps) == 0 {
		return
	}
	mtot := ph[0].M
	var shift mgl64.Vec3
	for i := 1; i < len(ps); i++ {
		shift = shift.Add(ph[i].Pos.Mul(ps[i].M))
	}
	if mtot > 0 {
		shift = shift.Mul(1 / mtot)
	}
	ps[0].Pos = ph[0].Pos.Sub(shift)
	for i := 1; i < len(ps); i++ {
		ps[i].Pos = ph[i].Pos.Add(ps[0].Pos)
	}
}

func DemocraticHeliocentricToInertialPos(ps, ph []dynamo.Particle) {
	democraticHeliocentricToInertialPos(ps, ph)
}

// WHDSToInertialPos shares the democratic heliocentric inverse: the two
// variants differ only in their velocities.
func WHDSToInertialPos(ps, ph []dynamo.Particle) {
	democraticHeliocentricToInertialPos(ps, ph)
}

// centralVelocity recovers the central body's velocity from total momentum.
func centralVelocity(ps, ph []dynamo.Particle) {
	m0 := ps[0].M
	if m0 == 0 {
		ps[0].Vel = ph[0].Vel
		return
	}
	mom := ph[0].Vel.Mul(ph[0].M)
	for i := 1; i < len(ps); i++ {
		mom = mom.Sub(ps[i].Vel.Mul(ps[i].M))
	}
	ps[0].Vel = mom.Mul(1 / m0)
}

func DemocraticHeliocentricToInertialPosVel(ps, ph []dynamo.Particle) {
	if len(ps) == 0 {
		return
	}
	democraticHeliocentricToInertialPos(ps, ph)
	for i := 1; i < len(ps); i++ {
		ps[i].Vel = ph[i].Vel.Add(ph[0].Vel)
	}
	centralVelocity(ps, ph)
}

func WHDSToInertialPosVel(ps, ph []dynamo.Particle) {
	if len(ps) == 0 {
		return
	}
	democraticHeliocentricToInertialPos(ps, ph)
	m0 := ps[0].M
	for i := 1; i < len(ps); i++ {
		f := m0 / (m0 + ps[i].M)
		ps[i].Vel = ph[i].Vel.Mul(f).Add(ph[0].Vel)
	}
	centralVelocity(ps, ph)
}
