// Package kepler propagates a body along its two-body orbit using universal
// variables, valid for elliptic, parabolic and hyperbolic motion.
package kepler

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	maxIterations = 64
	laguerreOrder = 5.0
	seriesLimit   = 1.0
)

// stumpff returns the Stumpff functions c0..c3 at z.
func stumpff(z float64) (c0, c1, c2, c3 float64) {
	if math.Abs(z) < seriesLimit {
		// c_n(z) = sum_k (-z)^k / (n+2k)!
		term2, term3 := 0.5, 1.0/6.0
		for k := 1; k < 20; k++ {
			c2 += term2
			c3 += term3
			term2 *= -z / float64((2*k+1)*(2*k+2))
			term3 *= -z / float64((2*k+2)*(2*k+3))
			if math.Abs(term3) < 1e-18 && math.Abs(term2) < 1e-18 {
				break
			}
		}
		return 1 - z*c2, 1 - z*c3, c2, c3
	}
	if z > 0 {
		s := math.Sqrt(z)
		c0 = math.Cos(s)
		c1 = math.Sin(s) / s
	} else {
		s := math.Sqrt(-z)
		c0 = math.Cosh(s)
		c1 = math.Sinh(s) / s
	}
	return c0, c1, (1 - c0) / z, (1 - c1) / z
}

// gFuncs evaluates G_n(beta, X) = X^n c_n(beta X^2) for n = 0..3.
func gFuncs(beta, x float64) (g0, g1, g2, g3 float64) {
	c0, c1, c2, c3 := stumpff(beta * x * x)
	x2 := x * x
	return c0, x * c1, x2 * c2, x2 * x * c3
}

// Period returns the orbital period for a bound orbit, or +Inf.
func Period(pos, vel mgl64.Vec3, gm float64) float64 {
	r0 := pos.Len()
	beta := 2*gm/r0 - vel.Dot(vel)
	if beta <= 0 || gm <= 0 {
		return math.Inf(1)
	}
	return 2 * math.Pi * gm / (beta * math.Sqrt(beta))
}

// Drift advances pos and vel along the Kepler orbit about gm for dt. A zero
// gm or a body sitting on the central mass drifts in a straight line.
func Drift(pos, vel mgl64.Vec3, gm, dt float64) (mgl64.Vec3, mgl64.Vec3) {
	r0 := pos.Len()
	if dt == 0 {
		return pos, vel
	}
	if gm <= 0 || r0 == 0 {
		return pos.Add(vel.Mul(dt)), vel
	}

	eta0 := pos.Dot(vel)
	beta := 2*gm/r0 - vel.Dot(vel)
	zeta0 := gm - beta*r0

	x := dt / r0
	if beta > 0 {
		period := 2 * math.Pi * gm / (beta * math.Sqrt(beta))
		if math.Abs(dt) > period {
			dt = math.Mod(dt, period)
		}
		if math.Abs(dt) > 0.1*period {
			x = beta * dt / gm
		} else {
			x = dt / r0
		}
	}

	var g0, g1, g2, g3 float64
	for i := 0; i < maxIterations; i++ {
		g0, g1, g2, g3 = gFuncs(beta, x)
		f := r0*x + eta0*g2 + zeta0*g3 - dt
		fp := r0 + eta0*g1 + zeta0*g2
		fpp := eta0*g0 + zeta0*g1

		disc := (laguerreOrder-1)*(laguerreOrder-1)*fp*fp - laguerreOrder*(laguerreOrder-1)*f*fpp
		den := fp + math.Copysign(math.Sqrt(math.Abs(disc)), fp)
		if den == 0 {
			break
		}
		dx := laguerreOrder * f / den
		x -= dx
		if math.Abs(dx) <= 1e-15*math.Abs(x) || dx == 0 {
			break
		}
	}
	_, g1, g2, _ = gFuncs(beta, x)

	r := r0 + eta0*g1 + zeta0*g2
	f := 1 - gm*g2/r0
	g := r0*g1 + eta0*g2
	fd := -gm * g1 / (r0 * r)
	gd := 1 - gm*g2/r

	return pos.Mul(f).Add(vel.Mul(g)), pos.Mul(fd).Add(vel.Mul(gd))
}

// Energy is the specific two-body energy.
func Energy(pos, vel mgl64.Vec3, gm float64) float64 {
	return 0.5*vel.Dot(vel) - gm/pos.Len()
}

// AngularMomentum is the specific two-body angular momentum vector.
func AngularMomentum(pos, vel mgl64.Vec3) mgl64.Vec3 {
	return pos.Cross(vel)
}
