package kepler

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Elements describe a two-body orbit. Angles are in radians: Inc is the
// inclination, Node the longitude of the ascending node, Peri the argument
// of pericenter and F the true anomaly.
type Elements struct {
	A    float64
	E    float64
	Inc  float64
	Node float64
	Peri float64
	F    float64
}

// FromElements returns the position and velocity relative to the primary.
func FromElements(gm float64, el Elements) (mgl64.Vec3, mgl64.Vec3, error) {
	if el.E < 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}, fmt.Errorf("eccentricity %g is negative", el.E)
	}
	if el.E == 1 {
		return mgl64.Vec3{}, mgl64.Vec3{}, fmt.Errorf("parabolic orbits are not supported")
	}
	if (el.E < 1 && el.A <= 0) || (el.E > 1 && el.A >= 0) {
		return mgl64.Vec3{}, mgl64.Vec3{}, fmt.Errorf("semi-major axis %g does not match eccentricity %g", el.A, el.E)
	}
	if el.E > 1 && math.Cos(el.F) < -1/el.E {
		return mgl64.Vec3{}, mgl64.Vec3{}, fmt.Errorf("true anomaly %g beyond the hyperbolic asymptote", el.F)
	}

	p := el.A * (1 - el.E*el.E)
	sf, cf := math.Sincos(el.F)
	r := p / (1 + el.E*cf)
	v0 := math.Sqrt(gm / p)

	sO, cO := math.Sincos(el.Node)
	so, co := math.Sincos(el.Peri)
	si, ci := math.Sincos(el.Inc)
	su, cu := math.Sincos(el.Peri + el.F)

	pos := mgl64.Vec3{
		r * (cO*cu - sO*su*ci),
		r * (sO*cu + cO*su*ci),
		r * (si * su),
	}
	vel := mgl64.Vec3{
		v0 * ((el.E+cf)*(-ci*co*sO-cO*so) - sf*(co*cO-ci*so*sO)),
		v0 * ((el.E+cf)*(ci*co*cO-sO*so) - sf*(co*sO+ci*so*cO)),
		v0 * ((el.E+cf)*co*si - sf*si*so),
	}
	return pos, vel, nil
}
