package integrators

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/mercurius/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// tableau row s holds the weights of k1..ks for stage s+1; the last row is
// the fifth-order solution, whose derivative is reused as the next k1.
var tableau = [][]float64{
	{b21},
	{b31, b32},
	{b41, b42, b43},
	{b51, b52, b53, b54},
	{b61, b62, b63, b64, b65},
	{c1, 0, c3, c4, c5, c6},
}

var errWeights = []float64{dc1, 0, dc3, dc4, dc5, dc6, dc7}

const stages = 7

// RK45 is an adaptive Dormand-Prince 5(4) stepper over particle arrays. It
// implements dynamo.Stepper and is used for encounter sub-steps.
type RK45 struct {
	Tolerance  float64
	MaxRejects int

	safety   float64
	minScale float64
	maxScale float64

	x0, v0 []mgl64.Vec3
	kx, kv [stages][]mgl64.Vec3

	Accepted int
	Rejected int
}

func NewRK45() *RK45 {
	return &RK45{
		Tolerance:  1e-12,
		MaxRejects: 32,
		safety:     0.9,
		minScale:   0.2,
		maxScale:   10.0,
	}
}

func (r *RK45) Reset() {
	r.Accepted = 0
	r.Rejected = 0
}

func (r *RK45) ensureScratch(n int) {
	if cap(r.x0) < n {
		r.x0 = make([]mgl64.Vec3, n)
		r.v0 = make([]mgl64.Vec3, n)
		for s := 0; s < stages; s++ {
			r.kx[s] = make([]mgl64.Vec3, n)
			r.kv[s] = make([]mgl64.Vec3, n)
		}
	}
	r.x0 = r.x0[:n]
	r.v0 = r.v0[:n]
	for s := 0; s < stages; s++ {
		r.kx[s] = r.kx[s][:n]
		r.kv[s] = r.kv[s][:n]
	}
}

// Advance expects the accelerations of sys.Particles to be current. The last
// stage is evaluated at the accepted solution, so they are current again on
// return.
func (r *RK45) Advance(sys *dynamo.System, field dynamo.Field) float64 {
	ps := sys.Particles
	n := len(ps)
	r.ensureScratch(n)

	for i := range ps {
		r.x0[i] = ps[i].Pos
		r.v0[i] = ps[i].Vel
		r.kx[0][i] = ps[i].Vel
		r.kv[0][i] = ps[i].Acc
	}

	dt := sys.Dt
	for attempt := 0; ; attempt++ {
		for s, row := range tableau {
			for i := range ps {
				dx, dv := r.combine(row, i)
				ps[i].Pos = r.x0[i].Add(dx.Mul(dt))
				ps[i].Vel = r.v0[i].Add(dv.Mul(dt))
			}
			field(ps)
			for i := range ps {
				r.kx[s+1][i] = ps[i].Vel
				r.kv[s+1][i] = ps[i].Acc
			}
		}

		errRatio := r.errorRatio(dt)
		if errRatio <= 1 || attempt >= r.MaxRejects {
			r.Accepted++
			sys.T += dt
			sys.Dt = dt * r.growth(errRatio)
			return dt
		}

		r.Rejected++
		dt *= math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	}
}

func (r *RK45) combine(row []float64, i int) (dx, dv mgl64.Vec3) {
	for j, w := range row {
		if w == 0 {
			continue
		}
		dx = dx.Add(r.kx[j][i].Mul(w))
		dv = dv.Add(r.kv[j][i].Mul(w))
	}
	return dx, dv
}

func (r *RK45) errorRatio(dt float64) float64 {
	errMax := 0.0
	for i := range r.x0 {
		var ex, ev mgl64.Vec3
		for s, w := range errWeights {
			if w == 0 {
				continue
			}
			ex = ex.Add(r.kx[s][i].Mul(w))
			ev = ev.Add(r.kv[s][i].Mul(w))
		}
		scaleX := r.x0[i].Len() + math.Abs(dt)*r.kx[0][i].Len() + 1e-10
		scaleV := r.v0[i].Len() + math.Abs(dt)*r.kv[0][i].Len() + 1e-10
		errMax = math.Max(errMax, math.Abs(dt)*ex.Len()/scaleX)
		errMax = math.Max(errMax, math.Abs(dt)*ev.Len()/scaleV)
	}
	return errMax / r.Tolerance
}

func (r *RK45) growth(errRatio float64) float64 {
	if errRatio > 1 {
		return math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	}
	if errRatio > 0 {
		return math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	}
	return r.maxScale
}
