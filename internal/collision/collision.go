// Package collision finds overlapping bodies and merges them.
package collision

import (
	"log/slog"
	"math"

	"github.com/san-kum/mercurius/internal/dynamo"
)

// Direct checks every pair for overlap. Overlapping pairs that are still
// approaching each other are merged into the lower index, conserving mass,
// momentum and volume.
type Direct struct {
	Logger *slog.Logger

	Merged int
}

func NewDirect(logger *slog.Logger) *Direct {
	return &Direct{Logger: logger}
}

func (d *Direct) Resolve(sys *dynamo.System) int {
	removed := 0
	for i := 0; i < len(sys.Particles); i++ {
		for j := i + 1; j < len(sys.Particles); {
			pi, pj := sys.Particles[i], sys.Particles[j]
			dx := pj.Pos.Sub(pi.Pos)
			rsum := pi.R + pj.R
			if rsum <= 0 || dx.Dot(dx) >= rsum*rsum || pj.Vel.Sub(pi.Vel).Dot(dx) >= 0 {
				j++
				continue
			}

			sys.Particles[i] = Merge(pi, pj)
			if err := sys.Remove(j); err != nil {
				return removed
			}
			removed++
			d.Merged++
			if d.Logger != nil {
				d.Logger.Debug("merged bodies",
					slog.Int("survivor", pi.ID),
					slog.Int("absorbed", pj.ID),
					slog.Float64("t", sys.T))
			}
		}
	}
	return removed
}

// Merge combines two bodies into one placed at their center of mass.
func Merge(a, b dynamo.Particle) dynamo.Particle {
	m := a.M + b.M
	wa, wb := 0.5, 0.5
	if m > 0 {
		wa, wb = a.M/m, b.M/m
	}
	return dynamo.Particle{
		Pos: a.Pos.Mul(wa).Add(b.Pos.Mul(wb)),
		Vel: a.Vel.Mul(wa).Add(b.Vel.Mul(wb)),
		Acc: a.Acc.Mul(wa).Add(b.Acc.Mul(wb)),
		M:   m,
		R:   math.Cbrt(a.R*a.R*a.R + b.R*b.R*b.R),
		ID:  a.ID,
	}
}
