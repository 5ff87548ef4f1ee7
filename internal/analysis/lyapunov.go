package analysis

import (
	"math"

	"github.com/san-kum/mercurius/internal/dynamo"
)

// Separation is the phase-space distance between two snapshots, summed
// over bodies present in both. Bodies are matched by ID so merges in one
// run do not shift the comparison.
func Separation(a, b []dynamo.Particle) float64 {
	byID := make(map[int]dynamo.Particle, len(b))
	for _, p := range b {
		byID[p.ID] = p
	}

	sep := 0.0
	for _, p := range a {
		q, ok := byID[p.ID]
		if !ok {
			continue
		}
		dr := p.Pos.Sub(q.Pos)
		dv := p.Vel.Sub(q.Vel)
		sep += dr.Dot(dr) + dv.Dot(dv)
	}
	return math.Sqrt(sep)
}

// LyapunovExponent fits ln(d(t)/d(0)) against t by least squares and
// returns the slope. It returns 0 when fewer than two usable samples exist
// or the runs start identical.
func LyapunovExponent(ref, pert [][]dynamo.Particle, times []float64) float64 {
	n := min(len(ref), len(pert), len(times))
	if n < 2 {
		return 0
	}

	d0 := Separation(ref[0], pert[0])
	if d0 == 0 {
		return 0
	}

	var sumT, sumY, sumTT, sumTY float64
	count := 0
	for k := 0; k < n; k++ {
		d := Separation(ref[k], pert[k])
		if d <= 0 {
			continue
		}
		t := times[k] - times[0]
		y := math.Log(d / d0)
		sumT += t
		sumY += y
		sumTT += t * t
		sumTY += t * y
		count++
	}

	c := float64(count)
	denom := c*sumTT - sumT*sumT
	if count < 2 || denom == 0 {
		return 0
	}
	return (c*sumTY - sumT*sumY) / denom
}

// LyapunovSpectrum estimates one exponent per perturbed run against the
// same reference.
func LyapunovSpectrum(ref *dynamo.Result, perturbed []*dynamo.Result) []float64 {
	out := make([]float64, len(perturbed))
	for i, r := range perturbed {
		out[i] = LyapunovExponent(ref.Snapshots, r.Snapshots, ref.Times)
	}
	return out
}
