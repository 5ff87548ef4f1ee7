package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/mercurius/internal/dynamo"
)

// PowerSpectrum returns the amplitude of the first half of the discrete
// Fourier transform of data, with the mean removed.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	spectrum := fft.FFTReal(centered)
	ps := make([]float64, len(spectrum)/2+1)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// DominantPeriod returns the period of the strongest non-zero frequency of a
// uniformly sampled series, or 0 when there is none.
func DominantPeriod(times, series []float64) float64 {
	n := len(series)
	if n < 4 || len(times) != n {
		return 0
	}
	span := times[n-1] - times[0]
	if span <= 0 {
		return 0
	}

	ps := PowerSpectrum(series)
	best := 0
	for k := 1; k < len(ps); k++ {
		if ps[k] > ps[best] || best == 0 {
			best = k
		}
	}
	if best == 0 || ps[best] == 0 {
		return 0
	}

	dt := span / float64(n-1)
	return float64(n) * dt / float64(best)
}

// OrbitalPeriods estimates the period of every body that survives the whole
// run from the x coordinate of its position relative to the first body.
func OrbitalPeriods(snapshots [][]dynamo.Particle, times []float64) map[int]float64 {
	out := make(map[int]float64)
	if len(snapshots) == 0 || len(snapshots) != len(times) {
		return out
	}

	series := make(map[int][]float64)
	for _, snap := range snapshots {
		if len(snap) == 0 {
			return out
		}
		center := snap[0].Pos
		for _, p := range snap[1:] {
			series[p.ID] = append(series[p.ID], p.Pos[0]-center[0])
		}
	}

	for id, xs := range series {
		if len(xs) != len(times) {
			continue
		}
		out[id] = DominantPeriod(times, xs)
	}
	return out
}
