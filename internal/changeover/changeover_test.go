package changeover

import (
	"math"
	"testing"
)

func TestK_Bounds(t *testing.T) {
	for _, rcrit := range []float64{1e-3, 0.5, 1, 7.25} {
		for _, f := range []float64{-1, 0, 0.01, 0.05, 0.1} {
			if got := K(f*rcrit, rcrit); got != 0 {
				t.Errorf("K(%g rcrit) = %g, want 0", f, got)
			}
		}
		for _, f := range []float64{1, 1.0001, 2, 100} {
			if got := K(f*rcrit, rcrit); got != 1 {
				t.Errorf("K(%g rcrit) = %g, want 1", f, got)
			}
		}
	}
}

func TestK_Monotonic(t *testing.T) {
	rcrit := 0.3
	prev := K(0.1*rcrit, rcrit)
	const n = 1000
	for i := 1; i < n; i++ {
		r := rcrit * (0.1 + 0.9*float64(i)/n)
		k := K(r, rcrit)
		if k <= prev {
			t.Fatalf("K not strictly increasing at r=%g: %g <= %g", r, k, prev)
		}
		prev = k
	}
}

func TestK_Midpoint(t *testing.T) {
	rcrit := 2.0
	k := K(0.5*(0.1+1)*rcrit, rcrit)
	if k <= 0 || k >= 1 {
		t.Errorf("midpoint K = %g, want strictly inside (0,1)", k)
	}
	if math.Abs(k-0.5) > 1e-12 {
		t.Errorf("midpoint K = %g, want 0.5 by symmetry", k)
	}
}

func TestK_Continuity(t *testing.T) {
	rcrit := 1.0
	eps := 1e-7
	for _, edge := range []float64{0.1, 1.0} {
		lo, hi := K(edge-eps, rcrit), K(edge+eps, rcrit)
		if math.Abs(hi-lo) > 1e-12 {
			t.Errorf("K jumps at %g: %g -> %g", edge, lo, hi)
		}
		dlo, dhi := DKDR(edge-eps, rcrit), DKDR(edge+eps, rcrit)
		if math.Abs(dhi-dlo) > 1e-5 {
			t.Errorf("dK/dr jumps at %g: %g -> %g", edge, dlo, dhi)
		}
	}
}

func TestDKDR_MatchesFiniteDifference(t *testing.T) {
	rcrit := 0.7
	h := 1e-6
	for _, f := range []float64{0.2, 0.4, 0.55, 0.8, 0.95} {
		r := f * rcrit
		fd := (K(r+h, rcrit) - K(r-h, rcrit)) / (2 * h)
		if got := DKDR(r, rcrit); math.Abs(got-fd) > 1e-6 {
			t.Errorf("DKDR(%g) = %g, finite difference %g", r, got, fd)
		}
	}
}
