package metrics

import (
	"github.com/san-kum/mercurius/internal/dynamo"
)

// Stability is the fraction of observations in which every body stayed
// within threshold of the central body.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sys *dynamo.System) {
	s.samples++
	if len(sys.Particles) == 0 {
		return
	}
	center := sys.Particles[0].Pos
	for _, p := range sys.Particles[1:] {
		if p.Pos.Sub(center).Len() > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
