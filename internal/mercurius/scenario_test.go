package mercurius_test

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/gravity"
	"github.com/san-kum/mercurius/internal/mercurius"
	"github.com/san-kum/mercurius/internal/transform"
)

func planet(m, r, angle float64) dynamo.Particle {
	v := math.Sqrt(1 / r)
	s, c := math.Sincos(angle)
	return dynamo.Particle{
		M:   m,
		Pos: mgl64.Vec3{r * c, r * s, 0},
		Vel: mgl64.Vec3{-v * s, v * c, 0},
	}
}

func momentum(ps []dynamo.Particle) mgl64.Vec3 {
	var p mgl64.Vec3
	for _, b := range ps {
		p = p.Add(b.Vel.Mul(b.M))
	}
	return p
}

func relativeDrift(e0, e1 float64) float64 {
	return math.Abs((e1 - e0) / e0)
}

// roundTripError is the largest difference between the integrator's
// canonical state and a fresh transform of the synchronized inertial state.
func roundTripError(c dynamo.Coordinates, sys *dynamo.System, in *mercurius.Integrator) float64 {
	fresh := make([]dynamo.Particle, sys.N())
	transform.ToCanonical(c, sys.Particles, fresh)

	worst := 0.0
	for i, p := range in.Canonical() {
		worst = math.Max(worst, p.Pos.Sub(fresh[i].Pos).Len())
		worst = math.Max(worst, p.Vel.Sub(fresh[i].Vel).Len())
	}
	return worst
}

var _ = Describe("Integrator", func() {
	var (
		sys *dynamo.System
		in  *mercurius.Integrator
	)

	BeforeEach(func() {
		sys = dynamo.NewSystem(1, 0.05)
		sys.Add(dynamo.Particle{M: 1})
		in = mercurius.New(nil)
	})

	Context("with two well separated planets", func() {
		BeforeEach(func() {
			sys.Add(planet(1e-3, 1.0, 0))
			sys.Add(planet(1e-3, 1.6, 2))
		})

		for _, c := range []dynamo.Coordinates{dynamo.DemocraticHeliocentric, dynamo.WHDS} {
			coords := c
			It("conserves energy over a thousand steps in "+coords.String(), func() {
				in.Coordinates = coords
				e0 := gravity.Energy(sys.Particles, sys.G)

				for i := 1; i <= 1000; i++ {
					in.Step(sys)
					if i%100 == 0 {
						in.Synchronize(sys)
						Expect(roundTripError(coords, sys, in)).To(BeNumerically("<", 1e-13))
					}
				}

				Expect(relativeDrift(e0, gravity.Energy(sys.Particles, sys.G))).To(BeNumerically("<", 1e-6))
				Expect(in.Stats.EncounterSteps).To(BeZero())
				Expect(sys.T).To(BeNumerically("~", 50, 1e-9))
			})
		}

		It("conserves total momentum", func() {
			p0 := momentum(sys.Particles)
			for i := 0; i < 200; i++ {
				in.Step(sys)
			}
			in.Synchronize(sys)

			p1 := momentum(sys.Particles)
			Expect(p1.Sub(p0).Len()).To(BeNumerically("<", 1e-13))
		})

		It("keeps the angular momentum", func() {
			l0 := gravity.AngularMomentum(sys.Particles)
			for i := 0; i < 500; i++ {
				in.Step(sys)
			}
			in.Synchronize(sys)

			l1 := gravity.AngularMomentum(sys.Particles)
			Expect(l1.Sub(l0).Len() / l0.Len()).To(BeNumerically("<", 1e-9))
		})

		It("gives the same orbit with and without safe mode", func() {
			other := dynamo.NewSystem(1, 0.05)
			other.Particles = dynamo.CloneParticles(sys.Particles)
			safe := mercurius.New(nil)
			safe.SafeMode = true

			for i := 0; i < 100; i++ {
				in.Step(sys)
				safe.Step(other)
			}
			in.Synchronize(sys)

			for i := range sys.Particles {
				Expect(other.Particles[i].Pos.Sub(sys.Particles[i].Pos).Len()).To(BeNumerically("<", 1e-10))
			}
		})
	})

	Context("with a single planet", func() {
		BeforeEach(func() {
			sys.Add(dynamo.Particle{M: 1e-3, Pos: mgl64.Vec3{1, 0, 0}, Vel: mgl64.Vec3{0, 1.2, 0}})
		})

		It("follows the exact Kepler orbit in WHDS", func() {
			in.Coordinates = dynamo.WHDS
			e0 := gravity.Energy(sys.Particles, sys.G)
			l0 := gravity.AngularMomentum(sys.Particles)

			for i := 0; i < 2000; i++ {
				in.Step(sys)
			}
			in.Synchronize(sys)

			Expect(relativeDrift(e0, gravity.Energy(sys.Particles, sys.G))).To(BeNumerically("<", 1e-12))
			Expect(gravity.AngularMomentum(sys.Particles).Sub(l0).Len() / l0.Len()).To(BeNumerically("<", 1e-12))
			Expect(in.Stats.EncounterSteps).To(BeZero())
		})

		It("keeps the angular momentum in democratic heliocentric coordinates", func() {
			e0 := gravity.Energy(sys.Particles, sys.G)
			l0 := gravity.AngularMomentum(sys.Particles)

			for i := 0; i < 2000; i++ {
				in.Step(sys)
			}
			in.Synchronize(sys)

			Expect(gravity.AngularMomentum(sys.Particles).Sub(l0).Len() / l0.Len()).To(BeNumerically("<", 1e-12))
			// the jump does not commute with the Kepler drift, so the energy
			// error is of order m/m0 dt^2 here
			Expect(relativeDrift(e0, gravity.Energy(sys.Particles, sys.G))).To(BeNumerically("<", 1e-4))
		})
	})

	Context("with a close pair", func() {
		BeforeEach(func() {
			sys.Add(planet(1e-3, 1.0, 0))
			sys.Add(planet(1e-3, 1.1, 0))
			sys.Add(planet(1e-3, 3.0, math.Pi))
		})

		It("hands the pair to the encounter stepper", func() {
			in.Step(sys)

			Expect(in.EncounterN()).To(Equal(2))
			Expect(in.InEncounter(1)).To(BeTrue())
			Expect(in.InEncounter(2)).To(BeTrue())
			Expect(in.InEncounter(3)).To(BeFalse())
			Expect(in.Mode()).To(Equal(dynamo.ModeNormal))
		})

		It("integrates through the encounter without stalling", func() {
			e0 := gravity.Energy(sys.Particles, sys.G)
			p0 := momentum(sys.Particles)

			for i := 0; i < 200; i++ {
				in.Step(sys)
			}
			in.Synchronize(sys)

			Expect(in.Stats.Stalls).To(BeZero())
			Expect(in.Stats.EncounterSteps).To(BeNumerically(">", 0))
			Expect(sys.N()).To(Equal(4))
			Expect(sys.NActive).To(Equal(dynamo.AllActive))
			Expect(sys.IsValid()).To(BeTrue())
			Expect(momentum(sys.Particles).Sub(p0).Len()).To(BeNumerically("<", 1e-13))
			Expect(relativeDrift(e0, gravity.Energy(sys.Particles, sys.G))).To(BeNumerically("<", 1e-2))
		})
	})
})
