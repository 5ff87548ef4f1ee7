package mercurius

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/gravity"
	"github.com/san-kum/mercurius/internal/integrators"
	"github.com/san-kum/mercurius/internal/transform"
)

func circular(m, radius, r, angle, gm float64) dynamo.Particle {
	v := math.Sqrt(gm / r)
	s, c := math.Sincos(angle)
	return dynamo.Particle{
		M:   m,
		R:   radius,
		Pos: mgl64.Vec3{r * c, r * s, 0},
		Vel: mgl64.Vec3{-v * s, v * c, 0},
	}
}

func twoPlanets(sep float64) *dynamo.System {
	sys := dynamo.NewSystem(1, 0.05)
	sys.Add(dynamo.Particle{M: 1})
	sys.Add(circular(1e-3, 0, 1, 0, 1))
	sys.Add(circular(1e-3, 0, 1+sep, 0, 1))
	return sys
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestJumpStepReversible(t *testing.T) {
	for _, c := range []dynamo.Coordinates{dynamo.DemocraticHeliocentric, dynamo.WHDS} {
		t.Run(c.String(), func(t *testing.T) {
			sys := twoPlanets(0.6)
			in := New(nil)
			in.Coordinates = c
			in.Part1(sys)

			before := dynamo.CloneParticles(in.ph)
			in.jumpStep(sys, 0.37)
			assert.NotEqual(t, before[1].Pos, in.ph[1].Pos, "jump should move the bodies")
			in.jumpStep(sys, -0.37)

			for i := range before {
				for k := 0; k < 3; k++ {
					assert.InDelta(t, before[i].Pos[k], in.ph[i].Pos[k], 1e-15)
				}
				assert.Equal(t, before[i].Vel, in.ph[i].Vel)
			}
		})
	}
}

func TestJumpStepLinear(t *testing.T) {
	sys := twoPlanets(0.6)
	in := New(nil)
	in.Part1(sys)
	start := in.ph[2].Pos

	in.jumpStep(sys, 0.2)
	once := in.ph[2].Pos.Sub(start)
	in.jumpStep(sys, 0.2)
	twice := in.ph[2].Pos.Sub(start)

	for k := 0; k < 3; k++ {
		assert.InDelta(t, 2*once[k], twice[k], 1e-14)
	}
}

func TestComStep(t *testing.T) {
	sys := twoPlanets(0.6)
	sys.Particles[0].Vel = mgl64.Vec3{0.1, 0, 0}
	in := New(nil)
	in.Part1(sys)

	x0, v0 := in.ph[0].Pos, in.ph[0].Vel
	p1 := in.ph[1]
	in.comStep(2)

	want := x0.Add(v0.Mul(2))
	for k := 0; k < 3; k++ {
		assert.InDelta(t, want[k], in.ph[0].Pos[k], 1e-15)
	}
	assert.Equal(t, p1, in.ph[1])
}

func TestMinSeparation_Flyby(t *testing.T) {
	// body i crosses the x axis at distance 0.01 from a resting body j.
	oi := dynamo.Particle{Pos: mgl64.Vec3{-1, 0.01, 0}, Vel: mgl64.Vec3{2, 0, 0}}
	ni := dynamo.Particle{Pos: mgl64.Vec3{1, 0.01, 0}, Vel: mgl64.Vec3{2, 0, 0}}
	j := dynamo.Particle{}

	rmin := minSeparation2(oi, j, ni, j, 1)
	assert.InDelta(t, 1e-4, rmin, 1e-12)
}

func TestMinSeparation_MonotonicUsesEndpoints(t *testing.T) {
	oi := dynamo.Particle{Pos: mgl64.Vec3{1, 0, 0}, Vel: mgl64.Vec3{1, 0, 0}}
	ni := dynamo.Particle{Pos: mgl64.Vec3{2, 0, 0}, Vel: mgl64.Vec3{1, 0, 0}}
	j := dynamo.Particle{}

	assert.Equal(t, 1.0, minSeparation2(oi, j, ni, j, 1))
}

func TestMinSeparation_NeverNegative(t *testing.T) {
	oi := dynamo.Particle{Pos: mgl64.Vec3{-1, 0, 0}, Vel: mgl64.Vec3{3, 0, 0}}
	ni := dynamo.Particle{Pos: mgl64.Vec3{1, 0, 0}, Vel: mgl64.Vec3{3, 0, 0}}
	j := dynamo.Particle{}

	rmin := minSeparation2(oi, j, ni, j, 1)
	assert.GreaterOrEqual(t, rmin, 0.0)
	assert.LessOrEqual(t, rmin, 1.0)
}

func TestPredictEncounters_FlagsClosePair(t *testing.T) {
	sys := dynamo.NewSystem(1, 0.05)
	sys.Add(dynamo.Particle{M: 1})
	sys.Add(circular(1e-3, 0, 1, 0, 1))
	sys.Add(circular(1e-3, 0, 1.1, 0, 1))
	sys.Add(circular(1e-3, 0, 3, math.Pi, 1))

	in := New(nil)
	in.Step(sys)

	assert.Equal(t, 2, in.EncounterN())
	assert.False(t, in.InEncounter(0), "central body is never flagged")
	assert.True(t, in.InEncounter(1))
	assert.True(t, in.InEncounter(2))
	assert.False(t, in.InEncounter(3))
	assert.Equal(t, 1, in.Stats.EncounterSteps)
	assert.Positive(t, in.Stats.Substeps)
}

func TestPredictEncounters_TestParticlesPairOnlyWithActive(t *testing.T) {
	sys := dynamo.NewSystem(1, 0.05)
	sys.NActive = 2
	sys.Add(dynamo.Particle{M: 1})
	sys.Add(circular(1e-3, 0, 3, math.Pi, 1))
	sys.Add(circular(0, 1e-3, 1, 0, 1))
	sys.Add(circular(0, 1e-3, 1.001, 0, 1))

	in := New(nil)
	in.Step(sys)

	assert.Zero(t, in.EncounterN(), "two test particles never interact")
	assert.Equal(t, 4, sys.N())
	assert.Equal(t, 2, sys.NActive)
}

func TestCriticalRadius(t *testing.T) {
	t.Run("speed bound", func(t *testing.T) {
		rc := criticalRadius(1, 1, 1, 1, 0, 0, 0.1, DefaultRcritFactor)
		assert.InDelta(t, 0.04, rc, 1e-15)
	})
	t.Run("hill bound", func(t *testing.T) {
		rc := criticalRadius(1, math.Sqrt(1.003), 1, 1, 3e-3, 0, 0.1, DefaultRcritFactor)
		assert.InDelta(t, 0.3, rc, 1e-12)
	})
	t.Run("physical radius", func(t *testing.T) {
		rc := criticalRadius(1, 1, 1, 1, 0, 1, 0.1, DefaultRcritFactor)
		assert.Equal(t, 2.0, rc)
	})
	t.Run("unbound orbit", func(t *testing.T) {
		rc := criticalRadius(1, 2, 1, 1, 1e-3, 0, 0.1, DefaultRcritFactor)
		assert.InDelta(t, 0.08, rc, 1e-15)
	})
}

func TestSynchronize_MatchesCanonicalState(t *testing.T) {
	for _, c := range []dynamo.Coordinates{dynamo.DemocraticHeliocentric, dynamo.WHDS} {
		t.Run(c.String(), func(t *testing.T) {
			sys := twoPlanets(0.6)
			in := New(nil)
			in.Coordinates = c
			for i := 0; i < 20; i++ {
				in.Step(sys)
			}
			require.False(t, in.IsSynchronized())

			in.Synchronize(sys)
			require.True(t, in.IsSynchronized())

			check := make([]dynamo.Particle, sys.N())
			transform.ToCanonical(c, sys.Particles, check)
			for i := range check {
				for k := 0; k < 3; k++ {
					assert.InDelta(t, in.ph[i].Pos[k], check[i].Pos[k], 1e-13, "pos %d", i)
					assert.InDelta(t, in.ph[i].Vel[k], check[i].Vel[k], 1e-13, "vel %d", i)
				}
			}

			snapshot := dynamo.CloneParticles(sys.Particles)
			in.Synchronize(sys)
			assert.Equal(t, snapshot, sys.Particles, "second synchronize must be a no-op")
		})
	}
}

func TestStep_AdvancesTime(t *testing.T) {
	sys := twoPlanets(0.6)
	in := New(nil)
	in.Step(sys)
	in.Step(sys)

	assert.InDelta(t, 0.1, sys.T, 1e-15)
	assert.Equal(t, 0.05, sys.DtLastDone)
	assert.Equal(t, 0.05, sys.Dt)
	assert.Equal(t, dynamo.ModeNormal, in.Mode())
	assert.Equal(t, 2, in.Stats.Steps)
}

func TestStep_SafeModeStaysSynchronized(t *testing.T) {
	sys := twoPlanets(0.6)
	in := New(nil)
	in.SafeMode = true
	for i := 0; i < 5; i++ {
		in.Step(sys)
		assert.True(t, in.IsSynchronized())
	}
}

func TestStep_EmptySystem(t *testing.T) {
	sys := dynamo.NewSystem(1, 0.05)
	in := New(nil)
	assert.NotPanics(t, func() { in.Step(sys) })
	assert.Zero(t, sys.T)
	assert.Empty(t, in.Canonical())
}

func TestPart1_GrowsBuffers(t *testing.T) {
	sys := twoPlanets(0.6)
	in := New(nil)
	in.Step(sys)
	in.Synchronize(sys)

	sys.Add(circular(1e-3, 0, 4, 1, 1))
	in.Step(sys)

	assert.Len(t, in.Canonical(), 4)
	assert.Len(t, in.CriticalRadii(), 4)
	assert.Positive(t, in.CriticalRadii()[3])
}

func TestPart1_OverridesGravity(t *testing.T) {
	logger, buf := bufferLogger()
	sys := twoPlanets(0.6)
	sys.Gravity = dynamo.GravityTree

	in := New(logger)
	in.Part1(sys)

	assert.Equal(t, dynamo.GravityMercurius, sys.Gravity)
	assert.Contains(t, buf.String(), "own gravity routine")
}

func TestPart1_WarnsOnVariationalParticles(t *testing.T) {
	logger, buf := bufferLogger()
	sys := twoPlanets(0.6)
	sys.VarConfigN = 1

	New(logger).Part1(sys)
	assert.Contains(t, buf.String(), "variational")
}

func TestPart1_RecalculateWhileUnsynchronizedWarns(t *testing.T) {
	logger, buf := bufferLogger()
	sys := twoPlanets(0.6)
	in := New(logger)
	in.Step(sys)

	in.RecalculateHeliocentric = true
	in.Part1(sys)

	assert.True(t, in.IsSynchronized())
	assert.Contains(t, buf.String(), "not synchronized")
}

type shrinkingStepper struct {
	resets int
	calls  int
}

func (s *shrinkingStepper) Reset() { s.resets++ }

func (s *shrinkingStepper) Advance(sys *dynamo.System, _ dynamo.Field) float64 {
	s.calls++
	dt := sys.Dt
	sys.T += dt
	sys.Dt = dt * 1e-3
	return dt
}

func TestEncounterStep_StallGuard(t *testing.T) {
	logger, buf := bufferLogger()
	sys := twoPlanets(0.1)
	stepper := &shrinkingStepper{}

	in := New(logger)
	in.Stepper = stepper
	in.Step(sys)

	assert.Equal(t, 2, in.EncounterN())
	assert.Equal(t, 1, stepper.resets)
	assert.Equal(t, 4, stepper.calls)
	assert.Equal(t, 1, in.Stats.Stalls)
	assert.Contains(t, buf.String(), "stalled")

	assert.InDelta(t, 0.05, sys.T, 1e-15, "outer time is restored before advancing")
	assert.Equal(t, 0.05, sys.Dt)
	assert.Equal(t, 3, sys.N())
	assert.Equal(t, dynamo.ModeNormal, in.Mode())
}

type timeRecorder struct {
	times []float64
}

func (r *timeRecorder) Resolve(sys *dynamo.System) int {
	r.times = append(r.times, sys.T)
	return 0
}

func TestEncounterStep_LandsExactlyOnStepEnd(t *testing.T) {
	sys := twoPlanets(0.1)
	rec := &timeRecorder{}
	in := New(nil)
	in.Collider = rec
	in.Step(sys)

	require.NotEmpty(t, rec.times)
	assert.Zero(t, in.Stats.Stalls)
	assert.Equal(t, 0.05, rec.times[len(rec.times)-1])
	for i := 1; i < len(rec.times); i++ {
		assert.Greater(t, rec.times[i], rec.times[i-1])
	}
	assert.Equal(t, 0.05, sys.T)
	assert.Len(t, sys.Particles, 3)
}

func TestEncounterStep_CollisionShrinksSystem(t *testing.T) {
	sys := dynamo.NewSystem(1, 0.05)
	sys.Add(dynamo.Particle{M: 1})
	sys.Add(dynamo.Particle{M: 1e-3, R: 0.02, Pos: mgl64.Vec3{1, 0, 0}, Vel: mgl64.Vec3{0, 1, 0}})
	sys.Add(dynamo.Particle{M: 1e-3, R: 0.02, Pos: mgl64.Vec3{1, 0.03, 0}, Vel: mgl64.Vec3{0, 0.9, 0}})
	sys.Add(circular(1e-3, 0, 3, math.Pi, 1))
	massBefore := totalMass(sys.Particles)

	in := New(nil).WithCollisions()
	in.Step(sys)

	require.Equal(t, 3, sys.N())
	assert.Equal(t, 1, in.Stats.Collisions)
	assert.Equal(t, dynamo.AllActive, sys.NActive)
	assert.Len(t, in.Canonical(), 3)
	assert.Len(t, in.CriticalRadii(), 3)
	assert.InDelta(t, 2e-3, sys.Particles[1].M, 1e-18)
	assert.Equal(t, 2, sys.Particles[1].ID, "survivor keeps the lower index identity")
	assert.Equal(t, 4, sys.Particles[2].ID)
	assert.InDelta(t, massBefore, totalMass(sys.Particles), 1e-15)

	for i := 0; i < 10; i++ {
		in.Step(sys)
	}
	in.Synchronize(sys)
	assert.True(t, sys.IsValid())
	assert.Len(t, in.CriticalRadii(), sys.N())
}

func TestReset(t *testing.T) {
	sys := twoPlanets(0.1)
	in := New(nil)
	in.Coordinates = dynamo.WHDS
	in.Step(sys)

	in.Reset()
	assert.True(t, in.IsSynchronized())
	assert.Equal(t, dynamo.DemocraticHeliocentric, in.Coordinates)
	assert.Equal(t, DefaultRcritFactor, in.RcritFactor)
	assert.Nil(t, in.Canonical())
	assert.Zero(t, in.EncounterN())
	assert.Zero(t, in.Stats.Steps)
	assert.NotNil(t, in.Stepper)
}

func TestAllocate_PanicsBeyondLimit(t *testing.T) {
	in := New(nil)
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, dynamo.ErrAllocation))
	}()
	in.allocate(maxParticles + 1)
}

func totalMass(ps []dynamo.Particle) float64 {
	m := 0.0
	for _, p := range ps {
		m += p.M
	}
	return m
}

type countingEvaluator struct {
	dynamo.ForceEvaluator
	calls int
}

func (c *countingEvaluator) Accelerations(ps []dynamo.Particle, ctx dynamo.ForceContext) {
	if ctx.Mode == dynamo.ModeEncounter {
		c.calls++
	}
	c.ForceEvaluator.Accelerations(ps, ctx)
}

func TestEncounterStep_ReusesStepperAccelerations(t *testing.T) {
	sys := twoPlanets(0.1)
	counter := &countingEvaluator{ForceEvaluator: gravity.NewMercurius()}
	rk := integrators.NewRK45()

	in := New(nil)
	in.Evaluator = counter
	in.Stepper = rk
	in.Step(sys)

	require.Equal(t, 2, in.EncounterN())
	attempts := rk.Accepted + rk.Rejected
	require.Positive(t, attempts)
	assert.Equal(t, in.Stats.Substeps, rk.Accepted)
	assert.Equal(t, 1+6*attempts, counter.calls)
}

func TestEncounterStep_StallReportsStepTooSmall(t *testing.T) {
	logger, buf := bufferLogger()
	sys := twoPlanets(0.1)

	in := New(logger)
	in.Stepper = &shrinkingStepper{}
	in.Step(sys)

	assert.Contains(t, buf.String(), dynamo.ErrStepTooSmall.Error())
}

func TestPart1_ResizeWhileUnsynchronized(t *testing.T) {
	for _, c := range []dynamo.Coordinates{dynamo.DemocraticHeliocentric, dynamo.WHDS} {
		t.Run(c.String()+"/add", func(t *testing.T) {
			lazy, eager := twoPlanets(0.6), twoPlanets(0.6)
			inLazy, inEager := New(nil), New(nil)
			inLazy.Coordinates, inEager.Coordinates = c, c
			for i := 0; i < 10; i++ {
				inLazy.Step(lazy)
				inEager.Step(eager)
			}

			extra := circular(0, 0, 8, 1, 1)
			lazy.Add(extra)
			inEager.Synchronize(eager)
			eager.Add(extra)

			inLazy.Step(lazy)
			inEager.Step(eager)
			inLazy.Synchronize(lazy)
			inEager.Synchronize(eager)

			assertSameState(t, eager, lazy)
		})

		t.Run(c.String()+"/remove", func(t *testing.T) {
			lazy, eager := twoPlanets(0.6), twoPlanets(0.6)
			lazy.Add(circular(1e-3, 0, 3, 2, 1))
			eager.Add(circular(1e-3, 0, 3, 2, 1))
			inLazy, inEager := New(nil), New(nil)
			inLazy.Coordinates, inEager.Coordinates = c, c
			for i := 0; i < 10; i++ {
				inLazy.Step(lazy)
				inEager.Step(eager)
			}

			require.NoError(t, lazy.Remove(3))
			inEager.Synchronize(eager)
			require.NoError(t, eager.Remove(3))

			inLazy.Step(lazy)
			inEager.Step(eager)
			inLazy.Synchronize(lazy)
			inEager.Synchronize(eager)

			assertSameState(t, eager, lazy)
		})
	}
}

func TestSynchronize_AfterAddKicksPreviousBodies(t *testing.T) {
	lazy, eager := twoPlanets(0.6), twoPlanets(0.6)
	inLazy, inEager := New(nil), New(nil)
	for i := 0; i < 7; i++ {
		inLazy.Step(lazy)
		inEager.Step(eager)
	}

	extra := circular(0, 0, 8, 1, 1)
	lazy.Add(extra)
	inLazy.Synchronize(lazy)
	inEager.Synchronize(eager)

	require.True(t, inLazy.IsSynchronized())
	require.Equal(t, 4, lazy.N())
	for i := 0; i < eager.N(); i++ {
		assert.Equal(t, eager.Particles[i].Pos, lazy.Particles[i].Pos, "pos %d", i)
		assert.Equal(t, eager.Particles[i].Vel, lazy.Particles[i].Vel, "vel %d", i)
	}
	assert.Equal(t, extra.Pos, lazy.Particles[3].Pos, "new body is taken as given")
}

func assertSameState(t *testing.T, want, got *dynamo.System) {
	t.Helper()
	require.Equal(t, want.N(), got.N())
	assert.Equal(t, want.T, got.T)
	for i := range want.Particles {
		for k := 0; k < 3; k++ {
			assert.InDelta(t, want.Particles[i].Pos[k], got.Particles[i].Pos[k], 1e-13, "pos %d", i)
			assert.InDelta(t, want.Particles[i].Vel[k], got.Particles[i].Vel[k], 1e-13, "vel %d", i)
		}
	}
}
