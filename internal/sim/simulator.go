package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/gravity"
)

type Simulator struct {
	integrator Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	log        *slog.Logger
}

func New(integrator Integrator, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Simulator{
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		log:        logger,
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Run integrates sys for cfg.Duration. The last step is shortened so the
// run ends exactly at the requested time. Metrics and snapshots are taken
// on synchronized states only.
func (s *Simulator) Run(ctx context.Context, sys *dynamo.System, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := s.validate(sys, cfg); err != nil {
		return nil, err
	}

	expected := int(math.Ceil(cfg.Duration / cfg.Dt))
	snapshots := 2
	if cfg.SnapshotEvery > 0 {
		snapshots += expected / cfg.SnapshotEvery
	}
	result := &dynamo.Result{
		Snapshots: make([][]dynamo.Particle, 0, snapshots),
		Times:     make([]float64, 0, snapshots),
		Energies:  make([]float64, 0, snapshots),
		Metrics:   make(map[string]float64),
		Errors:    make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	sys.Dt = cfg.Dt
	tEnd := sys.T + cfg.Duration
	s.record(sys, result)
	initialEnergy := result.Energies[0]

	s.log.Info("run started",
		slog.Int("n", sys.N()),
		slog.Float64("dt", cfg.Dt),
		slog.Float64("t_end", tEnd))

	lastRecorded := 0
	for step := 1; ; step++ {
		remaining := tEnd - sys.T
		if remaining <= finishTolerance*cfg.Dt {
			break
		}

		select {
		case <-ctx.Done():
			s.integrator.Synchronize(sys)
			return result, fmt.Errorf("%w at t=%.4f: %w", dynamo.ErrContextCanceled, sys.T, ctx.Err())
		default:
		}

		if remaining < sys.Dt {
			// the pending half kick belongs to the old step size
			s.integrator.Synchronize(sys)
			sys.Dt = remaining
		}

		s.integrator.Part1(sys)
		s.integrator.UpdateAcceleration(sys)
		s.integrator.Part2(sys)
		result.StepsTaken++

		for _, obs := range s.observers {
			obs.OnStep(sys)
		}

		if cfg.SnapshotEvery > 0 && step%cfg.SnapshotEvery == 0 {
			s.integrator.Synchronize(sys)
			if cfg.ValidateState && !sys.IsValid() {
				err := &dynamo.SimulationError{Step: step, Time: sys.T, Wrapped: dynamo.ErrInvalidState}
				result.Errors = append(result.Errors, err)
				s.log.Error("invalid state", slog.Int("step", step), slog.Float64("t", sys.T))
				break
			}
			s.record(sys, result)
			lastRecorded = step
		}
	}

	s.integrator.Synchronize(sys)
	sys.Dt = cfg.Dt
	if lastRecorded != result.StepsTaken && len(result.Errors) == 0 {
		s.record(sys, result)
	}

	finalEnergy := result.Energies[len(result.Energies)-1]
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.log.Info("run finished",
		slog.Int("steps", result.StepsTaken),
		slog.Float64("t", sys.T),
		slog.Float64("energy_drift", result.EnergyDrift))

	return result, nil
}

func (s *Simulator) record(sys *dynamo.System, result *dynamo.Result) {
	for _, m := range s.metrics {
		m.Observe(sys)
	}
	result.Snapshots = append(result.Snapshots, dynamo.CloneParticles(sys.Particles))
	result.Times = append(result.Times, sys.T)
	result.Energies = append(result.Energies, gravity.Energy(sys.Particles, sys.G))
}

func (s *Simulator) validate(sys *dynamo.System, cfg dynamo.Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrParameterBounds, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrParameterBounds, cfg.Duration)
	}
	if cfg.SnapshotEvery < 0 {
		return fmt.Errorf("%w: snapshot interval must not be negative", dynamo.ErrParameterBounds)
	}
	if sys == nil || sys.N() == 0 {
		return dynamo.ErrNoBodies
	}
	if !sys.IsValid() {
		return fmt.Errorf("initial conditions: %w", dynamo.ErrInvalidState)
	}
	return nil
}

// RunWithCallback steps sys until cfg.Duration has elapsed or callback
// returns false. The callback sees a synchronized system.
func (s *Simulator) RunWithCallback(ctx context.Context, sys *dynamo.System, cfg dynamo.Config, callback func(sys *dynamo.System) bool) error {
	if err := s.validate(sys, cfg); err != nil {
		return err
	}

	sys.Dt = cfg.Dt
	tEnd := sys.T + cfg.Duration
	defer s.integrator.Synchronize(sys)

	for tEnd-sys.T > finishTolerance*cfg.Dt {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}

		s.integrator.Synchronize(sys)
		if !callback(sys) {
			return nil
		}
		if remaining := tEnd - sys.T; remaining < sys.Dt {
			sys.Dt = remaining
		}

		s.integrator.Part1(sys)
		s.integrator.UpdateAcceleration(sys)
		s.integrator.Part2(sys)

		if cfg.ValidateState && !sys.IsValid() {
			return fmt.Errorf("t=%.4f: %w", sys.T, dynamo.ErrInvalidState)
		}
	}

	return nil
}
