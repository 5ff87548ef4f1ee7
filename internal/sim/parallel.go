package sim

import (
	"context"
	"sync"

	"github.com/san-kum/mercurius/internal/dynamo"
)

// Setup builds the system and integrator for one ensemble member.
type Setup func(run int) (*dynamo.System, Integrator, error)

// Ensemble runs independent copies of a simulation concurrently, typically
// with slightly perturbed initial conditions.
type Ensemble struct {
	setup   Setup
	numRuns int
	metrics func() []dynamo.Metric
}

func NewEnsemble(setup Setup, numRuns int) *Ensemble {
	return &Ensemble{setup: setup, numRuns: numRuns}
}

// WithMetrics installs a factory for per-run metrics. Metrics keep state, so
// every run gets its own set.
func (e *Ensemble) WithMetrics(factory func() []dynamo.Metric) *Ensemble {
	e.metrics = factory
	return e
}

func (e *Ensemble) Run(ctx context.Context, cfg dynamo.Config) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sys, integrator, err := e.setup(idx)
			if err != nil {
				errs[idx] = err
				return
			}

			sim := New(integrator, nil)
			if e.metrics != nil {
				for _, m := range e.metrics() {
					sim.AddMetric(m)
				}
			}

			results[idx], errs[idx] = sim.Run(ctx, sys, cfg)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
