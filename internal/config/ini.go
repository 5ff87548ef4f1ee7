package config

import (
	"fmt"
	"sort"

	"gopkg.in/gcfg.v1"
)

const ExampleINI = `[Simulation]
Name = three_body
Dt = 0.05
Duration = 50
G = 1
SnapshotEvery = 10
# -1 makes every body active.
NActive = -1

[Integrator]
# dh (democratic heliocentric) or whds.
Coordinates = dh
RcritFactor = 3
SafeMode = false
Collisions = false

# Bodies are ordered by Index; index 0 is the central body.
[Body "star"]
Index = 0
M = 1

[Body "inner"]
Index = 1
M = 1e-3
A = 1

[Body "outer"]
Index = 2
M = 1e-3
A = 1.6
F = 180`

type iniFile struct {
	Simulation struct {
		Name          string
		Dt            float64
		Duration      float64
		G             float64
		Seed          int64
		SnapshotEvery int
		NActive       int
	}
	Integrator struct {
		Coordinates string
		RcritFactor float64
		SafeMode    bool
		StallRatio  float64
		Tolerance   float64
		Collisions  bool
		Softening   float64
	}
	Body map[string]*iniBody
}

// iniBody uses orbital elements when A is non-zero, Cartesian coordinates
// otherwise.
type iniBody struct {
	Index                    int
	M, R                     float64
	X, Y, Z                  float64
	VX, VY, VZ               float64
	A, E, Inc, Node, Peri, F float64
}

func defaultINI() *iniFile {
	d := DefaultConfig()
	f := &iniFile{}
	f.Simulation.Name = d.Name
	f.Simulation.Dt = d.Dt
	f.Simulation.Duration = d.Duration
	f.Simulation.G = d.G
	f.Simulation.SnapshotEvery = d.SnapshotEvery
	f.Simulation.NActive = d.NActive
	f.Integrator.Coordinates = d.Integrator.Coordinates
	f.Integrator.RcritFactor = d.Integrator.RcritFactor
	f.Integrator.StallRatio = d.Integrator.StallRatio
	f.Integrator.Tolerance = d.Integrator.Tolerance
	return f
}

// LoadINI reads a gcfg style configuration file.
func LoadINI(path string) (*Config, error) {
	f := defaultINI()
	if err := gcfg.ReadFileInto(f, path); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg := f.config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseINI reads a gcfg style configuration from a string.
func ParseINI(text string) (*Config, error) {
	f := defaultINI()
	if err := gcfg.ReadStringInto(f, text); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg := f.config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *iniFile) config() *Config {
	cfg := &Config{
		Name:          f.Simulation.Name,
		Dt:            f.Simulation.Dt,
		Duration:      f.Simulation.Duration,
		G:             f.Simulation.G,
		Seed:          f.Simulation.Seed,
		SnapshotEvery: f.Simulation.SnapshotEvery,
		NActive:       f.Simulation.NActive,
		Integrator: IntegratorConfig{
			Coordinates: f.Integrator.Coordinates,
			RcritFactor: f.Integrator.RcritFactor,
			SafeMode:    f.Integrator.SafeMode,
			StallRatio:  f.Integrator.StallRatio,
			Tolerance:   f.Integrator.Tolerance,
			Collisions:  f.Integrator.Collisions,
			Softening:   f.Integrator.Softening,
		},
	}

	names := make([]string, 0, len(f.Body))
	for name := range f.Body {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		bi, bj := f.Body[names[i]], f.Body[names[j]]
		if bi.Index != bj.Index {
			return bi.Index < bj.Index
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		b := f.Body[name]
		body := BodyConfig{
			Name: name,
			M:    b.M,
			R:    b.R,
			Pos:  [3]float64{b.X, b.Y, b.Z},
			Vel:  [3]float64{b.VX, b.VY, b.VZ},
		}
		if b.A != 0 {
			body.Orbit = &OrbitConfig{A: b.A, E: b.E, Inc: b.Inc, Node: b.Node, Peri: b.Peri, F: b.F}
		}
		cfg.Bodies = append(cfg.Bodies, body)
	}
	return cfg
}
