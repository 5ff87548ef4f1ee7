package config

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mercurius/internal/dynamo"
	"github.com/san-kum/mercurius/internal/gravity"
	"github.com/san-kum/mercurius/internal/integrators"
	"github.com/san-kum/mercurius/internal/kepler"
	"github.com/san-kum/mercurius/internal/mercurius"
)

const (
	DefaultDt            = 0.05
	DefaultDuration      = 50.0
	DefaultG             = 1.0
	DefaultSnapshotEvery = 10
	DefaultCoordinates   = "dh"
)

type Config struct {
	Name          string           `yaml:"name"`
	Dt            float64          `yaml:"dt"`
	Duration      float64          `yaml:"duration"`
	G             float64          `yaml:"g"`
	Seed          int64            `yaml:"seed"`
	SnapshotEvery int              `yaml:"snapshot_every"`
	NActive       int              `yaml:"n_active"`
	Integrator    IntegratorConfig `yaml:"integrator"`
	Bodies        []BodyConfig     `yaml:"bodies"`
}

type IntegratorConfig struct {
	Coordinates string  `yaml:"coordinates"`
	RcritFactor float64 `yaml:"rcrit_factor"`
	SafeMode    bool    `yaml:"safe_mode"`
	StallRatio  float64 `yaml:"stall_ratio"`
	// Tolerance is the relative error target of the encounter stepper.
	Tolerance  float64 `yaml:"tolerance"`
	Collisions bool    `yaml:"collisions"`
	Softening  float64 `yaml:"softening"`
}

// BodyConfig places a body either by Cartesian coordinates or, when Orbit
// is set, by orbital elements around the first body.
type BodyConfig struct {
	Name  string       `yaml:"name"`
	M     float64      `yaml:"m"`
	R     float64      `yaml:"r"`
	Pos   [3]float64   `yaml:"pos,flow"`
	Vel   [3]float64   `yaml:"vel,flow"`
	Orbit *OrbitConfig `yaml:"orbit,omitempty"`
}

// OrbitConfig angles are in degrees.
type OrbitConfig struct {
	A    float64 `yaml:"a"`
	E    float64 `yaml:"e"`
	Inc  float64 `yaml:"inc"`
	Node float64 `yaml:"node"`
	Peri float64 `yaml:"peri"`
	F    float64 `yaml:"f"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:          "custom",
		Dt:            DefaultDt,
		Duration:      DefaultDuration,
		G:             DefaultG,
		SnapshotEvery: DefaultSnapshotEvery,
		NActive:       dynamo.AllActive,
		Integrator: IntegratorConfig{
			Coordinates: DefaultCoordinates,
			RcritFactor: mercurius.DefaultRcritFactor,
			StallRatio:  mercurius.DefaultStallRatio,
			Tolerance:   1e-12,
		},
	}
}

// Load reads a YAML file, or an INI file when the extension is .ini or
// .gcfg. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".gcfg":
		return LoadINI(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrParameterBounds, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", dynamo.ErrParameterBounds, c.Duration)
	}
	if c.G <= 0 {
		return fmt.Errorf("%w: G must be positive, got %g", dynamo.ErrParameterBounds, c.G)
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("%w: snapshot_every must not be negative", dynamo.ErrParameterBounds)
	}
	if len(c.Bodies) == 0 {
		return dynamo.ErrNoBodies
	}
	if c.NActive < dynamo.AllActive || c.NActive > len(c.Bodies) {
		return fmt.Errorf("%w: n_active %d with %d bodies", dynamo.ErrParameterBounds, c.NActive, len(c.Bodies))
	}
	if c.Bodies[0].Orbit != nil {
		return fmt.Errorf("%w: the central body cannot have an orbit", dynamo.ErrParameterBounds)
	}
	if c.Bodies[0].M <= 0 {
		return fmt.Errorf("%w: the central body needs a positive mass", dynamo.ErrParameterBounds)
	}
	for i, b := range c.Bodies {
		if b.M < 0 || b.R < 0 {
			return fmt.Errorf("%w: body %d (%s) has negative mass or radius", dynamo.ErrParameterBounds, i, b.Name)
		}
	}
	if _, err := dynamo.ParseCoordinates(c.Integrator.Coordinates); err != nil {
		return err
	}
	if c.Integrator.RcritFactor < 0 || c.Integrator.StallRatio < 0 || c.Integrator.Tolerance < 0 {
		return fmt.Errorf("%w: integrator parameters must not be negative", dynamo.ErrParameterBounds)
	}
	return nil
}

// SimConfig is the run configuration for the simulation loop.
func (c *Config) SimConfig() dynamo.Config {
	return dynamo.Config{
		Dt:            c.Dt,
		Duration:      c.Duration,
		SnapshotEvery: c.SnapshotEvery,
		ValidateState: true,
	}
}

// System builds the initial conditions. Orbital elements are converted
// relative to the first body.
func (c *Config) System() (*dynamo.System, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	sys := dynamo.NewSystem(c.G, c.Dt)
	sys.NActive = c.NActive
	central := c.Bodies[0]

	for i, b := range c.Bodies {
		p := dynamo.Particle{
			M:   b.M,
			R:   b.R,
			Pos: b.Pos,
			Vel: b.Vel,
			ID:  i + 1,
		}
		if b.Orbit != nil {
			pos, vel, err := kepler.FromElements(c.G*(central.M+b.M), b.Orbit.elements())
			if err != nil {
				return nil, fmt.Errorf("%w: body %d (%s): %v", dynamo.ErrParameterBounds, i, b.Name, err)
			}
			p.Pos = pos.Add(central.Pos)
			p.Vel = vel.Add(central.Vel)
		}
		sys.Add(p)
	}
	return sys, nil
}

func (o *OrbitConfig) elements() kepler.Elements {
	const deg = math.Pi / 180
	return kepler.Elements{
		A:    o.A,
		E:    o.E,
		Inc:  o.Inc * deg,
		Node: o.Node * deg,
		Peri: o.Peri * deg,
		F:    o.F * deg,
	}
}

// NewIntegrator builds a MERCURIUS integrator from the integrator section.
func (c *Config) NewIntegrator(logger *slog.Logger) (*mercurius.Integrator, error) {
	coords, err := dynamo.ParseCoordinates(c.Integrator.Coordinates)
	if err != nil {
		return nil, err
	}

	in := mercurius.New(logger)
	in.Coordinates = coords
	if c.Integrator.RcritFactor > 0 {
		in.RcritFactor = c.Integrator.RcritFactor
	}
	if c.Integrator.StallRatio > 0 {
		in.StallRatio = c.Integrator.StallRatio
	}
	in.SafeMode = c.Integrator.SafeMode

	if c.Integrator.Tolerance > 0 {
		rk := integrators.NewRK45()
		rk.Tolerance = c.Integrator.Tolerance
		in.Stepper = rk
	}
	if c.Integrator.Softening > 0 {
		in.Evaluator = &gravity.Mercurius{Softening: c.Integrator.Softening}
	}
	if c.Integrator.Collisions {
		in.WithCollisions()
	}
	return in, nil
}

// Perturb displaces every body except the central one by a random
// relative amount of order scale.
func Perturb(sys *dynamo.System, seed int64, scale float64) {
	rng := rand.New(rand.NewSource(seed))
	for i := 1; i < len(sys.Particles); i++ {
		p := &sys.Particles[i]
		r := p.Pos.Sub(sys.Particles[0].Pos).Len()
		for k := 0; k < 3; k++ {
			p.Pos[k] += rng.NormFloat64() * scale * r
		}
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Bodies = make([]BodyConfig, len(c.Bodies))
	for i, b := range c.Bodies {
		out.Bodies[i] = b
		if b.Orbit != nil {
			o := *b.Orbit
			out.Bodies[i].Orbit = &o
		}
	}
	return &out
}
