package config

import "sort"

func circularOrbit(name string, m, a, f float64) BodyConfig {
	return BodyConfig{Name: name, M: m, Orbit: &OrbitConfig{A: a, F: f}}
}

var Presets = map[string]map[string]*Config{
	"planetary": {
		"three_body": {
			Name: "three_body", Dt: 0.05, Duration: 50, G: 1, SnapshotEvery: 10, NActive: -1,
			Integrator: IntegratorConfig{Coordinates: "dh", RcritFactor: 3},
			Bodies: []BodyConfig{
				{Name: "star", M: 1},
				circularOrbit("inner", 1e-3, 1.0, 0),
				circularOrbit("outer", 1e-3, 1.6, 180),
			},
		},
		"outer_solar_system": {
			Name: "outer_solar_system", Dt: 0.5, Duration: 5000, G: 1, SnapshotEvery: 100, NActive: -1,
			Integrator: IntegratorConfig{Coordinates: "whds", RcritFactor: 3},
			Bodies: []BodyConfig{
				{Name: "sun", M: 1.00000597682},
				{Name: "jupiter", M: 9.54786104043e-4, Orbit: &OrbitConfig{A: 5.2029, E: 0.0484, Inc: 1.305, Node: 100.55, Peri: 273.87, F: 20}},
				{Name: "saturn", M: 2.85583733151e-4, Orbit: &OrbitConfig{A: 9.537, E: 0.0539, Inc: 2.485, Node: 113.71, Peri: 339.39, F: 317}},
				{Name: "uranus", M: 4.37273164546e-5, Orbit: &OrbitConfig{A: 19.189, E: 0.0473, Inc: 0.773, Node: 74.23, Peri: 96.73, F: 142}},
				{Name: "neptune", M: 5.17759138449e-5, Orbit: &OrbitConfig{A: 30.07, E: 0.0086, Inc: 1.77, Node: 131.72, Peri: 273.25, F: 256}},
			},
		},
		"test_particles": {
			Name: "test_particles", Dt: 0.05, Duration: 100, G: 1, SnapshotEvery: 20, NActive: 2,
			Integrator: IntegratorConfig{Coordinates: "dh", RcritFactor: 3},
			Bodies: []BodyConfig{
				{Name: "star", M: 1},
				circularOrbit("planet", 1e-3, 1.0, 0),
				circularOrbit("tp1", 0, 1.3, 60),
				circularOrbit("tp2", 0, 1.5, 120),
				circularOrbit("tp3", 0, 2.0, 240),
			},
		},
	},
	"encounter": {
		"close_pair": {
			Name: "close_pair", Dt: 0.05, Duration: 20, G: 1, SnapshotEvery: 10, NActive: -1,
			Integrator: IntegratorConfig{Coordinates: "dh", RcritFactor: 3},
			Bodies: []BodyConfig{
				{Name: "star", M: 1},
				circularOrbit("a", 1e-3, 1.0, 0),
				circularOrbit("b", 1e-3, 1.1, 0),
			},
		},
		"collision": {
			Name: "collision", Dt: 0.05, Duration: 20, G: 1, SnapshotEvery: 10, NActive: -1,
			Integrator: IntegratorConfig{Coordinates: "dh", RcritFactor: 3, Collisions: true},
			Bodies: []BodyConfig{
				{Name: "star", M: 1, R: 0.005},
				{Name: "a", M: 1e-3, R: 0.02, Pos: [3]float64{1, 0, 0}, Vel: [3]float64{0, 1, 0}},
				{Name: "b", M: 1e-3, R: 0.02, Pos: [3]float64{1, 0.03, 0}, Vel: [3]float64{0, 0.9, 0}},
			},
		},
		"scattering": {
			Name: "scattering", Dt: 0.02, Duration: 200, G: 1, SnapshotEvery: 50, NActive: -1,
			Integrator: IntegratorConfig{Coordinates: "whds", RcritFactor: 3},
			Bodies: []BodyConfig{
				{Name: "star", M: 1},
				circularOrbit("a", 1e-3, 1.0, 0),
				circularOrbit("b", 1e-3, 1.15, 90),
				circularOrbit("c", 1e-3, 1.3, 200),
			},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(category, preset string) *Config {
	categoryPresets, ok := Presets[category]
	if !ok {
		return nil
	}
	cfg, ok := categoryPresets[preset]
	if !ok {
		return nil
	}
	out := cfg.Clone()
	if out.Integrator.StallRatio == 0 {
		out.Integrator.StallRatio = DefaultConfig().Integrator.StallRatio
	}
	if out.Integrator.Tolerance == 0 {
		out.Integrator.Tolerance = DefaultConfig().Integrator.Tolerance
	}
	return out
}

func ListPresets(category string) []string {
	categoryPresets, ok := Presets[category]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(categoryPresets))
	for name := range categoryPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Categories() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
