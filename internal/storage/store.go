package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/mercurius/internal/dynamo"
)

const (
	metadataFile  = "metadata.json"
	particlesFile = "particles.csv"
	energyFile    = "energy.csv"
)

var particleHeader = []string{"snapshot", "time", "id", "m", "r", "x", "y", "z", "vx", "vy", "vz"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was produced.
type RunInfo struct {
	Name        string
	Seed        int64
	Dt          float64
	Duration    float64
	Coordinates string
	Stats       map[string]int
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Coordinates string             `json:"coordinates"`
	Bodies      int                `json:"bodies"`
	Steps       int                `json:"steps"`
	Snapshots   int                `json:"snapshots"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
	Stats       map[string]int     `json:"stats,omitempty"`
	Errors      []string           `json:"errors,omitempty"`
}

func (s *Store) Save(info RunInfo, result *dynamo.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", info.Name, now.Unix())
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(s.baseDir, runID)); err != nil {
			break
		}
		runID = fmt.Sprintf("%s_%d_%d", info.Name, now.Unix(), i)
	}
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	meta := RunMetadata{
		ID:          runID,
		Name:        info.Name,
		Timestamp:   now,
		Seed:        info.Seed,
		Dt:          info.Dt,
		Duration:    info.Duration,
		Coordinates: info.Coordinates,
		Steps:       result.StepsTaken,
		Snapshots:   len(result.Snapshots),
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
		Stats:       info.Stats,
	}
	if len(result.Snapshots) > 0 {
		meta.Bodies = len(result.Snapshots[0])
	}
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeParticles(filepath.Join(runDir, particlesFile), result); err != nil {
		return "", err
	}
	if err := writeEnergies(filepath.Join(runDir, energyFile), result); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}

func writeParticles(path string, result *dynamo.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(particleHeader); err != nil {
		return err
	}

	for k, snap := range result.Snapshots {
		t := formatFloat(result.Times[k])
		for _, p := range snap {
			row := []string{
				strconv.Itoa(k), t, strconv.Itoa(p.ID),
				formatFloat(p.M), formatFloat(p.R),
				formatFloat(p.Pos[0]), formatFloat(p.Pos[1]), formatFloat(p.Pos[2]),
				formatFloat(p.Vel[0]), formatFloat(p.Vel[1]), formatFloat(p.Vel[2]),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func writeEnergies(path string, result *dynamo.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "energy"}); err != nil {
		return err
	}
	for i := range result.Energies {
		if err := w.Write([]string{formatFloat(result.Times[i]), formatFloat(result.Energies[i])}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns the stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", runID, err)
	}

	return &meta, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func parseFloats(record []string) ([]float64, error) {
	out := make([]float64, len(record))
	for i, s := range record {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LoadSnapshots reads the particle snapshots of a run.
func (s *Store) LoadSnapshots(runID string) ([][]dynamo.Particle, []float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, particlesFile))
	if err != nil {
		return nil, nil, err
	}

	snapshots := make([][]dynamo.Particle, 0)
	times := make([]float64, 0)
	last := -1

	for i := 1; i < len(records); i++ {
		if len(records[i]) != len(particleHeader) {
			return nil, nil, fmt.Errorf("%s line %d: %w", particlesFile, i+1, dynamo.ErrDimensionMismatch)
		}
		v, err := parseFloats(records[i])
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", particlesFile, i+1, err)
		}

		if k := int(v[0]); k != last {
			snapshots = append(snapshots, make([]dynamo.Particle, 0))
			times = append(times, v[1])
			last = k
		}
		p := dynamo.Particle{
			ID:  int(v[2]),
			M:   v[3],
			R:   v[4],
			Pos: [3]float64{v[5], v[6], v[7]},
			Vel: [3]float64{v[8], v[9], v[10]},
		}
		snapshots[len(snapshots)-1] = append(snapshots[len(snapshots)-1], p)
	}

	return snapshots, times, nil
}

// LoadEnergies reads the energy series of a run.
func (s *Store) LoadEnergies(runID string) ([]float64, []float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, energyFile))
	if err != nil {
		return nil, nil, err
	}

	times := make([]float64, 0, len(records))
	energies := make([]float64, 0, len(records))
	for i := 1; i < len(records); i++ {
		v, err := parseFloats(records[i])
		if err != nil || len(v) != 2 {
			continue
		}
		times = append(times, v[0])
		energies = append(energies, v[1])
	}
	return times, energies, nil
}
