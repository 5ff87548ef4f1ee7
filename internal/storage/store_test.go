package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/mercurius/internal/dynamo"
)

func sampleResult() *dynamo.Result {
	return &dynamo.Result{
		Snapshots: [][]dynamo.Particle{
			{
				{ID: 1, M: 1},
				{ID: 2, M: 1e-3, R: 1e-4, Pos: mgl64.Vec3{1, 0, 0}, Vel: mgl64.Vec3{0, 1, 0}},
			},
			{
				{ID: 1, M: 1},
				{ID: 2, M: 1e-3, R: 1e-4, Pos: mgl64.Vec3{0.995, 0.0998, 0}, Vel: mgl64.Vec3{-0.0998, 0.995, 0}},
			},
		},
		Times:       []float64{0, 0.1},
		Energies:    []float64{-5e-4, -5.0000001e-4},
		Metrics:     map[string]float64{"energy_drift": 2e-7},
		EnergyDrift: 2e-7,
		StepsTaken:  2,
	}
}

func sampleInfo() RunInfo {
	return RunInfo{
		Name:        "test",
		Seed:        42,
		Dt:          0.05,
		Duration:    0.1,
		Coordinates: "dh",
		Stats:       map[string]int{"encounter_steps": 0},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(sampleInfo(), sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if meta.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", meta.Name)
	}
	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}
	if meta.Bodies != 2 || meta.Snapshots != 2 || meta.Steps != 2 {
		t.Errorf("unexpected counts: bodies=%d snapshots=%d steps=%d", meta.Bodies, meta.Snapshots, meta.Steps)
	}
	if meta.Metrics["energy_drift"] != 2e-7 {
		t.Errorf("expected drift 2e-7, got %g", meta.Metrics["energy_drift"])
	}

	snaps, times, err := st.LoadSnapshots(runID)
	if err != nil {
		t.Fatalf("load snapshots failed: %v", err)
	}
	if len(snaps) != 2 || len(times) != 2 {
		t.Fatalf("expected 2 snapshots, got %d (%d times)", len(snaps), len(times))
	}
	if times[1] != 0.1 {
		t.Errorf("expected time 0.1, got %g", times[1])
	}

	want := sampleResult().Snapshots[1][1]
	got := snaps[1][1]
	if got.ID != want.ID || got.M != want.M || got.R != want.R || got.Pos != want.Pos || got.Vel != want.Vel {
		t.Errorf("particle mismatch: got %+v, want %+v", got, want)
	}

	et, energies, err := st.LoadEnergies(runID)
	if err != nil {
		t.Fatalf("load energies failed: %v", err)
	}
	if len(et) != 2 || energies[1] != -5.0000001e-4 {
		t.Errorf("unexpected energies %v at %v", energies, et)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	first, err := st.Save(sampleInfo(), sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	second, err := st.Save(sampleInfo(), sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if first == second {
		t.Errorf("runs saved in the same second share id %s", first)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	st.Init()

	runID, _ := st.Save(sampleInfo(), sampleResult())

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{metadataFile, particlesFile, energyFile} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestLoadSnapshotsRejectsShortRows(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	runDir := filepath.Join(tmpDir, "broken")
	if err := os.MkdirAll(runDir, 0755); err != nil {
		t.Fatal(err)
	}
	data := "snapshot,time,id\n0,0,1\n"
	if err := os.WriteFile(filepath.Join(runDir, particlesFile), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := st.LoadSnapshots("broken"); err == nil {
		t.Error("expected error for short row")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleInfo(), sampleResult()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.Name != "test" || data.Steps != 2 {
		t.Errorf("unexpected header: %+v", data)
	}
	if len(data.Snapshots) != 2 || data.Snapshots[1][1].Pos[0] != 0.995 {
		t.Errorf("unexpected snapshots: %+v", data.Snapshots)
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	if err := ExportJSON(path, sampleInfo(), sampleResult()); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}
