package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/mercurius/internal/dynamo"
)

type ExportBody struct {
	ID  int        `json:"id"`
	M   float64    `json:"m"`
	R   float64    `json:"r"`
	Pos [3]float64 `json:"pos"`
	Vel [3]float64 `json:"vel"`
}

type ExportData struct {
	Name        string             `json:"name"`
	Coordinates string             `json:"coordinates"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Steps       int                `json:"steps"`
	Times       []float64          `json:"times"`
	Energies    []float64          `json:"energies"`
	Snapshots   [][]ExportBody     `json:"snapshots"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
	Stats       map[string]int     `json:"stats,omitempty"`
}

func exportData(info RunInfo, result *dynamo.Result) ExportData {
	data := ExportData{
		Name:        info.Name,
		Coordinates: info.Coordinates,
		Dt:          info.Dt,
		Duration:    info.Duration,
		Steps:       result.StepsTaken,
		Times:       result.Times,
		Energies:    result.Energies,
		Snapshots:   make([][]ExportBody, len(result.Snapshots)),
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
		Stats:       info.Stats,
	}

	for i, snap := range result.Snapshots {
		bodies := make([]ExportBody, len(snap))
		for j, p := range snap {
			bodies[j] = ExportBody{ID: p.ID, M: p.M, R: p.R, Pos: p.Pos, Vel: p.Vel}
		}
		data.Snapshots[i] = bodies
	}
	return data
}

// WriteJSON encodes a run to w.
func WriteJSON(w io.Writer, info RunInfo, result *dynamo.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(info, result))
}

func ExportJSON(path string, info RunInfo, result *dynamo.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteJSON(file, info, result)
}

func ExportJSONStdout(info RunInfo, result *dynamo.Result) error {
	return WriteJSON(os.Stdout, info, result)
}
