package storage

import (
	"encoding/json"
	"io"
	"os"
)

type ExportData struct {
	Model       string               `json:"model"`
	Integrator  string               `json:"integrator"`
	Dt          float64              `json:"dt"`
	Duration    float64              `json:"duration"`
	Steps       int                  `json:"steps"`
	EnergyDrift float64              `json:"energy_drift"`
	StateNames  []string             `json:"state_names"`
	Times       []float64            `json:"times"`
	States      [][]float64          `json:"states"`
	Outputs     map[string][]float64 `json:"outputs,omitempty"`
	Metrics     map[string]float64   `json:"metrics"`
}

func newExportData(run Run) ExportData {
	data := ExportData{
		Model:       run.Model,
		Integrator:  run.Integrator,
		Dt:          run.Dt,
		Duration:    run.Duration,
		Steps:       len(run.Result.Times),
		EnergyDrift: run.Result.EnergyDrift,
		StateNames:  run.StateNames,
		Times:       run.Result.Times,
		States:      make([][]float64, len(run.Result.States)),
		Metrics:     run.Result.Metrics,
	}
	for i, x := range run.Result.States {
		data.States[i] = x
	}
	if len(run.Outputs) > 0 {
		data.Outputs = make(map[string][]float64, len(run.Outputs))
		for j, name := range run.Outputs {
			col := make([]float64, len(run.OutputRows))
			for i, row := range run.OutputRows {
				col[i] = row[j]
			}
			data.Outputs[name] = col
		}
	}
	return data
}

func ExportJSON(w io.Writer, run Run) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(run))
}

func ExportJSONFile(path string, run Run) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, run)
}
