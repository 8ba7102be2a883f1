// Package storage persists simulation runs as a directory per run holding
// metadata.json, states.csv and, when outputs were recorded, outputs.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/simtree/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	outputsFile  = "outputs.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Run is everything Save writes for one simulation.
type Run struct {
	Model      string
	Integrator string
	Dt         float64
	Duration   float64
	Seed       int64
	Adaptive   bool

	// StateNames labels the state columns; empty falls back to x0, x1, ...
	StateNames []string
	Result     *dynamo.Result

	Outputs     []string
	OutputTimes []float64
	OutputRows  [][]float64
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Model       string             `json:"model"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	Adaptive    bool               `json:"adaptive,omitempty"`
	Steps       int                `json:"steps"`
	EnergyDrift float64            `json:"energy_drift"`
	States      []string           `json:"states"`
	Outputs     []string           `json:"outputs,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
}

func (s *Store) Save(run Run) (string, error) {
	if run.Result == nil {
		return "", fmt.Errorf("save %s: no result", run.Model)
	}
	runID := fmt.Sprintf("%s_%s", run.Model, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	names := run.StateNames
	if len(names) == 0 && len(run.Result.States) > 0 {
		names = make([]string, len(run.Result.States[0]))
		for i := range names {
			names[i] = fmt.Sprintf("x%d", i)
		}
	}

	meta := RunMetadata{
		ID:          runID,
		Model:       run.Model,
		Timestamp:   time.Now(),
		Seed:        run.Seed,
		Dt:          run.Dt,
		Duration:    run.Duration,
		Integrator:  run.Integrator,
		Adaptive:    run.Adaptive,
		Steps:       run.Result.StepsTaken,
		EnergyDrift: run.Result.EnergyDrift,
		States:      names,
		Outputs:     run.Outputs,
		Metrics:     run.Result.Metrics,
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}

	rows := make([][]float64, len(run.Result.States))
	for i, x := range run.Result.States {
		rows[i] = x
	}
	if err := writeCSV(filepath.Join(runDir, statesFile), names, run.Result.Times, rows); err != nil {
		return "", err
	}

	if len(run.Outputs) > 0 {
		if err := writeCSV(filepath.Join(runDir, outputsFile), run.Outputs, run.OutputTimes, run.OutputRows); err != nil {
			return "", err
		}
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
	return enc.Encode(v)
}

func writeCSV(path string, names []string, times []float64, rows [][]float64) error {
	if len(times) != len(rows) {
		return fmt.Errorf("%s: %d times for %d rows", filepath.Base(path), len(times), len(rows))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"time"}, names...)); err != nil {
		return err
	}
	for i, row := range rows {
		record := make([]string, 0, len(row)+1)
		record = append(record, strconv.FormatFloat(times[i], 'g', -1, 64))
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable run, newest first.
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

	slices.SortFunc(runs, func(a, b RunMetadata) int {
		return b.Timestamp.Compare(a.Timestamp)
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
		return nil, err
	}
	return &meta, nil
}

// Table is a time-indexed CSV read back from a run.
type Table struct {
	Names []string
	Times []float64
	Rows  [][]float64
}

// Column returns the samples under name.
func (t *Table) Column(name string) ([]float64, error) {
	i := slices.Index(t.Names, name)
	if i < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	col := make([]float64, len(t.Rows))
	for j, row := range t.Rows {
		if i < len(row) {
			col[j] = row[i]
		}
	}
	return col, nil
}

func (s *Store) LoadStates(runID string) (*Table, error) {
	return readCSV(filepath.Join(s.baseDir, runID, statesFile))
}

// LoadOutputs reads recorded outputs; a run without them yields an empty
// table.
func (s *Store) LoadOutputs(runID string) (*Table, error) {
	t, err := readCSV(filepath.Join(s.baseDir, runID, outputsFile))
	if os.IsNotExist(err) {
		return &Table{}, nil
	}
	return t, err
}

func readCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	t := &Table{}
	if len(records) == 0 {
		return t, nil
	}
	if len(records[0]) > 0 {
		t.Names = records[0][1:]
	}

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}

		tm, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), i+1, err)
		}

		row := make([]float64, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), i+1, err)
			}
			row = append(row, val)
		}
		t.Times = append(t.Times, tm)
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}
