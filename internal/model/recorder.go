package model

import (
	"fmt"
	"slices"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/engine"
)

// OutputRecorder samples float64 outputs at every observed step. It realizes
// its own state only as far as the recorded outputs need.
type OutputRecorder struct {
	m       *Model
	s       *engine.State
	paths   []string
	outputs []*component.Output[float64]
	stage   engine.Stage

	Times []float64
	Rows  [][]float64
}

// NewOutputRecorder records the outputs named by paths, relative to m, using
// s as scratch. s must not be shared with a running integrand.
func NewOutputRecorder(m *Model, s *engine.State, paths ...string) (*OutputRecorder, error) {
	r := &OutputRecorder{m: m, s: s, paths: slices.Clone(paths), stage: engine.StageModel}
	for _, p := range paths {
		slot, err := m.GetOutput(p)
		if err != nil {
			return nil, err
		}
		out, ok := slot.(*component.Output[float64])
		if !ok {
			return nil, fmt.Errorf("output %s: %w: recorder needs float64, output is %s", p, component.ErrTypeMismatch, slot.TypeName())
		}
		r.outputs = append(r.outputs, out)
		r.stage = max(r.stage, out.DependsOn())
	}
	return r, nil
}

func (r *OutputRecorder) Names() []string { return slices.Clone(r.paths) }

// Stage is the stage the recorder realizes to before sampling.
func (r *OutputRecorder) Stage() engine.Stage { return r.stage }

func (r *OutputRecorder) OnStep(x dynamo.State, t float64) error {
	if err := r.m.Load(r.s, t, x); err != nil {
		return err
	}
	if err := r.m.Realize(r.s, r.stage); err != nil {
		return err
	}
	row := make([]float64, len(r.outputs))
	for i, out := range r.outputs {
		v, err := out.Value(r.s)
		if err != nil {
			return err
		}
		row[i] = v
	}
	r.Times = append(r.Times, t)
	r.Rows = append(r.Rows, row)
	return nil
}

// Column returns the samples of one recorded output.
func (r *OutputRecorder) Column(path string) ([]float64, error) {
	i := slices.Index(r.paths, path)
	if i < 0 {
		return nil, fmt.Errorf("output %s: %w", path, component.ErrNotFound)
	}
	col := make([]float64, len(r.Rows))
	for j, row := range r.Rows {
		col[j] = row[i]
	}
	return col, nil
}

func (r *OutputRecorder) Reset() {
	r.Times = r.Times[:0]
	r.Rows = r.Rows[:0]
}
