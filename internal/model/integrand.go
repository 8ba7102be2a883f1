package model

import (
	"fmt"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/engine"
)

// Integrand presents a built model and one engine state as a dynamo.System.
// It owns the state for the duration of a run and is not safe for
// concurrent use; parallel runs each take their own clone of the state.
type Integrand struct {
	m   *Model
	s   *engine.State
	dim int
}

func (m *Model) NewIntegrand(s *engine.State) (*Integrand, error) {
	if m.sys == nil {
		return nil, fmt.Errorf("model %s: %w: system not built", m.Name(), component.ErrNotReady)
	}
	if s.System() != m.sys {
		return nil, fmt.Errorf("model %s: %w", m.Name(), engine.ErrForeignState)
	}
	n, err := m.NumStateVariables()
	if err != nil {
		return nil, err
	}
	return &Integrand{m: m, s: s, dim: n}, nil
}

func (in *Integrand) StateDim() int { return in.dim }
func (in *Integrand) State() *engine.State { return in.s }
func (in *Integrand) Model() *Model { return in.m }

// Initial reads the current state-variable vector.
func (in *Integrand) Initial() (dynamo.State, error) {
	x, err := in.m.StateVariableValues(in.s)
	if err != nil {
		return nil, err
	}
	return dynamo.State(x), nil
}

func (in *Integrand) Load(x dynamo.State, t float64) error {
	if err := dynamo.CheckDim(in, x); err != nil {
		return err
	}
	return in.m.Load(in.s, t, x)
}

func (in *Integrand) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	if err := in.Load(x, t); err != nil {
		return nil, err
	}
	dx, err := in.m.ComputeDerivatives(in.s)
	if err != nil {
		return nil, err
	}
	return dynamo.State(dx), nil
}

func (in *Integrand) Energy(x dynamo.State, t float64) (float64, error) {
	if err := in.Load(x, t); err != nil {
		return 0, err
	}
	if err := in.m.Realize(in.s, engine.StageVelocity); err != nil {
		return 0, err
	}
	return in.m.Energy(in.s)
}

// Clone returns an integrand over an independent copy of the state.
func (in *Integrand) Clone() *Integrand {
	return &Integrand{m: in.m, s: in.s.Clone(), dim: in.dim}
}
