package component

import (
	"fmt"

	"github.com/san-kum/simtree/internal/engine"
)

// StateVariable is a named slot of the continuous state vector, whatever
// actually stores it.
type StateVariable interface {
	Name() string
	Owner() Component
	IsHidden() bool
	// Value and SetValue read and write the primary state. Writes invalidate
	// the variable's stage.
	Value(s *engine.State) (float64, error)
	SetValue(s *engine.State, v float64) error
	// Derivative and SetDerivative use the derivative slot, never the primary
	// state.
	Derivative(s *engine.State) (float64, error)
	SetDerivative(s *engine.State, d float64) error
}

// AddedStateVariable is backed by a continuous engine variable allocated for
// its owner.
type AddedStateVariable struct {
	name        string
	owner       *Base
	invalidates engine.Stage
	hidden      bool
	index       engine.ZIndex
}

func (v *AddedStateVariable) Name() string { return v.name }
func (v *AddedStateVariable) Owner() Component { return v.owner.self }
func (v *AddedStateVariable) IsHidden() bool { return v.hidden }
func (v *AddedStateVariable) Invalidates() engine.Stage { return v.invalidates }
func (v *AddedStateVariable) Index() engine.ZIndex { return v.index }

func (v *AddedStateVariable) checkIndex(op string) error {
	if !v.index.IsValid() {
		return v.owner.notReady(op, v.name, PhaseSystemBuilt)
	}
	return nil
}

func (v *AddedStateVariable) Value(s *engine.State) (float64, error) {
	if err := v.checkIndex("state variable value"); err != nil {
		return 0, err
	}
	x, err := s.Z(v.index)
	return x, stateErr(err)
}

func (v *AddedStateVariable) SetValue(s *engine.State, x float64) error {
	if err := v.checkIndex("set state variable value"); err != nil {
		return err
	}
	return stateErr(s.SetZ(v.index, x))
}

func (v *AddedStateVariable) Derivative(s *engine.State) (float64, error) {
	if err := v.checkIndex("state variable derivative"); err != nil {
		return 0, err
	}
	d, err := s.ZDot(v.index)
	if err != nil {
		return 0, v.owner.errorf("state variable derivative", v.name, stateErr(err))
	}
	return d, nil
}

func (v *AddedStateVariable) SetDerivative(s *engine.State, d float64) error {
	if err := v.checkIndex("set state variable derivative"); err != nil {
		return err
	}
	if err := s.SetZDot(v.index, d); err != nil {
		return v.owner.errorf("set state variable derivative", v.name, err)
	}
	return nil
}

// Delegate holds the accessors a DelegatedStateVariable forwards to.
type Delegate struct {
	Value         func(s *engine.State) (float64, error)
	SetValue      func(s *engine.State, v float64) error
	Derivative    func(s *engine.State) (float64, error)
	SetDerivative func(s *engine.State, d float64) error
}

// DelegatedStateVariable reflects a resource the engine already owns, such as
// a mobility's coordinate or speed. A nil SetDerivative marks the derivative
// as computed by the engine.
type DelegatedStateVariable struct {
	name   string
	hidden bool
	owner  *Base
	d      Delegate
}

func NewDelegatedStateVariable(name string, hidden bool, d Delegate) *DelegatedStateVariable {
	return &DelegatedStateVariable{name: name, hidden: hidden, d: d}
}

func (v *DelegatedStateVariable) Name() string { return v.name }
func (v *DelegatedStateVariable) Owner() Component { return v.owner.self }
func (v *DelegatedStateVariable) IsHidden() bool { return v.hidden }

// EngineComputed reports whether the engine supplies the derivative.
func (v *DelegatedStateVariable) EngineComputed() bool { return v.d.SetDerivative == nil }

func (v *DelegatedStateVariable) Value(s *engine.State) (float64, error) {
	x, err := v.d.Value(s)
	return x, stateErr(err)
}

func (v *DelegatedStateVariable) SetValue(s *engine.State, x float64) error {
	return stateErr(v.d.SetValue(s, x))
}

func (v *DelegatedStateVariable) Derivative(s *engine.State) (float64, error) {
	if v.d.Derivative == nil {
		return 0, v.owner.errorf("state variable derivative", v.name, ErrNotFound)
	}
	d, err := v.d.Derivative(s)
	if err != nil {
		return 0, v.owner.errorf("state variable derivative", v.name, stateErr(err))
	}
	return d, nil
}

func (v *DelegatedStateVariable) SetDerivative(s *engine.State, d float64) error {
	if v.d.SetDerivative == nil {
		return v.owner.errorf("set state variable derivative", v.name, fmt.Errorf("%w: derivative is computed by the engine", ErrReadOnly))
	}
	return v.d.SetDerivative(s, d)
}
