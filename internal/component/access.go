package component

import (
	"fmt"
	"strings"

	"github.com/san-kum/simtree/internal/engine"
)

// locate splits "a/b/var" into the node at a/b and the local name "var".
func (b *Base) locate(name string) (*Base, string, error) {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return b, name, nil
	}
	if b.tree == nil {
		return nil, "", ErrNotFound
	}
	owner, ok := b.tree.findPath(b, name[:i])
	if !ok {
		return nil, "", ErrNotFound
	}
	return owner, name[i+1:], nil
}

func (b *Base) findStateVariable(name string) (StateVariable, error) {
	if sv, ok := b.stateVariables.get(name); ok {
		if sv.IsHidden() {
			return nil, ErrNotFound
		}
		return sv, nil
	}
	owner, local, err := b.locate(name)
	if err != nil || owner == b {
		return nil, ErrNotFound
	}
	return owner.findStateVariable(local)
}

// StateVariable looks up a visible state variable of this node or, by
// relative path, of a subcomponent. Hidden variables are never found by name.
func (b *Base) StateVariable(name string) (StateVariable, error) {
	if err := b.requireBuilt("state variable", name); err != nil {
		return nil, err
	}
	sv, err := b.findStateVariable(name)
	if err != nil {
		return nil, b.errorf("state variable", name, err)
	}
	return sv, nil
}

func (b *Base) GetStateVariableValue(s *engine.State, name string) (float64, error) {
	sv, err := b.StateVariable(name)
	if err != nil {
		return 0, err
	}
	v, err := sv.Value(s)
	if err != nil {
		return 0, b.errorf("get state variable", name, err)
	}
	return v, nil
}

func (b *Base) SetStateVariableValue(s *engine.State, name string, v float64) error {
	sv, err := b.StateVariable(name)
	if err != nil {
		return err
	}
	if err := sv.SetValue(s, v); err != nil {
		return b.errorf("set state variable", name, err)
	}
	return nil
}

// GetStateVariableDerivativeValue reads the derivative computed by the last
// derivative evaluation.
func (b *Base) GetStateVariableDerivativeValue(s *engine.State, name string) (float64, error) {
	sv, err := b.StateVariable(name)
	if err != nil {
		return 0, err
	}
	return sv.Derivative(s)
}

// SetStateVariableDerivativeValue is only permitted while derivatives are
// being computed.
func (b *Base) SetStateVariableDerivativeValue(s *engine.State, name string, d float64) error {
	sv, err := b.StateVariable(name)
	if err != nil {
		return err
	}
	return sv.SetDerivative(s, d)
}

func (b *Base) discreteVariable(op, name string) (*discreteVariable, *Base, error) {
	if err := b.requireBuilt(op, name); err != nil {
		return nil, nil, err
	}
	owner, local, err := b.locate(name)
	if err != nil {
		return nil, nil, b.errorf(op, name, err)
	}
	dv, ok := owner.discreteVars.get(local)
	if !ok {
		return nil, nil, b.errorf(op, name, ErrNotFound)
	}
	return dv, owner, nil
}

func (b *Base) GetDiscreteVariableValue(s *engine.State, name string) (float64, error) {
	dv, _, err := b.discreteVariable("get discrete variable", name)
	if err != nil {
		return 0, err
	}
	v, err := s.Discrete(dv.index)
	if err != nil {
		return 0, b.errorf("get discrete variable", name, stateErr(err))
	}
	return v.(float64), nil
}

func (b *Base) SetDiscreteVariableValue(s *engine.State, name string, v float64) error {
	dv, _, err := b.discreteVariable("set discrete variable", name)
	if err != nil {
		return err
	}
	if err := s.SetDiscrete(dv.index, v); err != nil {
		return b.errorf("set discrete variable", name, stateErr(err))
	}
	return nil
}

func (b *Base) modelingOption(op, name string) (*modelingOption, error) {
	if err := b.requireBuilt(op, name); err != nil {
		return nil, err
	}
	owner, local, err := b.locate(name)
	if err != nil {
		return nil, b.errorf(op, name, err)
	}
	opt, ok := owner.modelingOptions.get(local)
	if !ok {
		return nil, b.errorf(op, name, ErrNotFound)
	}
	return opt, nil
}

func (b *Base) GetModelingOption(s *engine.State, name string) (int, error) {
	opt, err := b.modelingOption("get modeling option", name)
	if err != nil {
		return 0, err
	}
	v, err := s.Discrete(opt.index)
	if err != nil {
		return 0, b.errorf("get modeling option", name, stateErr(err))
	}
	return v.(int), nil
}

// SetModelingOption stores flag, which must lie in [0, max], and drops the
// state below Model.
func (b *Base) SetModelingOption(s *engine.State, name string, flag int) error {
	opt, err := b.modelingOption("set modeling option", name)
	if err != nil {
		return err
	}
	if flag < 0 || flag > opt.maxFlag {
		return b.errorf("set modeling option", name, fmt.Errorf("%w: flag %d outside [0, %d]", ErrConfiguration, flag, opt.maxFlag))
	}
	if err := s.SetDiscrete(opt.index, flag); err != nil {
		return b.errorf("set modeling option", name, stateErr(err))
	}
	return nil
}

func (b *Base) cacheVariable(op, name string) (*cacheVariable, error) {
	if err := b.requireBuilt(op, name); err != nil {
		return nil, err
	}
	owner, local, err := b.locate(name)
	if err != nil {
		return nil, b.errorf(op, name, err)
	}
	cv, ok := owner.cacheVars.get(local)
	if !ok {
		return nil, b.errorf(op, name, ErrNotFound)
	}
	return cv, nil
}

// GetCacheVariableValue reads a cache entry as a T. The entry must be valid
// or the state must have reached the entry's dependency stage.
func GetCacheVariableValue[T any](c Component, s *engine.State, name string) (T, error) {
	var zero T
	b := c.ComponentBase()
	cv, err := b.cacheVariable("get cache variable", name)
	if err != nil {
		return zero, err
	}
	v, err := s.Cache(cv.index)
	if err != nil {
		return zero, b.errorf("get cache variable", name, stateErr(err))
	}
	out, ok := v.(T)
	if !ok {
		return zero, b.errorf("get cache variable", name, fmt.Errorf("%w: entry holds %T", ErrTypeMismatch, v))
	}
	return out, nil
}

// SetCacheVariableValue stores v and marks the entry valid.
func SetCacheVariableValue[T any](c Component, s *engine.State, name string, v T) error {
	b := c.ComponentBase()
	cv, err := b.cacheVariable("set cache variable", name)
	if err != nil {
		return err
	}
	if err := s.SetCache(cv.index, v); err != nil {
		return b.errorf("set cache variable", name, stateErr(err))
	}
	return nil
}

func (b *Base) MarkCacheVariableValid(s *engine.State, name string) error {
	cv, err := b.cacheVariable("mark cache variable valid", name)
	if err != nil {
		return err
	}
	return s.MarkCacheValid(cv.index)
}

func (b *Base) MarkCacheVariableInvalid(s *engine.State, name string) error {
	cv, err := b.cacheVariable("mark cache variable invalid", name)
	if err != nil {
		return err
	}
	return s.MarkCacheInvalid(cv.index)
}

// IsCacheVariableValid reports false for unknown names as well as stale
// entries.
func (b *Base) IsCacheVariableValid(s *engine.State, name string) bool {
	cv, err := b.cacheVariable("cache variable valid", name)
	if err != nil {
		return false
	}
	return s.IsCacheValid(cv.index)
}

// subtreeStateVariables lists this node's variables, hidden ones included,
// followed by those of every descendant in preorder.
func (b *Base) subtreeStateVariables() []StateVariable {
	out := b.stateVariables.values()
	if b.tree == nil || !b.tree.traversal {
		return out
	}
	for n := range b.tree.descendants(b) {
		out = append(out, n.stateVariables.values()...)
	}
	return out
}

// NumStateVariables counts every continuous variable in this subtree.
func (b *Base) NumStateVariables() (int, error) {
	if err := b.requireBuilt("state variables", ""); err != nil {
		return 0, err
	}
	return len(b.subtreeStateVariables()), nil
}

// StateVariableNames lists every variable in this subtree as a path relative
// to this node, in the same order as StateVariableValues.
func (b *Base) StateVariableNames() ([]string, error) {
	if err := b.requireBuilt("state variables", ""); err != nil {
		return nil, err
	}
	svs := b.subtreeStateVariables()
	names := make([]string, 0, len(svs))
	for _, sv := range svs {
		owner := sv.Owner().ComponentBase()
		if owner == b {
			names = append(names, sv.Name())
			continue
		}
		names = append(names, owner.RelativePathName(b.self)+"/"+sv.Name())
	}
	return names, nil
}

func (b *Base) StateVariableValues(s *engine.State) ([]float64, error) {
	if err := b.requireBuilt("state variable values", ""); err != nil {
		return nil, err
	}
	svs := b.subtreeStateVariables()
	out := make([]float64, len(svs))
	for i, sv := range svs {
		v, err := sv.Value(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// SetStateVariableValues writes a whole vector ordered as StateVariableNames.
func (b *Base) SetStateVariableValues(s *engine.State, values []float64) error {
	if err := b.requireBuilt("set state variable values", ""); err != nil {
		return err
	}
	svs := b.subtreeStateVariables()
	if len(values) != len(svs) {
		return b.errorf("set state variable values", "", fmt.Errorf("%w: got %d values for %d variables", ErrConfiguration, len(values), len(svs)))
	}
	for i, sv := range svs {
		if err := sv.SetValue(s, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// StateVariableDerivatives reads every derivative in vector order.
func (b *Base) StateVariableDerivatives(s *engine.State) ([]float64, error) {
	if err := b.requireBuilt("state variable derivatives", ""); err != nil {
		return nil, err
	}
	svs := b.subtreeStateVariables()
	out := make([]float64, len(svs))
	for i, sv := range svs {
		d, err := sv.Derivative(s)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
