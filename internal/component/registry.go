package component

import (
	"fmt"

	"github.com/san-kum/simtree/internal/engine"
)

// registry is a name keyed table that remembers insertion order.
type registry[V any] struct {
	order []string
	items map[string]V
}

func newRegistry[V any]() *registry[V] {
	return &registry[V]{items: make(map[string]V)}
}

func (r *registry[V]) add(name string, v V) bool {
	if _, dup := r.items[name]; dup {
		return false
	}
	r.order = append(r.order, name)
	r.items[name] = v
	return true
}

func (r *registry[V]) get(name string) (V, bool) {
	v, ok := r.items[name]
	return v, ok
}

func (r *registry[V]) values() []V {
	out := make([]V, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.items[name])
	}
	return out
}

func (r *registry[V]) len() int { return len(r.order) }

type modelingOption struct {
	maxFlag int
	index   engine.DiscreteIndex
}

type discreteVariable struct {
	invalidates engine.Stage
	index       engine.DiscreteIndex
}

type cacheVariable struct {
	dependsOn engine.Stage
	prototype any
	index     engine.CacheIndex
}

func (b *Base) resetRegistries() {
	b.subsystem = engine.InvalidIndex
	b.modelingOptions = newRegistry[*modelingOption]()
	b.stateVariables = newRegistry[StateVariable]()
	b.discreteVars = newRegistry[*discreteVariable]()
	b.cacheVars = newRegistry[*cacheVariable]()
}

func (b *Base) checkBuilding(op, name string) error {
	if b.tree == nil || !b.tree.building {
		return b.errorf(op, name, fmt.Errorf("%w: variables are declared while adding to the system", ErrNotReady))
	}
	return nil
}

// AddModelingOption declares an integer flag in [0, maxFlag] whose changes
// invalidate Model.
func (b *Base) AddModelingOption(name string, maxFlag int) error {
	if err := b.checkBuilding("add modeling option", name); err != nil {
		return err
	}
	if maxFlag < 0 {
		return b.errorf("add modeling option", name, fmt.Errorf("%w: max flag %d", ErrConfiguration, maxFlag))
	}
	if !b.modelingOptions.add(name, &modelingOption{maxFlag: maxFlag, index: engine.InvalidIndex}) {
		return b.errorf("add modeling option", name, ErrDuplicateName)
	}
	return nil
}

// AddStateVariable declares a continuous variable owned by this node. Its
// derivative must be supplied on every derivative evaluation.
func (b *Base) AddStateVariable(name string, invalidates engine.Stage, hidden bool) error {
	if err := b.checkBuilding("add state variable", name); err != nil {
		return err
	}
	sv := &AddedStateVariable{name: name, owner: b, invalidates: invalidates, hidden: hidden, index: engine.InvalidIndex}
	if !b.stateVariables.add(name, sv) {
		return b.errorf("add state variable", name, ErrDuplicateName)
	}
	return nil
}

// AddDelegatedStateVariable exposes an engine native resource as a state
// variable of this node.
func (b *Base) AddDelegatedStateVariable(sv *DelegatedStateVariable) error {
	if err := b.checkBuilding("add state variable", sv.name); err != nil {
		return err
	}
	if sv.d.Value == nil || sv.d.SetValue == nil {
		return b.errorf("add state variable", sv.name, fmt.Errorf("%w: delegated variable needs value accessors", ErrConfiguration))
	}
	sv.owner = b
	if !b.stateVariables.add(sv.name, sv) {
		return b.errorf("add state variable", sv.name, ErrDuplicateName)
	}
	return nil
}

func (b *Base) AddDiscreteVariable(name string, invalidates engine.Stage) error {
	if err := b.checkBuilding("add discrete variable", name); err != nil {
		return err
	}
	if !b.discreteVars.add(name, &discreteVariable{invalidates: invalidates, index: engine.InvalidIndex}) {
		return b.errorf("add discrete variable", name, ErrDuplicateName)
	}
	return nil
}

// AddCacheVariable declares a cache entry of type T valid from dependsOn.
func AddCacheVariable[T any](c Component, name string, prototype T, dependsOn engine.Stage) error {
	b := c.ComponentBase()
	if err := b.checkBuilding("add cache variable", name); err != nil {
		return err
	}
	if !b.cacheVars.add(name, &cacheVariable{dependsOn: dependsOn, prototype: prototype, index: engine.InvalidIndex}) {
		return b.errorf("add cache variable", name, ErrDuplicateName)
	}
	return nil
}

// allocate assigns engine indices to everything declared in the registries.
// It runs during the system's topology allocation pass.
func (b *Base) allocate(sys *engine.System) error {
	for _, opt := range b.modelingOptions.values() {
		idx, err := sys.AllocateDiscrete(b.subsystem, engine.StageModel, 0)
		if err != nil {
			return err
		}
		opt.index = idx
	}
	for _, sv := range b.stateVariables.values() {
		added, ok := sv.(*AddedStateVariable)
		if !ok {
			continue
		}
		idx, err := sys.AllocateContinuous(b.subsystem, 0, added.invalidates)
		if err != nil {
			return err
		}
		added.index = idx
	}
	for _, dv := range b.discreteVars.values() {
		idx, err := sys.AllocateDiscrete(b.subsystem, dv.invalidates, 0.0)
		if err != nil {
			return err
		}
		dv.index = idx
	}
	for _, cv := range b.cacheVars.values() {
		idx, err := sys.AllocateCache(b.subsystem, cv.dependsOn, cv.prototype)
		if err != nil {
			return err
		}
		cv.index = idx
	}
	return nil
}

func (b *Base) requireBuilt(op, name string) error {
	if b.phase < PhaseSystemBuilt {
		return b.notReady(op, name, PhaseSystemBuilt)
	}
	return nil
}

// StateVariableIndex is the engine index of an added state variable.
func (b *Base) StateVariableIndex(name string) (engine.ZIndex, error) {
	if err := b.requireBuilt("state variable index", name); err != nil {
		return engine.InvalidIndex, err
	}
	sv, ok := b.stateVariables.get(name)
	if !ok {
		return engine.InvalidIndex, b.errorf("state variable index", name, ErrNotFound)
	}
	added, ok := sv.(*AddedStateVariable)
	if !ok {
		return engine.InvalidIndex, b.errorf("state variable index", name, fmt.Errorf("%w: delegated variable has no own index", ErrConfiguration))
	}
	return added.index, nil
}

func (b *Base) DiscreteVariableIndex(name string) (engine.DiscreteIndex, error) {
	if err := b.requireBuilt("discrete variable index", name); err != nil {
		return engine.InvalidIndex, err
	}
	dv, ok := b.discreteVars.get(name)
	if !ok {
		return engine.InvalidIndex, b.errorf("discrete variable index", name, ErrNotFound)
	}
	return dv.index, nil
}

func (b *Base) CacheVariableIndex(name string) (engine.CacheIndex, error) {
	if err := b.requireBuilt("cache variable index", name); err != nil {
		return engine.InvalidIndex, err
	}
	cv, ok := b.cacheVars.get(name)
	if !ok {
		return engine.InvalidIndex, b.errorf("cache variable index", name, ErrNotFound)
	}
	return cv.index, nil
}

// ModelingOptionNames, DiscreteVariableNames and CacheVariableNames list this
// node's own declarations in order.
func (b *Base) ModelingOptionNames() []string { return append([]string(nil), b.modelingOptions.order...) }
func (b *Base) DiscreteVariableNames() []string { return append([]string(nil), b.discreteVars.order...) }
func (b *Base) CacheVariableNames() []string { return append([]string(nil), b.cacheVars.order...) }
