// Package component implements the tree of simulation nodes: naming and
// traversal, typed connectors and input/output wiring, per-node variable
// registries and the structural lifecycle that turns a tree into an engine
// system.
package component

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/san-kum/simtree/internal/engine"
)

// Component is implemented by every node of the tree. Concrete types embed
// Base and call Init from their constructor.
type Component interface {
	ComponentBase() *Base
}

// Phase is a node's position in the structural lifecycle.
type Phase int

const (
	PhaseConstructed Phase = iota
	PhasePropertiesFinalized
	PhaseConnected
	PhaseSystemBuilt
	PhaseStateInitialized
)

func (p Phase) String() string {
	switch p {
	case PhaseConstructed:
		return "Constructed"
	case PhasePropertiesFinalized:
		return "PropertiesFinalized"
	case PhaseConnected:
		return "Connected"
	case PhaseSystemBuilt:
		return "SystemBuilt"
	case PhaseStateInitialized:
		return "StateInitialized"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Base carries everything the framework tracks for a node. The zero value is
// not usable; call Init.
type Base struct {
	self      Component
	name      string
	className string
	phase     Phase

	// tree shape, valid once the owning root has finalized properties
	tree     *tree
	id       Handle
	parent   Handle
	children []Handle
	next     Handle
	pathName string

	connectors []ConnectorSlot
	inputs     []InputSlot
	outputs    map[string]OutputSlot

	subsystem       engine.SubsystemIndex
	modelingOptions *registry[*modelingOption]
	stateVariables  *registry[StateVariable]
	discreteVars    *registry[*discreteVariable]
	cacheVars       *registry[*cacheVariable]

	constructErr error
}

// Init binds the base to the concrete node that embeds it.
func (b *Base) Init(self Component, name string) {
	b.self = self
	b.name = name
	t := reflect.TypeOf(self)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	b.className = t.Name()
	b.id, b.parent, b.next = NoHandle, NoHandle, NoHandle
	b.outputs = make(map[string]OutputSlot)
	b.subsystem = engine.InvalidIndex
	b.resetRegistries()
}

func (b *Base) ComponentBase() *Base { return b }

// Self returns the concrete node embedding this base.
func (b *Base) Self() Component { return b.self }

func (b *Base) Name() string { return b.name }

// SetName renames the node. The path name is refreshed by the next Connect.
func (b *Base) SetName(name string) { b.name = name }

func (b *Base) ClassName() string { return b.className }

// EffectiveName is the name used in paths: the node name, or the concrete
// type name when the node is unnamed.
func (b *Base) EffectiveName() string {
	if b.name != "" {
		return b.name
	}
	return b.className
}

// PathName is the slash separated absolute path computed at connect time.
func (b *Base) PathName() string { return b.pathName }

func (b *Base) Phase() Phase { return b.phase }

// Parent returns the owning node; the root has none.
func (b *Base) Parent() (Component, bool) {
	if b.tree == nil || b.parent == NoHandle {
		return nil, false
	}
	return b.tree.get(b.parent), true
}

// Children returns the immediate subcomponents in declaration order.
func (b *Base) Children() []Component {
	if b.tree == nil {
		return nil
	}
	out := make([]Component, 0, len(b.children))
	for _, h := range b.children {
		out = append(out, b.tree.get(h))
	}
	return out
}

// Root returns the root of the tree this node was finalized in.
func (b *Base) Root() Component {
	if b.tree == nil {
		return b.self
	}
	return b.tree.get(rootHandle)
}

func (b *Base) IsRoot() bool { return b.tree == nil || b.id == rootHandle }

// Subsystem is the engine subsystem allocated for this node. It is assigned
// before the node's ExtendAddToSystem hook runs.
func (b *Base) Subsystem() (engine.SubsystemIndex, error) {
	if !b.subsystem.IsValid() {
		return engine.InvalidIndex, b.notReady("subsystem", "", PhaseSystemBuilt)
	}
	return b.subsystem, nil
}

// Connectors lists declared connectors in declaration order.
func (b *Base) Connectors() []ConnectorSlot {
	return slices.Clone(b.connectors)
}

// Connector finds a connector declared directly on this node.
func (b *Base) Connector(name string) (ConnectorSlot, error) {
	for _, c := range b.connectors {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, b.errorf("connector", name, ErrNotFound)
}

func (b *Base) Inputs() []InputSlot { return slices.Clone(b.inputs) }

// Outputs lists this node's outputs sorted by name.
func (b *Base) Outputs() []OutputSlot {
	names := make([]string, 0, len(b.outputs))
	for name := range b.outputs {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]OutputSlot, 0, len(names))
	for _, name := range names {
		out = append(out, b.outputs[name])
	}
	return out
}

func (b *Base) constructFailed(err error) {
	if b.constructErr == nil {
		b.constructErr = err
	}
}
