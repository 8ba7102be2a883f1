package component

import (
	"errors"
	"fmt"

	"github.com/san-kum/simtree/internal/engine"
)

// Optional per-phase hooks. The drivers below run the framework's own work
// for a node first and then the node's hook, parent before children.
type (
	PropertiesFinalizer interface {
		ExtendFinalizeFromProperties() error
	}

	Connecter interface {
		ExtendConnect() error
	}

	Disconnecter interface {
		ExtendDisconnect()
	}

	SystemAdder interface {
		ExtendAddToSystem(sys *engine.System) error
	}

	// SystemAdderAfterSubcomponents runs once every child has been added,
	// for nodes that need their children's engine resources.
	SystemAdderAfterSubcomponents interface {
		ExtendAddToSystemAfterSubcomponents(sys *engine.System) error
	}

	StateInitializer interface {
		ExtendInitStateFromProperties(s *engine.State) error
	}

	PropertiesFromStateSetter interface {
		ExtendSetPropertiesFromState(s *engine.State) error
	}
)

func (b *Base) wrap(op string, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return b.errorf(op, "", err)
}

func requireRoot(op string, root Component) (*Base, error) {
	rb := root.ComponentBase()
	if rb.self == nil {
		return nil, fmt.Errorf("%s: %w: component was not initialized", op, ErrConfiguration)
	}
	if !rb.IsRoot() {
		return nil, rb.errorf(op, "", fmt.Errorf("%w: lifecycle is driven from the root", ErrConfiguration))
	}
	return rb, nil
}

// FinalizeFromProperties builds the tree below root from every node's
// properties. Subcomponents may only be added from ExtendFinalizeFromProperties.
// On success every node is PropertiesFinalized and preorder traversal is ready.
func FinalizeFromProperties(root Component) error {
	rb, err := requireRoot("finalize from properties", root)
	if err != nil {
		return err
	}
	if rb.tree != nil {
		Disconnect(root)
	}
	t := newTree(root)
	t.finalizing = true
	err = finalizeNode(rb)
	t.finalizing = false
	if err != nil {
		for i := range t.nodes {
			t.base(Handle(i)).phase = PhaseConstructed
		}
		return err
	}
	t.populatePathNames()
	t.initTraversal()
	for b := range t.all() {
		b.phase = PhasePropertiesFinalized
	}
	return nil
}

func finalizeNode(b *Base) error {
	if b.constructErr != nil {
		return b.constructErr
	}
	if h, ok := b.self.(PropertiesFinalizer); ok {
		if err := h.ExtendFinalizeFromProperties(); err != nil {
			return b.wrap("finalize from properties", err)
		}
	}
	for _, h := range b.children {
		if err := finalizeNode(b.tree.base(h)); err != nil {
			return err
		}
	}
	return nil
}

// Connect refreshes path names and preorder links, then resolves every
// connector and input in the tree. Any failure leaves the whole tree
// disconnected.
func Connect(root Component) error {
	rb, err := requireRoot("connect", root)
	if err != nil {
		return err
	}
	if rb.tree == nil || rb.phase < PhasePropertiesFinalized {
		return rb.notReady("connect", "", PhasePropertiesFinalized)
	}
	if rb.phase >= PhaseConnected {
		Disconnect(root)
	}
	t := rb.tree
	t.populatePathNames()
	t.initTraversal()
	for b := range t.all() {
		if err := connectNode(b); err != nil {
			Disconnect(root)
			return err
		}
	}
	for b := range t.all() {
		b.phase = PhaseConnected
	}
	return nil
}

func connectNode(b *Base) error {
	for _, c := range b.connectors {
		if err := c.connect(b); err != nil {
			return err
		}
	}
	for _, in := range b.inputs {
		if err := in.connect(b); err != nil {
			return err
		}
	}
	if h, ok := b.self.(Connecter); ok {
		if err := h.ExtendConnect(); err != nil {
			return b.wrap("connect", err)
		}
	}
	return nil
}

// Disconnect clears every connector and input binding in c's subtree, drops
// all registries and engine indices and returns the nodes to
// PropertiesFinalized. Subcomponent membership is kept. Calling it on an
// already disconnected tree does nothing.
func Disconnect(c Component) {
	b := c.ComponentBase()
	if b.tree == nil {
		return
	}
	disconnectNode(b)
	for n := range b.tree.descendants(b) {
		disconnectNode(n)
	}
	if b.IsRoot() {
		b.tree.building = false
		b.tree.system = nil
	}
}

func disconnectNode(b *Base) {
	for _, c := range b.connectors {
		c.disconnect()
	}
	for _, in := range b.inputs {
		in.disconnect()
	}
	b.resetRegistries()
	if h, ok := b.self.(Disconnecter); ok {
		h.ExtendDisconnect()
	}
	if b.phase > PhasePropertiesFinalized {
		b.phase = PhasePropertiesFinalized
	}
}

// AddToSystem gives every node a subsystem and a stage realizer, runs the
// nodes' declarations and realizes the system's topology, which assigns
// every registry its engine indices.
func AddToSystem(root Component, sys *engine.System) error {
	rb, err := requireRoot("add to system", root)
	if err != nil {
		return err
	}
	if rb.phase < PhaseConnected {
		return rb.notReady("add to system", "", PhaseConnected)
	}
	t := rb.tree
	if rb.phase > PhaseConnected {
		resetBuild(t)
	}
	t.building = true
	err = addNode(rb, sys)
	t.building = false
	if err == nil {
		err = sys.RealizeTopology()
	}
	if err != nil {
		resetBuild(t)
		return rb.wrap("add to system", err)
	}
	t.system = sys
	return nil
}

func resetBuild(t *tree) {
	for b := range t.all() {
		b.resetRegistries()
		b.phase = PhaseConnected
	}
	t.system = nil
}

func addNode(b *Base, sys *engine.System) error {
	sub, err := sys.AddSubsystem(b.pathName)
	if err != nil {
		return b.wrap("add to system", err)
	}
	b.subsystem = sub
	if err := sys.AddRealizer(&realizer{b: b}); err != nil {
		return b.wrap("add to system", err)
	}
	if h, ok := b.self.(SystemAdder); ok {
		if err := h.ExtendAddToSystem(sys); err != nil {
			return b.wrap("add to system", err)
		}
	}
	for _, h := range b.children {
		if err := addNode(b.tree.base(h), sys); err != nil {
			return err
		}
	}
	if h, ok := b.self.(SystemAdderAfterSubcomponents); ok {
		if err := h.ExtendAddToSystemAfterSubcomponents(sys); err != nil {
			return b.wrap("add to system after subcomponents", err)
		}
	}
	return nil
}

// InitState copies property defaults into s.
func InitState(root Component, s *engine.State) error {
	rb, err := requireRoot("init state", root)
	if err != nil {
		return err
	}
	if rb.phase < PhaseSystemBuilt {
		return rb.notReady("init state", "", PhaseSystemBuilt)
	}
	if s.System() != rb.tree.system {
		return rb.errorf("init state", "", engine.ErrForeignState)
	}
	for b := range rb.tree.all() {
		if h, ok := b.self.(StateInitializer); ok {
			if err := h.ExtendInitStateFromProperties(s); err != nil {
				return b.wrap("init state", err)
			}
		}
	}
	for b := range rb.tree.all() {
		b.phase = PhaseStateInitialized
	}
	return nil
}

// SetPropertiesFromState copies values from s back into property defaults,
// the inverse of InitState.
func SetPropertiesFromState(root Component, s *engine.State) error {
	rb, err := requireRoot("set properties from state", root)
	if err != nil {
		return err
	}
	if rb.phase < PhaseSystemBuilt {
		return rb.notReady("set properties from state", "", PhaseSystemBuilt)
	}
	for b := range rb.tree.all() {
		if h, ok := b.self.(PropertiesFromStateSetter); ok {
			if err := h.ExtendSetPropertiesFromState(s); err != nil {
				return b.wrap("set properties from state", err)
			}
		}
	}
	return nil
}
