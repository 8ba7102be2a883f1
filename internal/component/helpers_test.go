package component

import (
	"testing"

	"github.com/san-kum/simtree/internal/engine"
)

type testNode struct {
	Base
	subs []Component

	declare func(n *testNode) error
	realize func(n *testNode, s *engine.State, stage engine.Stage) error
	derivs  func(n *testNode, s *engine.State) error
	initial map[string]float64

	disconnects int
}

func newTestNode(name string, subs ...Component) *testNode {
	n := &testNode{subs: subs}
	n.Init(n, name)
	return n
}

func (n *testNode) ExtendFinalizeFromProperties() error {
	for _, s := range n.subs {
		if err := n.AddComponent(s); err != nil {
			return err
		}
	}
	return nil
}

func (n *testNode) ExtendAddToSystem(sys *engine.System) error {
	if n.declare == nil {
		return nil
	}
	return n.declare(n)
}

func (n *testNode) ExtendInitStateFromProperties(s *engine.State) error {
	for name, v := range n.initial {
		if err := n.SetStateVariableValue(s, name, v); err != nil {
			return err
		}
	}
	return nil
}

func (n *testNode) RealizeStage(s *engine.State, stage engine.Stage) error {
	if n.realize == nil {
		return nil
	}
	return n.realize(n, s, stage)
}

func (n *testNode) ComputeStateVariableDerivatives(s *engine.State) error {
	if n.derivs == nil {
		return nil
	}
	return n.derivs(n, s)
}

func (n *testNode) ExtendDisconnect() { n.disconnects++ }

// otherNode is a second concrete type for type-filtered lookups.
type otherNode struct {
	Base
}

func newOtherNode(name string) *otherNode {
	n := &otherNode{}
	n.Init(n, name)
	return n
}

func finalizeAndConnect(t *testing.T, root Component) {
	t.Helper()
	if err := FinalizeFromProperties(root); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := Connect(root); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

// build runs every structural phase and returns an initialized state.
func build(t *testing.T, root Component) *engine.State {
	t.Helper()
	finalizeAndConnect(t, root)
	sys := engine.NewSystem()
	if err := AddToSystem(root, sys); err != nil {
		t.Fatalf("add to system: %v", err)
	}
	s, err := sys.DefaultState()
	if err != nil {
		t.Fatalf("default state: %v", err)
	}
	if err := InitState(root, s); err != nil {
		t.Fatalf("init state: %v", err)
	}
	return s
}
