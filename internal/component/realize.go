package component

import (
	"fmt"

	"github.com/san-kum/simtree/internal/engine"
)

// StageRealizer is called for every stage as the engine realizes a state,
// after the stage's engine bookkeeping. Implementations may read only values
// valid at or below stage and may write cache entries of this node.
type StageRealizer interface {
	RealizeStage(s *engine.State, stage engine.Stage) error
}

// DerivativeComputer supplies derivatives for the node's added state
// variables. It runs with the state realized through Acceleration.
type DerivativeComputer interface {
	ComputeStateVariableDerivatives(s *engine.State) error
}

// realizer is the engine's handle on one node. Nodes are registered in
// preorder, so a parent always realizes a stage before its children.
type realizer struct {
	b *Base
}

func (r *realizer) Allocate(sys *engine.System) error {
	if err := r.b.allocate(sys); err != nil {
		return r.b.wrap("allocate", err)
	}
	r.b.phase = PhaseSystemBuilt
	return nil
}

func (r *realizer) Realize(s *engine.State, stage engine.Stage) error {
	h, ok := r.b.self.(StageRealizer)
	if !ok {
		return nil
	}
	if err := h.RealizeStage(s, stage); err != nil {
		return r.b.wrap("realize "+stage.String(), err)
	}
	return nil
}

func builtTree(op string, root Component) (*Base, error) {
	rb, err := requireRoot(op, root)
	if err != nil {
		return nil, err
	}
	if rb.phase < PhaseSystemBuilt || rb.tree.system == nil {
		return nil, rb.notReady(op, "", PhaseSystemBuilt)
	}
	return rb, nil
}

// Realize brings s up to stage through the system the tree was added to.
func Realize(root Component, s *engine.State, stage engine.Stage) error {
	rb, err := builtTree("realize", root)
	if err != nil {
		return err
	}
	if err := rb.tree.system.Realize(s, stage); err != nil {
		return rb.wrap("realize", err)
	}
	return nil
}

// ComputeStateVariableDerivatives realizes s through Acceleration, lets every
// node write its derivatives and fails if any added state variable was left
// without one.
func ComputeStateVariableDerivatives(root Component, s *engine.State) error {
	rb, err := builtTree("compute derivatives", root)
	if err != nil {
		return err
	}
	if err := rb.tree.system.Realize(s, engine.StageAcceleration); err != nil {
		return rb.wrap("compute derivatives", err)
	}
	if err := s.BeginDerivatives(); err != nil {
		return rb.wrap("compute derivatives", err)
	}
	defer s.EndDerivatives()
	for b := range rb.tree.all() {
		if h, ok := b.self.(DerivativeComputer); ok {
			if err := h.ComputeStateVariableDerivatives(s); err != nil {
				return b.wrap("compute derivatives", err)
			}
		}
	}
	for _, sv := range rb.subtreeStateVariables() {
		added, ok := sv.(*AddedStateVariable)
		if !ok || s.IsZDotSet(added.index) {
			continue
		}
		return added.owner.errorf("compute derivatives", added.name, ErrMissingDerivative)
	}
	return nil
}

// DecorationKind names a renderable primitive.
type DecorationKind string

const (
	DecorationSphere DecorationKind = "sphere"
	DecorationLine   DecorationKind = "line"
	DecorationFrame  DecorationKind = "frame"
)

// Decoration is a planar geometry descriptor for display collaborators.
type Decoration struct {
	Kind   DecorationKind
	Owner  string
	X, Y   float64
	X2, Y2 float64
	Radius float64
	Fixed  bool
}

// DecorationGenerator appends a node's geometry. It must not modify s.
type DecorationGenerator interface {
	GenerateDecorations(fixed bool, s *engine.State, out []Decoration) ([]Decoration, error)
}

// GenerateDecorations collects geometry from every node in preorder. The
// state must be realized through Position.
func GenerateDecorations(root Component, fixed bool, s *engine.State) ([]Decoration, error) {
	rb, err := builtTree("generate decorations", root)
	if err != nil {
		return nil, err
	}
	if s.Stage() < engine.StagePosition {
		err := &engine.StageError{Op: "decorations", Required: engine.StagePosition, Current: s.Stage()}
		return nil, rb.errorf("generate decorations", "", fmt.Errorf("%w: %w", ErrNotReady, err))
	}
	var out []Decoration
	for b := range rb.tree.all() {
		h, ok := b.self.(DecorationGenerator)
		if !ok {
			continue
		}
		if out, err = h.GenerateDecorations(fixed, s, out); err != nil {
			return nil, b.wrap("generate decorations", err)
		}
	}
	return out, nil
}
