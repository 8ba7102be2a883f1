package elements

import (
	"fmt"
	"math"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/engine"
)

// Body is a point mass at the end of a massless rod of Length. Its pose is
// written by the joint that carries it while Position is realized.
type Body struct {
	component.Base
	Mass   float64
	Length float64
}

func NewBody(name string, mass, length float64) *Body {
	b := &Body{Mass: mass, Length: length}
	b.Init(b, name)
	component.ConstructOutput(b, "height", engine.StagePosition, func(s *engine.State) (float64, error) {
		p, err := b.Pose(s)
		return p.Y, err
	})
	component.ConstructOutput(b, "x", engine.StagePosition, func(s *engine.State) (float64, error) {
		p, err := b.Pose(s)
		return p.X, err
	})
	return b
}

func (b *Body) ExtendFinalizeFromProperties() error {
	if b.Mass <= 0 || math.IsNaN(b.Mass) {
		return fmt.Errorf("%w: mass must be positive, got %g", component.ErrConfiguration, b.Mass)
	}
	if b.Length <= 0 || math.IsNaN(b.Length) {
		return fmt.Errorf("%w: length must be positive, got %g", component.ErrConfiguration, b.Length)
	}
	return nil
}

func (b *Body) ExtendAddToSystem(*engine.System) error {
	return component.AddCacheVariable(b, "pose", Pose{}, engine.StagePosition)
}

func (b *Body) Pose(s *engine.State) (Pose, error) {
	return component.GetCacheVariableValue[Pose](b, s, "pose")
}

func (b *Body) setPose(s *engine.State, p Pose) error {
	return component.SetCacheVariableValue(b, s, "pose", p)
}

// Inertia about the pivot.
func (b *Body) Inertia() float64 { return b.Mass * b.Length * b.Length }

func (b *Body) GenerateDecorations(fixed bool, s *engine.State, out []component.Decoration) ([]component.Decoration, error) {
	if fixed {
		return out, nil
	}
	p, err := b.Pose(s)
	if err != nil {
		return nil, err
	}
	return append(out, component.Decoration{
		Kind:   component.DecorationSphere,
		Owner:  b.PathName(),
		X:      p.X,
		Y:      p.Y,
		Radius: 0.08 * math.Cbrt(b.Mass),
	}), nil
}

func (b *Body) Params() map[string]float64 {
	return map[string]float64{
		"mass":   b.Mass,
		"length": b.Length,
	}
}

func (b *Body) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		b.Mass = value
	case "length":
		b.Length = value
	default:
		return unknownParam(b, name)
	}
	return nil
}
