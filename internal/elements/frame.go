// Package elements provides planar mechanical nodes built on the component
// framework: frames, bodies, pin joints with their coordinates, springs and
// sensors.
package elements

import (
	"fmt"
	"math"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/engine"
)

const StandardGravity = 9.80665

// Pose is a planar position and absolute orientation.
type Pose struct {
	X, Y  float64
	Angle float64
}

// Attach returns the point at distance length along the direction angle
// measured from the downward vertical, relative to p.
func (p Pose) Attach(angle, length float64) Pose {
	abs := p.Angle + angle
	return Pose{
		X:     p.X + length*math.Sin(abs),
		Y:     p.Y - length*math.Cos(abs),
		Angle: abs,
	}
}

// Frame is anything a joint can be attached to.
type Frame interface {
	component.Component
	Pose(s *engine.State) (Pose, error)
}

// Environment is implemented by roots that define the gravitational field.
type Environment interface {
	GravityAcceleration() float64
}

// Parameterized exposes numeric properties by name.
type Parameterized interface {
	Params() map[string]float64
	SetParam(name string, value float64) error
}

func unknownParam(c component.Component, name string) error {
	return fmt.Errorf("%s: unknown param: %s", c.ComponentBase().ClassName(), name)
}

func gravityFor(c component.Component) float64 {
	if env, ok := c.ComponentBase().Root().(Environment); ok {
		return env.GravityAcceleration()
	}
	return StandardGravity
}

// Ground is the fixed inertial frame at the origin.
type Ground struct {
	component.Base
}

func NewGround(name string) *Ground {
	g := &Ground{}
	g.Init(g, name)
	return g
}

func (g *Ground) Pose(*engine.State) (Pose, error) { return Pose{}, nil }

func (g *Ground) GenerateDecorations(fixed bool, s *engine.State, out []component.Decoration) ([]component.Decoration, error) {
	if !fixed {
		return out, nil
	}
	return append(out, component.Decoration{Kind: component.DecorationFrame, Owner: g.PathName(), Radius: 0.1, Fixed: true}), nil
}
