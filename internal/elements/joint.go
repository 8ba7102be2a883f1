package elements

import (
	"fmt"
	"math"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/engine"
)

// PinJoint hinges a Body to a parent Frame. The body hangs at its own Length
// from the parent along the joint angle, measured from the downward vertical
// relative to the parent's orientation.
type PinJoint struct {
	component.Base
	Damping float64

	// Coordinate is stored in the joint and registered as its subcomponent.
	Coordinate Coordinate

	parentFrame *component.Connector[Frame]
	childFrame  *component.Connector[*Body]
	gravity     float64
}

func NewPinJoint(name, parent, child string) *PinJoint {
	j := &PinJoint{}
	j.Init(j, name)
	j.parentFrame = component.ConstructConnector[Frame](j, "parent_frame")
	j.childFrame = component.ConstructConnector[*Body](j, "child_frame")
	j.parentFrame.SetConnecteeName(parent)
	j.childFrame.SetConnecteeName(child)
	j.Coordinate.init(name + "_angle")
	component.ConstructOutput(j, "gravity_torque", engine.StagePosition, j.gravityTorque)
	return j
}

func (j *PinJoint) ParentFrame() *component.Connector[Frame] { return j.parentFrame }

func (j *PinJoint) ChildFrame() *component.Connector[*Body] { return j.childFrame }

func (j *PinJoint) ExtendFinalizeFromProperties() error {
	if j.Damping < 0 || math.IsNaN(j.Damping) {
		return fmt.Errorf("%w: damping must be non-negative, got %g", component.ErrConfiguration, j.Damping)
	}
	return j.AddComponent(&j.Coordinate)
}

func (j *PinJoint) ExtendConnect() error {
	j.gravity = gravityFor(j)
	return nil
}

// ExtendAddToSystem allocates the mobility before the coordinate, which is a
// child of the joint, declares its state variables.
func (j *PinJoint) ExtendAddToSystem(sys *engine.System) error {
	child, err := j.childFrame.Connectee()
	if err != nil {
		return err
	}
	sub, err := j.Subsystem()
	if err != nil {
		return err
	}
	idx, err := sys.AddMobility(sub, child.Inertia(), j.Coordinate.DefaultValue, j.Coordinate.DefaultSpeed)
	if err != nil {
		return err
	}
	j.Coordinate.mobility = idx
	return nil
}

func (j *PinJoint) RealizeStage(s *engine.State, stage engine.Stage) error {
	switch stage {
	case engine.StagePosition:
		return j.realizePosition(s)
	case engine.StageDynamics:
		return j.realizeDynamics(s)
	}
	return nil
}

func (j *PinJoint) realizePosition(s *engine.State) error {
	return j.pose(s, 0)
}

// pose places the child body. A parent body that has not been placed yet is
// placed first through the joint carrying it, so joints may be declared in
// any order.
func (j *PinJoint) pose(s *engine.State, depth int) error {
	parent, err := j.parentFrame.Connectee()
	if err != nil {
		return err
	}
	child, err := j.childFrame.Connectee()
	if err != nil {
		return err
	}
	if body, ok := parent.(*Body); ok && !body.IsCacheVariableValid(s, "pose") {
		if carrier := j.carrierOf(body); carrier != nil {
			if depth > component.Count[*PinJoint](j.Root()) {
				return fmt.Errorf("%w: joint chain through %s is cyclic", component.ErrConfiguration, body.PathName())
			}
			if err := carrier.pose(s, depth+1); err != nil {
				return err
			}
		}
	}
	pp, err := parent.Pose(s)
	if err != nil {
		return err
	}
	q, err := j.Coordinate.Value(s)
	if err != nil {
		return err
	}
	return child.setPose(s, pp.Attach(q, child.Length))
}

// carrierOf returns the joint whose child is body, or nil for a body no
// joint carries.
func (j *PinJoint) carrierOf(body *Body) *PinJoint {
	for other := range component.List[*PinJoint](j.Root()) {
		if c, err := other.childFrame.Connectee(); err == nil && c == body {
			return other
		}
	}
	return nil
}

func (j *PinJoint) gravityTorque(s *engine.State) (float64, error) {
	child, err := j.childFrame.Connectee()
	if err != nil {
		return 0, err
	}
	p, err := child.Pose(s)
	if err != nil {
		return 0, err
	}
	return -child.Mass * j.gravity * child.Length * math.Sin(p.Angle), nil
}

func (j *PinJoint) realizeDynamics(s *engine.State) error {
	tau, err := j.gravityTorque(s)
	if err != nil {
		return err
	}
	u, err := j.Coordinate.Speed(s)
	if err != nil {
		return err
	}
	return s.ApplyMobilityForce(j.Coordinate.mobility, tau-j.Damping*u)
}

// Energy is the kinetic plus gravitational potential energy of the child
// body, with the potential zero at the parent's height.
func (j *PinJoint) Energy(s *engine.State) (float64, error) {
	child, err := j.childFrame.Connectee()
	if err != nil {
		return 0, err
	}
	parent, err := j.parentFrame.Connectee()
	if err != nil {
		return 0, err
	}
	pp, err := parent.Pose(s)
	if err != nil {
		return 0, err
	}
	cp, err := child.Pose(s)
	if err != nil {
		return 0, err
	}
	u, err := j.Coordinate.Speed(s)
	if err != nil {
		return 0, err
	}
	v := child.Length * u
	ke := 0.5 * child.Mass * v * v
	pe := child.Mass * j.gravity * (cp.Y - pp.Y + child.Length)
	return ke + pe, nil
}

func (j *PinJoint) GenerateDecorations(fixed bool, s *engine.State, out []component.Decoration) ([]component.Decoration, error) {
	if fixed {
		return out, nil
	}
	parent, err := j.parentFrame.Connectee()
	if err != nil {
		return nil, err
	}
	child, err := j.childFrame.Connectee()
	if err != nil {
		return nil, err
	}
	pp, err := parent.Pose(s)
	if err != nil {
		return nil, err
	}
	cp, err := child.Pose(s)
	if err != nil {
		return nil, err
	}
	return append(out, component.Decoration{
		Kind:  component.DecorationLine,
		Owner: j.PathName(),
		X:     pp.X,
		Y:     pp.Y,
		X2:    cp.X,
		Y2:    cp.Y,
	}), nil
}

func (j *PinJoint) Params() map[string]float64 {
	return map[string]float64{
		"damping": j.Damping,
		"angle":   j.Coordinate.DefaultValue,
		"speed":   j.Coordinate.DefaultSpeed,
	}
}

func (j *PinJoint) SetParam(name string, value float64) error {
	switch name {
	case "damping":
		j.Damping = value
	case "angle":
		j.Coordinate.DefaultValue = value
	case "speed":
		j.Coordinate.DefaultSpeed = value
	case "locked":
		j.Coordinate.Locked = value != 0
	default:
		return unknownParam(j, name)
	}
	return nil
}
