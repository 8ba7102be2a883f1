package elements

import (
	"fmt"
	"math"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/engine"
)

// TorsionalSpring applies -Stiffness*(q - RestAngle) - Damping*u to a
// coordinate. The torque is cached per state until Velocity is invalidated.
type TorsionalSpring struct {
	component.Base
	Stiffness float64
	RestAngle float64
	Damping   float64

	coordinate *component.Connector[*Coordinate]
}

func NewTorsionalSpring(name, coordinate string, stiffness float64) *TorsionalSpring {
	ts := &TorsionalSpring{Stiffness: stiffness}
	ts.Init(ts, name)
	ts.coordinate = component.ConstructConnector[*Coordinate](ts, "coordinate")
	ts.coordinate.SetConnecteeName(coordinate)
	component.ConstructOutput(ts, "torque", engine.StageVelocity, ts.Torque)
	component.ConstructOutput(ts, "power", engine.StageVelocity, ts.Power)
	component.ConstructOutput(ts, "potential_energy", engine.StagePosition, ts.Energy)
	return ts
}

func (ts *TorsionalSpring) CoordinateConnector() *component.Connector[*Coordinate] {
	return ts.coordinate
}

func (ts *TorsionalSpring) ExtendFinalizeFromProperties() error {
	if ts.Stiffness < 0 || math.IsNaN(ts.Stiffness) {
		return fmt.Errorf("%w: stiffness must be non-negative, got %g", component.ErrConfiguration, ts.Stiffness)
	}
	if ts.Damping < 0 {
		return fmt.Errorf("%w: damping must be non-negative, got %g", component.ErrConfiguration, ts.Damping)
	}
	return nil
}

func (ts *TorsionalSpring) ExtendAddToSystem(*engine.System) error {
	return component.AddCacheVariable(ts, "torque", 0.0, engine.StageVelocity)
}

// Torque returns the cached torque, computing and caching it when stale.
func (ts *TorsionalSpring) Torque(s *engine.State) (float64, error) {
	if ts.IsCacheVariableValid(s, "torque") {
		return component.GetCacheVariableValue[float64](ts, s, "torque")
	}
	c, err := ts.coordinate.Connectee()
	if err != nil {
		return 0, err
	}
	q, err := c.Value(s)
	if err != nil {
		return 0, err
	}
	u, err := c.Speed(s)
	if err != nil {
		return 0, err
	}
	tau := -ts.Stiffness*(q-ts.RestAngle) - ts.Damping*u
	if err := component.SetCacheVariableValue(ts, s, "torque", tau); err != nil {
		return 0, err
	}
	return tau, nil
}

func (ts *TorsionalSpring) Power(s *engine.State) (float64, error) {
	tau, err := ts.Torque(s)
	if err != nil {
		return 0, err
	}
	c, err := ts.coordinate.Connectee()
	if err != nil {
		return 0, err
	}
	u, err := c.Speed(s)
	if err != nil {
		return 0, err
	}
	return tau * u, nil
}

// Energy is the elastic potential energy stored in the spring.
func (ts *TorsionalSpring) Energy(s *engine.State) (float64, error) {
	c, err := ts.coordinate.Connectee()
	if err != nil {
		return 0, err
	}
	q, err := c.Value(s)
	if err != nil {
		return 0, err
	}
	d := q - ts.RestAngle
	return 0.5 * ts.Stiffness * d * d, nil
}

func (ts *TorsionalSpring) RealizeStage(s *engine.State, stage engine.Stage) error {
	if stage != engine.StageDynamics {
		return nil
	}
	tau, err := ts.Torque(s)
	if err != nil {
		return err
	}
	c, err := ts.coordinate.Connectee()
	if err != nil {
		return err
	}
	return s.ApplyMobilityForce(c.Mobility(), tau)
}

func (ts *TorsionalSpring) Params() map[string]float64 {
	return map[string]float64{
		"stiffness":  ts.Stiffness,
		"rest_angle": ts.RestAngle,
		"damping":    ts.Damping,
	}
}

func (ts *TorsionalSpring) SetParam(name string, value float64) error {
	switch name {
	case "stiffness":
		ts.Stiffness = value
	case "rest_angle":
		ts.RestAngle = value
	case "damping":
		ts.Damping = value
	default:
		return unknownParam(ts, name)
	}
	return nil
}

// CoordinateCoupler is a spring acting on the difference of two coordinates,
// pushing them back toward equal values.
type CoordinateCoupler struct {
	component.Base
	Stiffness float64

	first  *component.Connector[*Coordinate]
	second *component.Connector[*Coordinate]
}

func NewCoordinateCoupler(name, first, second string, stiffness float64) *CoordinateCoupler {
	cc := &CoordinateCoupler{Stiffness: stiffness}
	cc.Init(cc, name)
	cc.first = component.ConstructConnector[*Coordinate](cc, "coordinate1")
	cc.second = component.ConstructConnector[*Coordinate](cc, "coordinate2")
	cc.first.SetConnecteeName(first)
	cc.second.SetConnecteeName(second)
	component.ConstructOutput(cc, "torque", engine.StagePosition, cc.Torque)
	return cc
}

func (cc *CoordinateCoupler) ExtendConnect() error {
	a, err := cc.first.Connectee()
	if err != nil {
		return err
	}
	b, err := cc.second.Connectee()
	if err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("%w: coupler needs two distinct coordinates", component.ErrConfiguration)
	}
	return nil
}

// Torque is the torque applied to the first coordinate; the second receives
// its negative.
func (cc *CoordinateCoupler) Torque(s *engine.State) (float64, error) {
	a, err := cc.first.Connectee()
	if err != nil {
		return 0, err
	}
	b, err := cc.second.Connectee()
	if err != nil {
		return 0, err
	}
	qa, err := a.Value(s)
	if err != nil {
		return 0, err
	}
	qb, err := b.Value(s)
	if err != nil {
		return 0, err
	}
	return -cc.Stiffness * (qa - qb), nil
}

func (cc *CoordinateCoupler) Energy(s *engine.State) (float64, error) {
	tau, err := cc.Torque(s)
	if err != nil || cc.Stiffness == 0 {
		return 0, err
	}
	return 0.5 * tau * tau / cc.Stiffness, nil
}

func (cc *CoordinateCoupler) RealizeStage(s *engine.State, stage engine.Stage) error {
	if stage != engine.StageDynamics {
		return nil
	}
	tau, err := cc.Torque(s)
	if err != nil {
		return err
	}
	a, _ := cc.first.Connectee()
	b, _ := cc.second.Connectee()
	if err := s.ApplyMobilityForce(a.Mobility(), tau); err != nil {
		return err
	}
	return s.ApplyMobilityForce(b.Mobility(), -tau)
}

func (cc *CoordinateCoupler) Params() map[string]float64 {
	return map[string]float64{"stiffness": cc.Stiffness}
}

func (cc *CoordinateCoupler) SetParam(name string, value float64) error {
	if name != "stiffness" {
		return unknownParam(cc, name)
	}
	cc.Stiffness = value
	return nil
}
