package elements

import (
	"fmt"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/engine"
)

// Coordinate is the generalized coordinate of a joint. Its value and speed
// are the engine's native Q and U storage, exposed as delegated state
// variables. A Coordinate only exists inside the joint that owns it.
type Coordinate struct {
	component.Base
	DefaultValue float64
	DefaultSpeed float64
	Locked       bool

	mobility engine.MobilityIndex
}

func (c *Coordinate) init(name string) {
	c.Init(c, name)
	c.mobility = engine.InvalidIndex
	component.ConstructOutput(c, "value", engine.StageModel, c.Value)
	component.ConstructOutput(c, "speed", engine.StageModel, c.Speed)
	component.ConstructOutput(c, "acceleration", engine.StageAcceleration, c.Acceleration)
}

func (c *Coordinate) Value(s *engine.State) (float64, error) { return s.Q(c.mobility) }
func (c *Coordinate) Speed(s *engine.State) (float64, error) { return s.U(c.mobility) }

func (c *Coordinate) Acceleration(s *engine.State) (float64, error) {
	return s.UDot(c.mobility)
}

func (c *Coordinate) SetValue(s *engine.State, v float64) error { return s.SetQ(c.mobility, v) }
func (c *Coordinate) SetSpeed(s *engine.State, v float64) error { return s.SetU(c.mobility, v) }

// Mobility is the engine mobility allocated by the owning joint.
func (c *Coordinate) Mobility() engine.MobilityIndex { return c.mobility }

func (c *Coordinate) ExtendDisconnect() { c.mobility = engine.InvalidIndex }

func (c *Coordinate) ExtendAddToSystem(*engine.System) error {
	if !c.mobility.IsValid() {
		return fmt.Errorf("%w: coordinate has no mobility; it must be owned by a joint", component.ErrConfiguration)
	}
	value := component.NewDelegatedStateVariable("value", false, component.Delegate{
		Value:      c.Value,
		SetValue:   c.SetValue,
		Derivative: func(s *engine.State) (float64, error) { return s.QDot(c.mobility) },
	})
	speed := component.NewDelegatedStateVariable("speed", false, component.Delegate{
		Value:      c.Speed,
		SetValue:   c.SetSpeed,
		Derivative: c.Acceleration,
	})
	if err := c.AddDelegatedStateVariable(value); err != nil {
		return err
	}
	if err := c.AddDelegatedStateVariable(speed); err != nil {
		return err
	}
	return c.AddModelingOption("locked", 1)
}

func (c *Coordinate) ExtendInitStateFromProperties(s *engine.State) error {
	if err := c.SetValue(s, c.DefaultValue); err != nil {
		return err
	}
	speed := c.DefaultSpeed
	if c.Locked {
		speed = 0
	}
	if err := c.SetSpeed(s, speed); err != nil {
		return err
	}
	flag := 0
	if c.Locked {
		flag = 1
	}
	return c.SetModelingOption(s, "locked", flag)
}

func (c *Coordinate) ExtendSetPropertiesFromState(s *engine.State) error {
	var err error
	if c.DefaultValue, err = c.Value(s); err != nil {
		return err
	}
	if c.DefaultSpeed, err = c.Speed(s); err != nil {
		return err
	}
	flag, err := c.GetModelingOption(s, "locked")
	if err != nil {
		return err
	}
	c.Locked = flag == 1
	return nil
}

func (c *Coordinate) RealizeStage(s *engine.State, stage engine.Stage) error {
	if stage != engine.StageModel {
		return nil
	}
	flag, err := c.GetModelingOption(s, "locked")
	if err != nil {
		return err
	}
	return s.LockMobility(c.mobility, flag == 1)
}

// IsLocked reads the locked modeling option from s.
func (c *Coordinate) IsLocked(s *engine.State) (bool, error) {
	flag, err := c.GetModelingOption(s, "locked")
	return flag == 1, err
}

func (c *Coordinate) SetLocked(s *engine.State, locked bool) error {
	flag := 0
	if locked {
		flag = 1
	}
	return c.SetModelingOption(s, "locked", flag)
}
