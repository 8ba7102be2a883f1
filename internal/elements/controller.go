package elements

import (
	"fmt"
	"math"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/engine"
)

// PIDController drives a coordinate toward Target. The error integral is a
// continuous state variable, so it is advanced by the integrator together
// with the mechanical state. The derivative term acts on the measured speed
// rather than the error, which avoids a kick when Target changes.
type PIDController struct {
	component.Base
	Kp, Ki, Kd float64
	Target     float64
	// MaxTorque clamps the output when positive.
	MaxTorque float64

	coordinate *component.Connector[*Coordinate]
}

func NewPIDController(name, coordinate string, kp, ki, kd, target float64) *PIDController {
	p := &PIDController{Kp: kp, Ki: ki, Kd: kd, Target: target}
	p.Init(p, name)
	p.coordinate = component.ConstructConnector[*Coordinate](p, "coordinate")
	p.coordinate.SetConnecteeName(coordinate)
	component.ConstructOutput(p, "torque", engine.StageVelocity, p.Torque)
	component.ConstructOutput(p, "error", engine.StageModel, p.Error)
	component.ConstructOutputForStateVariable(p, "integral_error")
	return p
}

func (p *PIDController) ExtendFinalizeFromProperties() error {
	for name, g := range map[string]float64{"kp": p.Kp, "ki": p.Ki, "kd": p.Kd} {
		if g < 0 || math.IsNaN(g) {
			return fmt.Errorf("%w: %s must be non-negative, got %g", component.ErrConfiguration, name, g)
		}
	}
	return nil
}

func (p *PIDController) ExtendAddToSystem(*engine.System) error {
	return p.AddStateVariable("integral_error", engine.StageVelocity, false)
}

func (p *PIDController) ExtendInitStateFromProperties(s *engine.State) error {
	return p.SetStateVariableValue(s, "integral_error", 0)
}

func (p *PIDController) Error(s *engine.State) (float64, error) {
	c, err := p.coordinate.Connectee()
	if err != nil {
		return 0, err
	}
	q, err := c.Value(s)
	if err != nil {
		return 0, err
	}
	return p.Target - q, nil
}

func (p *PIDController) Torque(s *engine.State) (float64, error) {
	e, err := p.Error(s)
	if err != nil {
		return 0, err
	}
	z, err := p.GetStateVariableValue(s, "integral_error")
	if err != nil {
		return 0, err
	}
	c, _ := p.coordinate.Connectee()
	u, err := c.Speed(s)
	if err != nil {
		return 0, err
	}
	tau := p.Kp*e + p.Ki*z - p.Kd*u
	if p.MaxTorque > 0 {
		tau = max(-p.MaxTorque, min(p.MaxTorque, tau))
	}
	return tau, nil
}

func (p *PIDController) RealizeStage(s *engine.State, stage engine.Stage) error {
	if stage != engine.StageDynamics {
		return nil
	}
	tau, err := p.Torque(s)
	if err != nil {
		return err
	}
	c, _ := p.coordinate.Connectee()
	return s.ApplyMobilityForce(c.Mobility(), tau)
}

func (p *PIDController) ComputeStateVariableDerivatives(s *engine.State) error {
	e, err := p.Error(s)
	if err != nil {
		return err
	}
	return p.SetStateVariableDerivativeValue(s, "integral_error", e)
}

func (p *PIDController) Params() map[string]float64 {
	return map[string]float64{
		"kp":         p.Kp,
		"ki":         p.Ki,
		"kd":         p.Kd,
		"target":     p.Target,
		"max_torque": p.MaxTorque,
	}
}

func (p *PIDController) SetParam(name string, value float64) error {
	switch name {
	case "kp":
		p.Kp = value
	case "ki":
		p.Ki = value
	case "kd":
		p.Kd = value
	case "target":
		p.Target = value
	case "max_torque":
		p.MaxTorque = value
	default:
		return unknownParam(p, name)
	}
	return nil
}
