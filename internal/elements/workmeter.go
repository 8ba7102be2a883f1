package elements

import (
	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/engine"
)

// WorkMeter integrates the power it reads from its input into the "work"
// state variable.
type WorkMeter struct {
	component.Base
	InitialWork float64

	power *component.Input[float64]
}

func NewWorkMeter(name, power string) *WorkMeter {
	w := &WorkMeter{}
	w.Init(w, name)
	w.power = component.ConstructInput[float64](w, "power", engine.StageDynamics)
	w.power.SetConnecteeName(power)
	component.ConstructOutputForStateVariable(w, "work")
	return w
}

func (w *WorkMeter) PowerInput() *component.Input[float64] { return w.power }

func (w *WorkMeter) ExtendAddToSystem(*engine.System) error {
	return w.AddStateVariable("work", engine.StageDynamics, false)
}

func (w *WorkMeter) ExtendInitStateFromProperties(s *engine.State) error {
	return w.SetStateVariableValue(s, "work", w.InitialWork)
}

func (w *WorkMeter) ExtendSetPropertiesFromState(s *engine.State) error {
	v, err := w.GetStateVariableValue(s, "work")
	if err != nil {
		return err
	}
	w.InitialWork = v
	return nil
}

func (w *WorkMeter) ComputeStateVariableDerivatives(s *engine.State) error {
	p, err := w.power.Value(s)
	if err != nil {
		return err
	}
	return w.SetStateVariableDerivativeValue(s, "work", p)
}

func (w *WorkMeter) Work(s *engine.State) (float64, error) {
	return w.GetStateVariableValue(s, "work")
}

func (w *WorkMeter) Params() map[string]float64 {
	return map[string]float64{"initial_work": w.InitialWork}
}

func (w *WorkMeter) SetParam(name string, value float64) error {
	if name != "initial_work" {
		return unknownParam(w, name)
	}
	w.InitialWork = value
	return nil
}
