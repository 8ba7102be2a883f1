package dynamo

// System is an ODE right-hand side. Derive may fail when the underlying
// model cannot be evaluated at x.
type System interface {
	Derive(x State, t float64) (State, error)
	StateDim() int
}

type Hamiltonian interface {
	Energy(x State, t float64) (float64, error)
}

type Integrator interface {
	Step(sys System, x State, t, dt float64) (State, error)
}

// AdaptiveIntegrator controls its own local error. StepAdaptive may shrink
// dt before accepting a step; it returns the new state, the dt it took and a
// proposed dt for the next step.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, x State, t, dt, tol float64) (State, float64, float64, error)
}

// Metric folds every observed step into one number.
type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, t float64) error
}

type Config struct {
	Dt            float64
	Duration      float64
	Seed          int64
	Tolerance     float64
	MaxDt         float64
	MinDt         float64
	Adaptive      bool
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		Tolerance:     1e-6,
		MaxDt:         0.1,
		MinDt:         1e-8,
		Adaptive:      false,
		ValidateState: true,
	}
}

type Result struct {
	States      []State
	Times       []float64
	Metrics     map[string]float64
	EnergyDrift float64
	StepsTaken  int
}

// Final returns the last recorded state, or nil for an empty result.
func (r *Result) Final() State {
	if len(r.States) == 0 {
		return nil
	}
	return r.States[len(r.States)-1]
}
