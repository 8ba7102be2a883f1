// Package sim drives a dynamo.System forward in time with an integrator.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/simtree/internal/dynamo"
)

type Simulator struct {
	sys        dynamo.System
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	log        *slog.Logger
}

func New(sys dynamo.System, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		sys:        sys,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		log:        slog.Default(),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric) { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) SetLogger(l *slog.Logger) { s.log = l }

// Run integrates from x0 at t=0 until cfg.Duration. Metrics see the state
// before every step; observers see every recorded state, the initial one
// included. On failure the partial result is returned with the error.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := dynamo.CheckDim(s.sys, x0); err != nil {
		return nil, err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &dynamo.Result{
		States:  make([]dynamo.State, 0, steps+1),
		Times:   make([]float64, 0, steps+1),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	if err := s.record(result, x, t); err != nil {
		return result, &dynamo.SimulationError{Step: 0, Time: t, State: x, Wrapped: err}
	}

	initialEnergy := s.computeEnergy(x, t)
	s.log.Debug("run started", "dim", len(x), "dt", cfg.Dt, "duration", cfg.Duration, "adaptive", cfg.Adaptive)

	for i := 0; s.more(i, steps, t, cfg); i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		for _, m := range s.metrics {
			m.Observe(x, t)
		}

		var newX dynamo.State
		var stepErr error
		h := dt

		if cfg.Adaptive {
			newX, h, dt, stepErr = s.adaptiveStep(x, t, math.Min(dt, cfg.Duration-t), cfg)
		} else {
			newX, stepErr = s.integrator.Step(s.sys, x, t, dt)
		}

		if stepErr != nil {
			return result, &dynamo.SimulationError{Step: i, Time: t, State: x, Wrapped: stepErr}
		}

		if cfg.ValidateState && !newX.IsValid() {
			return result, &dynamo.SimulationError{Step: i, Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
		}

		x = newX
		t += h
		result.StepsTaken++

		if err := s.record(result, x, t); err != nil {
			return result, &dynamo.SimulationError{Step: i, Time: t, State: x, Wrapped: err}
		}
	}

	finalEnergy := s.computeEnergy(x, t)
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.log.Debug("run finished", "steps", result.StepsTaken, "t", t, "energy_drift", result.EnergyDrift)
	return result, nil
}

func (s *Simulator) more(i, steps int, t float64, cfg dynamo.Config) bool {
	if cfg.Adaptive {
		return cfg.Duration-t > math.Max(cfg.MinDt, 1e-12)
	}
	return i < steps
}

func (s *Simulator) record(result *dynamo.Result, x dynamo.State, t float64) error {
	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)
	for _, obs := range s.observers {
		if err := obs.OnStep(x, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) validateConfig(cfg dynamo.Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive for adaptive stepping", dynamo.ErrInvalidConfig)
	}
	return nil
}

func (s *Simulator) computeEnergy(x dynamo.State, t float64) float64 {
	ec, ok := s.sys.(dynamo.Hamiltonian)
	if !ok {
		return 0
	}
	e, err := ec.Energy(x, t)
	if err != nil {
		s.log.Warn("energy unavailable", "t", t, "err", err)
		return 0
	}
	return e
}

// adaptiveStep returns the accepted state, the step actually taken and the
// proposed next step size. Integrators without an error estimate fall back
// to step doubling.
func (s *Simulator) adaptiveStep(x dynamo.State, t, dt float64, cfg dynamo.Config) (dynamo.State, float64, float64, error) {
	if dt < cfg.MinDt {
		return nil, 0, 0, fmt.Errorf("%w: %g", dynamo.ErrStepTooSmall, dt)
	}

	if adaptive, ok := s.integrator.(dynamo.AdaptiveIntegrator); ok {
		newX, taken, next, err := adaptive.StepAdaptive(s.sys, x, t, dt, cfg.Tolerance)
		if err != nil {
			return nil, 0, 0, err
		}
		return newX, taken, s.clampDt(next, cfg), nil
	}

	x1, err := s.integrator.Step(s.sys, x, t, dt)
	if err != nil {
		return nil, 0, 0, err
	}
	xHalf, err := s.integrator.Step(s.sys, x, t, dt/2)
	if err != nil {
		return nil, 0, 0, err
	}
	x2, err := s.integrator.Step(s.sys, xHalf, t+dt/2, dt/2)
	if err != nil {
		return nil, 0, 0, err
	}

	stepErr := x1.Sub(x2).Norm()

	if stepErr > cfg.Tolerance && dt/2 >= cfg.MinDt {
		return s.adaptiveStep(x, t, dt/2, cfg)
	}

	next := dt
	if stepErr < cfg.Tolerance/10 && dt < cfg.MaxDt {
		next = math.Min(dt*2, cfg.MaxDt)
	}

	return x2, dt, next, nil
}

func (s *Simulator) clampDt(dt float64, cfg dynamo.Config) float64 {
	if cfg.MaxDt > 0 {
		dt = math.Min(dt, cfg.MaxDt)
	}
	return math.Max(dt, cfg.MinDt)
}

// RunWithCallback steps with a fixed dt until the callback returns false or
// the duration elapses. No result is retained.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 dynamo.State, cfg dynamo.Config, callback func(dynamo.State, float64) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}
	if err := dynamo.CheckDim(s.sys, x0); err != nil {
		return err
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	for step := 0; t < cfg.Duration; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !callback(x, t) {
			return nil
		}

		newX, err := s.integrator.Step(s.sys, x, t, dt)
		if err != nil {
			return &dynamo.SimulationError{Step: step, Time: t, State: x, Wrapped: err}
		}
		x = newX
		t += dt

		if cfg.ValidateState && !x.IsValid() {
			return &dynamo.SimulationError{Step: step, Time: t, State: x, Wrapped: dynamo.ErrInvalidState}
		}
	}

	return nil
}
