// Package dynamo provides the solver-facing primitives for integrating a
// component model.
//
// The package defines the flat vector types an external integrator works on:
//
//   - [State]: vector of state-variable values in model order
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [AdaptiveIntegrator]: integrator that also proposes the next step
//   - [Observer]: callback invoked on every accepted step
//
// # Example
//
//	integrand, _ := m.NewIntegrand(s)
//	runner := sim.New(integrand, integrators.NewRK4())
//	result, _ := runner.Run(ctx, x0, dynamo.DefaultConfig())
//
// # Thread Safety
//
// A System usually borrows one engine state and is NOT safe for concurrent
// use. Parallel runs each get their own System; see sim.Ensemble.
package dynamo
