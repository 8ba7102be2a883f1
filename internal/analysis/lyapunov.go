package analysis

import (
	"errors"
	"math"

	"github.com/san-kum/simtree/internal/dynamo"
)

// LyapunovExponent estimates the largest Lyapunov exponent by following x0
// and a copy perturbed along its first component. The separation is measured
// and renormalized back to perturbation after every step.
func LyapunovExponent(
	sys dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	perturbation float64,
) (float64, error) {
	if len(x0) == 0 {
		return 0, ErrTooShort
	}
	xp := x0.Clone()
	xp[0] += perturbation
	return separationRate(sys, integ, x0, xp, dt, duration, perturbation)
}

// LyapunovSpectrum perturbs each component of x0 in turn.
func LyapunovSpectrum(
	sys dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	perturbation float64,
) ([]float64, error) {
	spectrum := make([]float64, len(x0))
	for i := range x0 {
		xp := x0.Clone()
		xp[i] += perturbation
		l, err := separationRate(sys, integ, x0, xp, dt, duration, perturbation)
		if err != nil {
			return nil, err
		}
		spectrum[i] = l
	}
	return spectrum, nil
}

func separationRate(
	sys dynamo.System,
	integ dynamo.Integrator,
	x0, x0p dynamo.State,
	dt, duration, d0 float64,
) (float64, error) {
	if dt <= 0 || d0 <= 0 {
		return 0, errors.New("lyapunov: dt and perturbation must be positive")
	}
	if err := dynamo.CheckDim(sys, x0); err != nil {
		return 0, err
	}
	x, xp := x0.Clone(), x0p.Clone()
	t := 0.0

	sumLog := 0.0
	count := 0

	for t < duration {
		nx, err := integ.Step(sys, x, t, dt)
		if err != nil {
			return 0, &dynamo.SimulationError{Step: count, Time: t, State: x, Wrapped: err}
		}
		nxp, err := integ.Step(sys, xp, t, dt)
		if err != nil {
			return 0, &dynamo.SimulationError{Step: count, Time: t, State: xp, Wrapped: err}
		}
		x, xp = nx, nxp
		t += dt

		sep := xp.Sub(x).Norm()
		if sep == 0 {
			continue
		}
		sumLog += math.Log(sep / d0)
		count++

		scale := d0 / sep
		for i := range xp {
			xp[i] = x[i] + (xp[i]-x[i])*scale
		}
	}

	if count == 0 {
		return 0, nil
	}
	return sumLog / (float64(count) * dt), nil
}
