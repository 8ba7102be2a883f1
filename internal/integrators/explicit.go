package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/simtree/internal/dynamo"
)

// Euler is the forward Euler method. It is first order and mostly useful as
// a reference.
type Euler struct{ explicitRK }

func NewEuler() *Euler { return &Euler{newExplicitRK(eulerTableau)} }

func (e *Euler) Step(sys dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	return e.advance(sys, x, t, dt)
}

// RK4 is the classical fourth-order Runge-Kutta method.
type RK4 struct{ explicitRK }

func NewRK4() *RK4 { return &RK4{newExplicitRK(rk4Tableau)} }

func (r *RK4) Step(sys dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	return r.advance(sys, x, t, dt)
}

// RK45 is the Dormand-Prince pair. StepAdaptive retries a step with a
// smaller dt until the local error estimate is within tolerance.
type RK45 struct {
	explicitRK
	safety     float64
	minScale   float64
	maxScale   float64
	maxRejects int
}

func NewRK45() *RK45 {
	return &RK45{
		explicitRK: newExplicitRK(dopriTableau),
		safety:     0.9,
		minScale:   0.2,
		maxScale:   10.0,
		maxRejects: 12,
	}
}

// Step takes the fifth-order solution with the given dt and no error control.
func (r *RK45) Step(sys dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	return r.advance(sys, x, t, dt)
}

// StepAdaptive returns the accepted state, the step size actually taken and
// a proposal for the next one.
func (r *RK45) StepAdaptive(sys dynamo.System, x dynamo.State, t, dt, tol float64) (dynamo.State, float64, float64, error) {
	for rejects := 0; ; rejects++ {
		xNew, err := r.advance(sys, x, t, dt)
		if err != nil {
			return nil, 0, 0, err
		}
		ratio := r.errorNorm(x, dt) / tol
		if ratio <= 1 {
			return xNew, dt, dt * r.grow(ratio), nil
		}
		if rejects == r.maxRejects {
			return nil, 0, 0, fmt.Errorf("%w: error %.3g times tolerance after %d rejections (dt=%g)",
				dynamo.ErrStepTooSmall, ratio, rejects, dt)
		}
		dt *= max(r.minScale, r.safety*math.Pow(ratio, -0.25))
	}
}

// errorNorm is the largest component of the embedded error estimate, each
// relative to the size of the state and of the first increment.
func (r *RK45) errorNorm(x dynamo.State, dt float64) float64 {
	worst := 0.0
	for i := range x {
		est := 0.0
		for j, ej := range r.tab.e {
			est += ej * r.k[j][i]
		}
		scale := math.Abs(x[i]) + math.Abs(dt*r.k[0][i]) + 1e-10
		worst = max(worst, math.Abs(dt*est)/scale)
	}
	return worst
}

func (r *RK45) grow(ratio float64) float64 {
	if ratio == 0 {
		return r.maxScale
	}
	return min(r.maxScale, r.safety*math.Pow(ratio, -0.2))
}
