package integrators

import (
	"fmt"

	"github.com/san-kum/simtree/internal/dynamo"
)

// tableau is an explicit Runge-Kutta scheme in Butcher form. a is strictly
// lower triangular; row i holds the weights of stages 0..i-1.
type tableau struct {
	name string
	c    []float64
	a    [][]float64
	b    []float64
	// e holds b minus the embedded weights. Empty when the scheme has no
	// error estimate.
	e []float64
}

func (tab *tableau) stages() int { return len(tab.c) }

// explicitRK evaluates one tableau. It keeps its stage derivatives between
// steps, so an instance serves a single run at a time.
type explicitRK struct {
	tab *tableau
	k   []dynamo.State
	tmp dynamo.State
}

func newExplicitRK(tab *tableau) explicitRK {
	return explicitRK{tab: tab, k: make([]dynamo.State, tab.stages())}
}

func (r *explicitRK) resize(n int) {
	if len(r.tmp) == n {
		return
	}
	r.tmp = make(dynamo.State, n)
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
}

// advance runs every stage and returns x + dt * sum(b_i k_i). The stage
// derivatives stay in r.k for the error estimate.
func (r *explicitRK) advance(sys dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	r.resize(len(x))
	for i, row := range r.tab.a {
		combine(r.tmp, x, dt, row, r.k)
		dx, err := sys.Derive(r.tmp, t+r.tab.c[i]*dt)
		if err != nil {
			return nil, fmt.Errorf("%s stage %d: %w", r.tab.name, i+1, err)
		}
		copy(r.k[i], dx)
	}
	out := make(dynamo.State, len(x))
	combine(out, x, dt, r.tab.b, r.k)
	return out, nil
}

// combine writes x + dt * sum(w_j k_j) into dst.
func combine(dst, x dynamo.State, dt float64, w []float64, k []dynamo.State) {
	copy(dst, x)
	for j, wj := range w {
		if wj == 0 {
			continue
		}
		for i := range dst {
			dst[i] += dt * wj * k[j][i]
		}
	}
}

var eulerTableau = &tableau{
	name: "euler",
	c:    []float64{0},
	a:    [][]float64{{}},
	b:    []float64{1},
}

var rk4Tableau = &tableau{
	name: "rk4",
	c:    []float64{0, 0.5, 0.5, 1},
	a: [][]float64{
		{},
		{0.5},
		{0, 0.5},
		{0, 0, 1},
	},
	b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
}

// Dormand-Prince 5(4). The last stage is evaluated at the fifth-order
// solution, so its row equals b.
var dopriTableau = &tableau{
	name: "rk45",
	c:    []float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1},
	a: [][]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	},
	b: []float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0},
	e: []float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	},
}
