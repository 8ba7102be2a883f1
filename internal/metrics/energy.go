// Package metrics provides dynamo.Metric implementations observed once per
// simulation step.
package metrics

import (
	"math"

	"github.com/san-kum/simtree/internal/dynamo"
)

// energyProbe reads the system energy at each observed step and counts the
// steps where the system could not report one.
type energyProbe struct {
	sys     dynamo.Hamiltonian
	samples int
	skipped int
}

func (p *energyProbe) read(x dynamo.State, t float64) (float64, bool) {
	e, err := p.sys.Energy(x, t)
	if err != nil {
		p.skipped++
		return 0, false
	}
	p.samples++
	return e, true
}

// Skipped is the number of steps without an energy reading.
func (p *energyProbe) Skipped() int { return p.skipped }

func (p *energyProbe) reset() { p.samples, p.skipped = 0, 0 }

// Energy is the mean total energy over the observed steps.
type Energy struct {
	energyProbe
	sum float64
}

func NewEnergy(sys dynamo.Hamiltonian) *Energy {
	return &Energy{energyProbe: energyProbe{sys: sys}}
}

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(x dynamo.State, t float64) {
	if v, ok := e.read(x, t); ok {
		e.sum += v
	}
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.sum / float64(e.samples)
}

func (e *Energy) Reset() {
	e.reset()
	e.sum = 0
}

// EnergyDrift is the largest relative departure from the first energy
// reading. A zero reference energy yields zero drift.
type EnergyDrift struct {
	energyProbe
	reference float64
	worst     float64
}

func NewEnergyDrift(sys dynamo.Hamiltonian) *EnergyDrift {
	return &EnergyDrift{energyProbe: energyProbe{sys: sys}}
}

func (d *EnergyDrift) Name() string { return "energy_drift" }

func (d *EnergyDrift) Observe(x dynamo.State, t float64) {
	v, ok := d.read(x, t)
	if !ok {
		return
	}
	if d.samples == 1 {
		d.reference = v
	}
	if d.reference != 0 {
		d.worst = max(d.worst, math.Abs(v-d.reference)/math.Abs(d.reference))
	}
}

func (d *EnergyDrift) Value() float64 { return d.worst }

func (d *EnergyDrift) Reset() {
	d.reset()
	d.reference = 0
	d.worst = 0
}
