package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/simtree/internal/dynamo"
)

// pendulumEnergy is a unit pendulum with x = [theta, omega].
type pendulumEnergy struct{}

func (pendulumEnergy) Energy(x dynamo.State, t float64) (float64, error) {
	if len(x) < 2 {
		return 0, errors.New("short state")
	}
	return 0.5*x[1]*x[1] + 9.81*(1-math.Cos(x[0])), nil
}

func TestEnergyConservation(t *testing.T) {
	m := NewEnergy(pendulumEnergy{})

	theta := math.Pi / 4
	x := dynamo.State{theta, 0}

	m.Observe(x, 0)
	e1 := m.Value()

	m.Reset()
	m.Observe(x, 0)
	e2 := m.Value()

	expected := 9.81 * (1 - math.Cos(theta))
	if math.Abs(e1-expected) > 1e-6 {
		t.Errorf("expected energy %f, got %f", expected, e1)
	}
	if math.Abs(e2-expected) > 1e-6 {
		t.Errorf("expected energy %f after reset, got %f", expected, e2)
	}
}

func TestEnergySkipsFailedSamples(t *testing.T) {
	m := NewEnergy(pendulumEnergy{})
	m.Observe(dynamo.State{1}, 0)
	if m.Value() != 0 {
		t.Errorf("expected no samples, got %f", m.Value())
	}
	if m.Skipped() != 1 {
		t.Errorf("expected 1 skipped step, got %d", m.Skipped())
	}

	d := NewEnergyDrift(pendulumEnergy{})
	d.Observe(dynamo.State{1}, 0)
	d.Observe(dynamo.State{0, 2}, 0.1)
	d.Observe(dynamo.State{0, 1}, 0.2)
	if math.Abs(d.Value()-0.75) > 1e-12 {
		t.Errorf("expected reference taken from first readable step, got drift %f", d.Value())
	}
}

func TestEnergyDrift(t *testing.T) {
	m := NewEnergyDrift(pendulumEnergy{})
	m.Observe(dynamo.State{0, 2}, 0)
	m.Observe(dynamo.State{0, 1}, 0.1)
	m.Observe(dynamo.State{0, 2}, 0.2)

	if math.Abs(m.Value()-0.75) > 1e-12 {
		t.Errorf("expected drift 0.75, got %f", m.Value())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero drift after reset")
	}
}

func TestStability(t *testing.T) {
	s := NewStability(1)
	if !math.IsNaN(s.FirstViolation()) {
		t.Errorf("expected no violation yet, got %f", s.FirstViolation())
	}
	s.Observe(dynamo.State{0.5, -0.5}, 0)
	s.Observe(dynamo.State{0.5, -2}, 0.1)
	s.Observe(dynamo.State{math.NaN(), 0}, 0.2)
	s.Observe(dynamo.State{1, 0}, 0.3)
	if s.Value() != 0.5 {
		t.Errorf("expected 0.5, got %f", s.Value())
	}
	if s.FirstViolation() != 0.1 {
		t.Errorf("expected first violation at 0.1, got %f", s.FirstViolation())
	}
	s.Reset()
	if s.Value() != 1 {
		t.Errorf("expected 1 after reset, got %f", s.Value())
	}
}
