package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/config"
	"github.com/san-kum/simtree/internal/elements"
	"github.com/san-kum/simtree/internal/logging"
)

func setup(t *testing.T, cfg *config.Config) *Experiment {
	t.Helper()
	exp := New(cfg, NewRegistry(), logging.Discard())
	if err := exp.Setup(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	return exp
}

func TestRegistryTypes(t *testing.T) {
	want := []string{"body", "coordinate_coupler", "ground", "group", "pid_controller", "pin_joint", "torsional_spring", "work_meter"}
	if diff := cmp.Diff(want, NewRegistry().Types()); diff != "" {
		t.Errorf("types mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildAppliesDefinition(t *testing.T) {
	c, err := NewRegistry().Build(config.ComponentDef{
		Type:       "pin_joint",
		Name:       "hinge",
		Properties: map[string]float64{"angle": 0.3, "damping": 0.1},
		Connectors: map[string]string{"parent_frame": "ground", "child_frame": "bob"},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	j, ok := c.(*elements.PinJoint)
	if !ok {
		t.Fatalf("expected *elements.PinJoint, got %T", c)
	}
	if j.Coordinate.DefaultValue != 0.3 {
		t.Errorf("expected angle 0.3, got %f", j.Coordinate.DefaultValue)
	}
	if j.Damping != 0.1 {
		t.Errorf("expected damping 0.1, got %f", j.Damping)
	}
	if got := j.ChildFrame().ConnecteeName(); got != "bob" {
		t.Errorf("expected child_frame bob, got %s", got)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		def  config.ComponentDef
	}{
		{"unknown type", config.ComponentDef{Type: "rope", Name: "r"}},
		{"properties on ground", config.ComponentDef{Type: "ground", Name: "g", Properties: map[string]float64{"mass": 1}}},
		{"unknown property", config.ComponentDef{Type: "body", Name: "b", Properties: map[string]float64{"radius": 1}}},
		{"unknown connector", config.ComponentDef{Type: "pin_joint", Name: "j", Connectors: map[string]string{"frame": "g"}}},
		{"unknown input", config.ComponentDef{Type: "work_meter", Name: "m", Inputs: map[string]string{"force": "x"}}},
		{"children on body", config.ComponentDef{Type: "body", Name: "b", Components: []config.ComponentDef{{Type: "ground", Name: "g"}}}},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Build(tt.def); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildModelNestedGroups(t *testing.T) {
	cfg := config.GetPreset("coupled", "weak")
	m, err := NewRegistry().BuildModel(cfg.Model)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := m.BuildSystem(); err != nil {
		t.Fatalf("build system failed: %v", err)
	}
	if n := component.Count[*elements.Body](m); n != 2 {
		t.Errorf("expected 2 bodies, got %d", n)
	}
	if n := component.Count[*elements.PinJoint](m); n != 2 {
		t.Errorf("expected 2 joints, got %d", n)
	}
}

func TestBuildModelGravity(t *testing.T) {
	cfg := config.DefaultConfig()
	g := 1.62
	cfg.Model.Gravity = &g
	m, err := NewRegistry().BuildModel(cfg.Model)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if m.Gravity != g {
		t.Errorf("expected gravity %f, got %f", g, m.Gravity)
	}
}

func TestRunDefault(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Duration = 1.0
	exp := setup(t, cfg)

	result, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.States) != 101 {
		t.Errorf("expected 101 states, got %d", len(result.States))
	}
	if exp.Recorder() != nil {
		t.Error("expected no recorder without record paths")
	}
	if drift := result.Metrics["energy_drift"]; drift > 1e-6 {
		t.Errorf("expected energy drift below 1e-6, got %e", drift)
	}
	if _, ok := result.Metrics["energy"]; !ok {
		t.Error("expected energy metric")
	}
	if s := result.Metrics["stability"]; s != 1 {
		t.Errorf("expected stability 1, got %f", s)
	}
}

func TestRunIsRepeatable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Duration = 0.5
	exp := setup(t, cfg)

	first, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if diff := cmp.Diff(first.Final(), second.Final()); diff != "" {
		t.Errorf("final states differ (-first +second):\n%s", diff)
	}
}

func TestRunCoupledRecordsOutputs(t *testing.T) {
	cfg := config.GetPreset("coupled", "weak")
	cfg.Duration = 2.0
	exp := setup(t, cfg)

	result, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	rec := exp.Recorder()
	if len(rec.Rows) != len(result.Times) {
		t.Fatalf("expected %d rows, got %d", len(result.Times), len(rec.Rows))
	}
	right, err := rec.Column("right/right_hinge/right_hinge_angle/value")
	if err != nil {
		t.Fatalf("column failed: %v", err)
	}
	if right[0] != 0 {
		t.Errorf("expected right arm to start at rest, got %f", right[0])
	}
	if math.Abs(right[len(right)-1]) < 1e-4 {
		t.Error("expected coupler to move the right arm")
	}

	run, err := exp.Archive(result)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if len(run.StateNames) != 4 || len(run.Outputs) != 2 {
		t.Errorf("expected 4 states and 2 outputs, got %v and %v", run.StateNames, run.Outputs)
	}
	if len(run.OutputRows) != len(result.Times) {
		t.Errorf("expected %d output rows, got %d", len(result.Times), len(run.OutputRows))
	}
}

func TestRunAdaptivePreset(t *testing.T) {
	cfg := config.GetPreset("pendulum", "damped")
	cfg.Duration = 2.0
	exp := setup(t, cfg)

	result, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if last := result.Times[len(result.Times)-1]; math.Abs(last-2.0) > 1e-6 {
		t.Errorf("expected final time 2.0, got %f", last)
	}
}

func TestRunControlledPreset(t *testing.T) {
	exp := setup(t, config.GetPreset("controlled", "pid"))

	if _, err := exp.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	angle, err := exp.Recorder().Column("hinge/hinge_angle/value")
	if err != nil {
		t.Fatalf("column failed: %v", err)
	}
	if final := angle[len(angle)-1]; math.Abs(final-1.0) > 0.05 {
		t.Errorf("expected controller to settle near 1.0, got %f", final)
	}
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"unknown integrator", func(c *config.Config) { c.Integrator = "leapfrog" }},
		{"unknown record path", func(c *config.Config) { c.Record = []string{"bob/velocity"} }},
		{"missing connectee", func(c *config.Config) { c.Model.Components = c.Model.Components[1:] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)
			exp := New(cfg, NewRegistry(), logging.Discard())
			if err := exp.Setup(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMissingConnecteeIsNotFound(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Components = cfg.Model.Components[1:]
	err := New(cfg, NewRegistry(), logging.Discard()).Setup()
	if !errors.Is(err, component.ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestRunBeforeSetup(t *testing.T) {
	exp := New(config.DefaultConfig(), NewRegistry(), nil)
	if _, err := exp.Run(context.Background()); err == nil {
		t.Error("expected error before setup")
	}
}

func TestRunEnsemble(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Duration = 0.5
	exp := setup(t, cfg)

	results, err := exp.RunEnsemble(context.Background(), 4, 0.05)
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	x0 := exp.Initial()
	for i, r := range results {
		if len(r.States) != 51 {
			t.Errorf("run %d: expected 51 states, got %d", i, len(r.States))
		}
		for j := range x0 {
			if d := math.Abs(r.States[0][j] - x0[j]); d > 0.05 {
				t.Errorf("run %d: perturbation %f exceeds spread", i, d)
			}
		}
	}
}
