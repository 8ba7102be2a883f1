package automation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/simtree/internal/config"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/storage"
)

const scenarioYAML = `
name: swing
description: small then large pendulum
steps:
  - name: small
    preset: pendulum/small
    duration: 0.5
    save: true
  - preset: pendulum/large
    duration: 0.5
    dt: 0.005
    set:
      hinge.damping: 0.2
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "swing" || len(sc.Steps) != 2 {
		t.Fatalf("expected swing with 2 steps, got %s with %d", sc.Name, len(sc.Steps))
	}
	if sc.Steps[1].Set["hinge.damping"] != 0.2 {
		t.Errorf("expected damping override, got %v", sc.Steps[1].Set)
	}
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no steps", "name: empty\n"},
		{"no source", "steps:\n  - duration: 1\n"},
		{"both sources", "steps:\n  - preset: pendulum/small\n    config: model.yaml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.data))
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("expected invalid definition, got %v", err)
			}
		})
	}
}

func TestLoadScenarioResolvesConfigPaths(t *testing.T) {
	dir := t.TempDir()
	if err := config.Save(filepath.Join(dir, "model.yaml"), config.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte("steps:\n  - config: model.yaml\n    duration: 0.2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := sc.Steps[0].Resolve()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cfg.Duration != 0.2 {
		t.Errorf("expected duration 0.2, got %f", cfg.Duration)
	}
}

func TestStepResolve(t *testing.T) {
	step := Step{Preset: "pendulum/small", Integrator: "euler", Dt: 0.002, Set: map[string]float64{"bob.mass": 3}}
	cfg, err := step.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Integrator != "euler" || cfg.Dt != 0.002 {
		t.Errorf("expected euler at 0.002, got %s at %f", cfg.Integrator, cfg.Dt)
	}
	bob, _ := cfg.Model.Find("bob")
	if bob.Properties["mass"] != 3 {
		t.Errorf("expected mass 3, got %f", bob.Properties["mass"])
	}

	if _, err := (Step{Preset: "pendulum"}).Resolve(); err == nil {
		t.Error("expected error for malformed preset")
	}
	if _, err := (Step{Preset: "pendulum/huge"}).Resolve(); err == nil {
		t.Error("expected error for unknown preset")
	}
	if _, err := (Step{Preset: "pendulum/small", Set: map[string]float64{"nobody.mass": 1}}).Resolve(); err == nil {
		t.Error("expected error for unknown component")
	}
}

func TestRunnerRun(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	r := &Runner{Store: st}

	outcomes, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Step != "small" || outcomes[1].Step != "step2" {
		t.Errorf("expected steps small and step2, got %s and %s", outcomes[0].Step, outcomes[1].Step)
	}
	if outcomes[0].RunID == "" || outcomes[1].RunID != "" {
		t.Errorf("expected only the first step saved, got %q and %q", outcomes[0].RunID, outcomes[1].RunID)
	}
	if len(outcomes[1].Result.States) != 101 {
		t.Errorf("expected 101 states at dt 0.005, got %d", len(outcomes[1].Result.States))
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 stored run, got %d", len(runs))
	}
}

func TestRunnerStopsOnFailure(t *testing.T) {
	sc := &Scenario{Name: "bad", Steps: []Step{
		{Preset: "pendulum/small", Duration: 0.1},
		{Preset: "pendulum/small", Integrator: "leapfrog"},
		{Preset: "pendulum/small", Duration: 0.1},
	}}
	outcomes, err := (&Runner{}).Run(context.Background(), sc)
	if err == nil {
		t.Fatal("expected error from unknown integrator")
	}
	if len(outcomes) != 1 {
		t.Errorf("expected 1 completed step, got %d", len(outcomes))
	}
}

func TestSummarize(t *testing.T) {
	results := []*dynamo.Result{
		{States: []dynamo.State{{0, 0}, {1, 2}}},
		{States: []dynamo.State{{0, 0}, {1.5, 2}}},
		{States: []dynamo.State{{0, 0}, {math.NaN(), 0}}},
		{States: []dynamo.State{{0, 0}, {1e7, 0}}},
		nil,
	}
	trials := Summarize(results, 0)
	if len(trials) != 5 {
		t.Fatalf("expected 5 trials, got %d", len(trials))
	}
	if math.Abs(trials[1].MaxAbsDiff-0.5) > 1e-12 {
		t.Errorf("expected diff 0.5, got %f", trials[1].MaxAbsDiff)
	}
	stable, unstable := Stats(trials)
	if stable != 2 || unstable != 3 {
		t.Errorf("expected 2 stable and 3 unstable, got %d and %d", stable, unstable)
	}
}
