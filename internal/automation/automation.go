// Package automation runs scripted sequences of experiments described in
// YAML and summarizes batches of runs.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/simtree/internal/config"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/experiment"
	"github.com/san-kum/simtree/internal/metrics"
	"github.com/san-kum/simtree/internal/storage"
)

// Scenario is a named sequence of runs executed in order.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step selects a model by preset ("model/name") or config file and applies
// overrides on top. Set keys use the "<component path>.<property>" form.
type Step struct {
	Name       string             `yaml:"name"`
	Preset     string             `yaml:"preset,omitempty"`
	Config     string             `yaml:"config,omitempty"`
	Integrator string             `yaml:"integrator,omitempty"`
	Dt         float64            `yaml:"dt,omitempty"`
	Duration   float64            `yaml:"duration,omitempty"`
	Set        map[string]float64 `yaml:"set,omitempty"`
	Save       bool               `yaml:"save,omitempty"`
}

// Outcome is what one step produced. RunID is empty unless the step was
// saved.
type Outcome struct {
	Step   string
	Result *dynamo.Result
	RunID  string
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	// config files are relative to the scenario file
	dir := filepath.Dir(path)
	for i := range sc.Steps {
		if c := sc.Steps[i].Config; c != "" && !filepath.IsAbs(c) {
			sc.Steps[i].Config = filepath.Join(dir, c)
		}
	}
	return sc, nil
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no steps", config.ErrInvalid, sc.Name)
	}
	for i, step := range sc.Steps {
		if (step.Preset == "") == (step.Config == "") {
			return nil, fmt.Errorf("%w: step %d needs exactly one of preset or config", config.ErrInvalid, i+1)
		}
	}
	return &sc, nil
}

// Resolve builds the validated configuration for a step.
func (s Step) Resolve() (*config.Config, error) {
	var cfg *config.Config
	if s.Config != "" {
		c, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		model, name, ok := strings.Cut(s.Preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be model/name, got %q", s.Preset)
		}
		if cfg = config.GetPreset(model, name); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", s.Preset)
		}
	}
	if s.Integrator != "" {
		cfg.Integrator = s.Integrator
	}
	if s.Dt > 0 {
		cfg.Dt = s.Dt
	}
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	for key, v := range s.Set {
		if err := cfg.SetProperty(key, v); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// Runner executes scenarios. Store may be nil, in which case no step is
// saved.
type Runner struct {
	Registry *experiment.Registry
	Store    *storage.Store
	Log      *slog.Logger
}

func (r *Runner) Run(ctx context.Context, sc *Scenario) ([]Outcome, error) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	reg := r.Registry
	if reg == nil {
		reg = experiment.NewRegistry()
	}

	outcomes := make([]Outcome, 0, len(sc.Steps))
	for i, step := range sc.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		log.Info("scenario step", "scenario", sc.Name, "step", name, "index", i+1, "of", len(sc.Steps))

		cfg, err := step.Resolve()
		if err != nil {
			return outcomes, fmt.Errorf("step %s: %w", name, err)
		}
		exp := experiment.New(cfg, reg, log)
		if err := exp.Setup(); err != nil {
			return outcomes, fmt.Errorf("step %s setup: %w", name, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return outcomes, fmt.Errorf("step %s run: %w", name, err)
		}

		out := Outcome{Step: name, Result: result}
		if step.Save && r.Store != nil {
			run, err := exp.Archive(result)
			if err != nil {
				return outcomes, err
			}
			if out.RunID, err = r.Store.Save(run); err != nil {
				return outcomes, fmt.Errorf("step %s save: %w", name, err)
			}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// Trial summarizes one member of a batch of runs.
type Trial struct {
	ID         int
	Initial    dynamo.State
	Final      dynamo.State
	Stable     bool
	MaxAbsDiff float64
}

const DefaultBound = metrics.DefaultThreshold

// Summarize marks each run stable when every recorded state stays finite and
// within bound. MaxAbsDiff is the largest component-wise distance between
// the run's final state and the first run's.
func Summarize(results []*dynamo.Result, bound float64) []Trial {
	if bound <= 0 {
		bound = DefaultBound
	}
	trials := make([]Trial, len(results))
	var ref dynamo.State
	for i, res := range results {
		tr := Trial{ID: i, Stable: true}
		if res == nil || len(res.States) == 0 {
			tr.Stable = false
			trials[i] = tr
			continue
		}
		tr.Initial = res.States[0]
		tr.Final = res.Final()
		for _, x := range res.States {
			if !x.IsValid() || x.Norm() > bound {
				tr.Stable = false
				break
			}
		}
		if ref == nil {
			ref = tr.Final
		}
		if len(ref) == len(tr.Final) {
			for j := range ref {
				tr.MaxAbsDiff = max(tr.MaxAbsDiff, math.Abs(tr.Final[j]-ref[j]))
			}
		}
		trials[i] = tr
	}
	return trials
}

func Stats(trials []Trial) (stable, unstable int) {
	for _, tr := range trials {
		if tr.Stable {
			stable++
		} else {
			unstable++
		}
	}
	return
}
