// Package experiment turns a configuration into a built model and runs it.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/san-kum/simtree/internal/config"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/engine"
	"github.com/san-kum/simtree/internal/integrators"
	"github.com/san-kum/simtree/internal/metrics"
	"github.com/san-kum/simtree/internal/model"
	"github.com/san-kum/simtree/internal/sim"
	"github.com/san-kum/simtree/internal/storage"
)

type Experiment struct {
	cfg        *config.Config
	reg        *Registry
	log        *slog.Logger
	randSource *rand.Rand

	model     *model.Model
	state     *engine.State
	integrand *model.Integrand
	x0        dynamo.State
	recorder  *model.OutputRecorder
	simulator *sim.Simulator
}

func New(cfg *config.Config, reg *Registry, log *slog.Logger) *Experiment {
	if log == nil {
		log = slog.Default()
	}
	return &Experiment{
		cfg:        cfg,
		reg:        reg,
		log:        log,
		randSource: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Setup builds the model, initializes its state and wires the simulator,
// metrics and output recorder.
func (e *Experiment) Setup() error {
	m, err := e.reg.BuildModel(e.cfg.Model)
	if err != nil {
		return err
	}
	m.Log = e.log
	s, err := m.InitSystem()
	if err != nil {
		return err
	}
	in, err := m.NewIntegrand(s)
	if err != nil {
		return err
	}
	x0, err := in.Initial()
	if err != nil {
		return err
	}
	integ, err := integrators.New(e.cfg.Integrator)
	if err != nil {
		return err
	}

	e.model, e.state, e.integrand, e.x0 = m, s, in, x0
	e.simulator = sim.New(in, integ)
	e.simulator.SetLogger(e.log)
	e.simulator.AddMetric(metrics.NewEnergy(in.Clone()))
	e.simulator.AddMetric(metrics.NewEnergyDrift(in.Clone()))
	e.simulator.AddMetric(metrics.NewStability(metrics.DefaultThreshold))

	e.recorder = nil
	if len(e.cfg.Record) > 0 {
		rec, err := model.NewOutputRecorder(m, s.Clone(), e.cfg.Record...)
		if err != nil {
			return err
		}
		e.recorder = rec
		e.simulator.AddObserver(rec)
	}
	return nil
}

func (e *Experiment) simConfig() dynamo.Config {
	cfg := dynamo.DefaultConfig()
	cfg.Dt = e.cfg.Dt
	cfg.Duration = e.cfg.Duration
	cfg.Seed = e.cfg.Seed
	cfg.Adaptive = e.cfg.Adaptive
	if e.cfg.Tolerance > 0 {
		cfg.Tolerance = e.cfg.Tolerance
	}
	return cfg
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	if e.recorder != nil {
		e.recorder.Reset()
	}
	return e.simulator.Run(ctx, e.x0, e.simConfig())
}

// RunEnsemble integrates runs copies of the model concurrently, each starting
// from the initial state with every component perturbed uniformly within
// +/- spread.
func (e *Experiment) RunEnsemble(ctx context.Context, runs int, spread float64) ([]*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	ens := sim.NewEnsemble(0)
	for i := 0; i < runs; i++ {
		integ, err := integrators.New(e.cfg.Integrator)
		if err != nil {
			return nil, err
		}
		start := e.x0.Clone()
		for j := range start {
			start[j] += spread * (2*e.randSource.Float64() - 1)
		}
		in := e.integrand.Clone()
		ens.Add(sim.Member{
			System:     in,
			Integrator: integ,
			X0:         start,
			Metrics:    []dynamo.Metric{metrics.NewEnergyDrift(in.Clone())},
		})
	}
	e.log.Info("ensemble started", "runs", runs, "spread", spread)
	return ens.Run(ctx, e.simConfig())
}

// Archive packages a finished run, including any recorded outputs, for the
// run store.
func (e *Experiment) Archive(result *dynamo.Result) (storage.Run, error) {
	if e.model == nil {
		return storage.Run{}, fmt.Errorf("experiment not setup")
	}
	names, err := e.model.StateVariableNames()
	if err != nil {
		return storage.Run{}, err
	}
	run := storage.Run{
		Model:      e.cfg.Model.Name,
		Integrator: e.cfg.Integrator,
		Dt:         e.cfg.Dt,
		Duration:   e.cfg.Duration,
		Seed:       e.cfg.Seed,
		Adaptive:   e.cfg.Adaptive,
		StateNames: names,
		Result:     result,
	}
	if e.recorder != nil {
		run.Outputs = e.recorder.Names()
		run.OutputTimes = e.recorder.Times
		run.OutputRows = e.recorder.Rows
	}
	return run, nil
}

func (e *Experiment) Model() *model.Model { return e.model }
func (e *Experiment) State() *engine.State { return e.state }
func (e *Experiment) Integrand() *model.Integrand { return e.integrand }
func (e *Experiment) Initial() dynamo.State { return e.x0.Clone() }
func (e *Experiment) Recorder() *model.OutputRecorder { return e.recorder }
func (e *Experiment) GetSimulator() *sim.Simulator { return e.simulator }
func (e *Experiment) Config() *config.Config { return e.cfg }
