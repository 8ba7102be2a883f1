// Package model provides the root node of a component tree and the API an
// integrator uses to drive it: building the system, moving between the flat
// state-variable vector and an engine state, and computing derivatives.
package model

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/elements"
	"github.com/san-kum/simtree/internal/engine"
)

// Model is the root of a component tree. Its members become its children
// when properties are finalized.
type Model struct {
	component.Base
	Gravity float64
	Members []component.Component
	Log     *slog.Logger

	sys *engine.System
}

func New(name string) *Model {
	m := &Model{Gravity: elements.StandardGravity}
	m.Init(m, name)
	return m
}

func (m *Model) Add(members ...component.Component) {
	m.Members = append(m.Members, members...)
}

func (m *Model) GravityAcceleration() float64 { return m.Gravity }

func (m *Model) logger() *slog.Logger {
	if m.Log == nil {
		return slog.Default()
	}
	return m.Log
}

func (m *Model) ExtendFinalizeFromProperties() error {
	if m.Gravity < 0 {
		return fmt.Errorf("%w: gravity must be non-negative, got %g", component.ErrConfiguration, m.Gravity)
	}
	for _, c := range m.Members {
		if err := m.AddComponent(c); err != nil {
			return err
		}
	}
	return nil
}

// BuildSystem finalizes, connects and adds the whole tree to a fresh engine
// system. It may be called again after properties change.
func (m *Model) BuildSystem() error {
	log := m.logger()
	m.sys = nil

	log.Debug("finalizing properties", "model", m.Name())
	if err := component.FinalizeFromProperties(m); err != nil {
		return err
	}
	log.Debug("connecting", "model", m.PathName(), "components", component.Count[component.Component](m))
	if err := component.Connect(m); err != nil {
		return err
	}
	sys := engine.NewSystem()
	log.Debug("adding to system", "model", m.PathName())
	if err := component.AddToSystem(m, sys); err != nil {
		return err
	}
	m.sys = sys

	n, err := m.NumStateVariables()
	if err != nil {
		return err
	}
	log.Info("system built",
		"model", m.PathName(),
		"components", component.Count[component.Component](m),
		"subsystems", sys.NumSubsystems(),
		"states", n,
		"caches", sys.NumCaches(),
	)
	return nil
}

// InitSystem builds the system and returns a default state initialized from
// the tree's properties.
func (m *Model) InitSystem() (*engine.State, error) {
	if err := m.BuildSystem(); err != nil {
		return nil, err
	}
	s, err := m.sys.DefaultState()
	if err != nil {
		return nil, err
	}
	if err := component.InitState(m, s); err != nil {
		return nil, err
	}
	return s, nil
}

// System is the engine system of the last successful build, or nil.
func (m *Model) System() *engine.System { return m.sys }

func (m *Model) Realize(s *engine.State, stage engine.Stage) error {
	return component.Realize(m, s, stage)
}

// Load writes time and the state-variable vector x into s.
func (m *Model) Load(s *engine.State, t float64, x []float64) error {
	s.SetTime(t)
	return m.SetStateVariableValues(s, x)
}

// ComputeDerivatives returns the time derivatives of every state variable,
// in the order of StateVariableNames.
func (m *Model) ComputeDerivatives(s *engine.State) ([]float64, error) {
	if err := component.ComputeStateVariableDerivatives(m, s); err != nil {
		return nil, err
	}
	return m.StateVariableDerivatives(s)
}

func (m *Model) Decorations(fixed bool, s *engine.State) ([]component.Decoration, error) {
	return component.GenerateDecorations(m, fixed, s)
}

// EnergySource is implemented by nodes that store mechanical energy.
type EnergySource interface {
	component.Component
	Energy(s *engine.State) (float64, error)
}

// Energy sums every EnergySource in the tree. s must be realized through
// Velocity.
func (m *Model) Energy(s *engine.State) (float64, error) {
	total := 0.0
	for src := range component.List[EnergySource](m) {
		e, err := src.Energy(s)
		if err != nil {
			return 0, err
		}
		total += e
	}
	return total, nil
}

// FloatOutputs lists the paths, relative to the model, of every float64
// output in the tree.
func (m *Model) FloatOutputs() []string {
	var paths []string
	for c := range component.List[component.Component](m) {
		b := c.ComponentBase()
		for _, out := range b.Outputs() {
			if _, ok := out.(*component.Output[float64]); ok {
				paths = append(paths, b.RelativePathName(m)+"/"+out.Name())
			}
		}
	}
	return paths
}
