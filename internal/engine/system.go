package engine

import (
	"fmt"
	"math"
)

// Indices handed out by a System. They are invalid until allocated and are
// only meaningful for States built by the same System.
type (
	SubsystemIndex int
	MobilityIndex  int
	ZIndex         int
	DiscreteIndex  int
	CacheIndex     int
)

// InvalidIndex is the sentinel value of every index type.
const InvalidIndex = -1

func (i SubsystemIndex) IsValid() bool { return i >= 0 }
func (i MobilityIndex) IsValid() bool { return i >= 0 }
func (i ZIndex) IsValid() bool { return i >= 0 }
func (i DiscreteIndex) IsValid() bool { return i >= 0 }
func (i CacheIndex) IsValid() bool { return i >= 0 }

// Realizer is called once per stage, in registration order, whenever a State
// is realized through that stage.
type Realizer interface {
	Realize(s *State, stage Stage) error
}

// Allocator is implemented by realizers that defer their allocations until
// the system's topology is realized.
type Allocator interface {
	Allocate(sys *System) error
}

type mobilityInfo struct {
	subsystem SubsystemIndex
	inertia   float64
	q0, u0    float64
}

type zInfo struct {
	subsystem   SubsystemIndex
	initial     float64
	invalidates Stage
}

type discreteInfo struct {
	subsystem   SubsystemIndex
	invalidates Stage
	initial     any
}

type cacheInfo struct {
	subsystem SubsystemIndex
	dependsOn Stage
	prototype any
}

// System owns the layout of every State: which variables exist, which stage
// each one invalidates and which realizers run at each stage. Once topology is
// realized the layout is immutable and the System may be shared read-only by
// any number of independently realized States.
type System struct {
	subsystems []string
	mobilities []mobilityInfo
	zs         []zInfo
	discretes  []discreteInfo
	caches     []cacheInfo
	realizers  []Realizer

	topology     bool
	failed       error
	defaultState *State
}

func NewSystem() *System {
	return &System{}
}

func (sys *System) checkOpen() error {
	if sys.failed != nil {
		return fmt.Errorf("engine: system must be rebuilt: %w", sys.failed)
	}
	if sys.topology {
		return ErrTopologyRealized
	}
	return nil
}

func (sys *System) checkSubsystem(sub SubsystemIndex) error {
	if int(sub) < 0 || int(sub) >= len(sys.subsystems) {
		return fmt.Errorf("%w: subsystem %d", ErrNotAllocated, sub)
	}
	return nil
}

// AddSubsystem registers a named allocation scope.
func (sys *System) AddSubsystem(name string) (SubsystemIndex, error) {
	if err := sys.checkOpen(); err != nil {
		return InvalidIndex, err
	}
	sys.subsystems = append(sys.subsystems, name)
	return SubsystemIndex(len(sys.subsystems) - 1), nil
}

func (sys *System) SubsystemName(sub SubsystemIndex) string {
	if sys.checkSubsystem(sub) != nil {
		return ""
	}
	return sys.subsystems[sub]
}

func (sys *System) AddRealizer(r Realizer) error {
	if err := sys.checkOpen(); err != nil {
		return err
	}
	sys.realizers = append(sys.realizers, r)
	return nil
}

// AddMobility allocates a one degree of freedom generalized coordinate with
// native position (Q) and speed (U) storage.
func (sys *System) AddMobility(sub SubsystemIndex, inertia, q0, u0 float64) (MobilityIndex, error) {
	if err := sys.checkOpen(); err != nil {
		return InvalidIndex, err
	}
	if err := sys.checkSubsystem(sub); err != nil {
		return InvalidIndex, err
	}
	if inertia <= 0 || math.IsNaN(inertia) || math.IsInf(inertia, 0) {
		return InvalidIndex, fmt.Errorf("engine: mobility inertia must be positive, got %g", inertia)
	}
	sys.mobilities = append(sys.mobilities, mobilityInfo{subsystem: sub, inertia: inertia, q0: q0, u0: u0})
	return MobilityIndex(len(sys.mobilities) - 1), nil
}

// AllocateContinuous allocates a continuous state variable whose writes
// invalidate the given stage.
func (sys *System) AllocateContinuous(sub SubsystemIndex, initial float64, invalidates Stage) (ZIndex, error) {
	if err := sys.checkOpen(); err != nil {
		return InvalidIndex, err
	}
	if err := sys.checkSubsystem(sub); err != nil {
		return InvalidIndex, err
	}
	sys.zs = append(sys.zs, zInfo{subsystem: sub, initial: initial, invalidates: clampStage(invalidates)})
	return ZIndex(len(sys.zs) - 1), nil
}

func (sys *System) AllocateDiscrete(sub SubsystemIndex, invalidates Stage, initial any) (DiscreteIndex, error) {
	if err := sys.checkOpen(); err != nil {
		return InvalidIndex, err
	}
	if err := sys.checkSubsystem(sub); err != nil {
		return InvalidIndex, err
	}
	sys.discretes = append(sys.discretes, discreteInfo{subsystem: sub, invalidates: clampStage(invalidates), initial: initial})
	return DiscreteIndex(len(sys.discretes) - 1), nil
}

func (sys *System) AllocateCache(sub SubsystemIndex, dependsOn Stage, prototype any) (CacheIndex, error) {
	if err := sys.checkOpen(); err != nil {
		return InvalidIndex, err
	}
	if err := sys.checkSubsystem(sub); err != nil {
		return InvalidIndex, err
	}
	sys.caches = append(sys.caches, cacheInfo{subsystem: sub, dependsOn: clampStage(dependsOn), prototype: prototype})
	return CacheIndex(len(sys.caches) - 1), nil
}

func clampStage(s Stage) Stage {
	if s < LowestStage {
		return LowestStage
	}
	if s > HighestStage {
		return HighestStage
	}
	return s
}

func (sys *System) NumSubsystems() int { return len(sys.subsystems) }
func (sys *System) NumMobilities() int { return len(sys.mobilities) }
func (sys *System) NumContinuous() int { return len(sys.zs) }
func (sys *System) NumDiscretes() int { return len(sys.discretes) }
func (sys *System) NumCaches() int { return len(sys.caches) }

func (sys *System) IsTopologyRealized() bool { return sys.topology }

// RealizeTopology runs the deferred allocation pass, freezes the layout and
// builds the default State realized through Topology.
func (sys *System) RealizeTopology() error {
	if err := sys.checkOpen(); err != nil {
		return err
	}
	for _, r := range sys.realizers {
		if a, ok := r.(Allocator); ok {
			if err := a.Allocate(sys); err != nil {
				sys.failed = err
				return fmt.Errorf("engine: allocate: %w", err)
			}
		}
	}
	sys.topology = true

	s := sys.newState()
	if err := sys.Realize(s, StageTopology); err != nil {
		sys.failed = err
		return err
	}
	sys.defaultState = s
	return nil
}

// DefaultState returns a fresh copy of the default State.
func (sys *System) DefaultState() (*State, error) {
	if sys.failed != nil {
		return nil, fmt.Errorf("engine: system must be rebuilt: %w", sys.failed)
	}
	if !sys.topology || sys.defaultState == nil {
		return nil, ErrTopologyNotRealized
	}
	return sys.defaultState.Clone(), nil
}

func (sys *System) newState() *State {
	s := &State{
		sys:          sys,
		stage:        StageEmpty,
		realizing:    StageEmpty,
		q:            make([]float64, len(sys.mobilities)),
		u:            make([]float64, len(sys.mobilities)),
		force:        make([]float64, len(sys.mobilities)),
		udot:         make([]float64, len(sys.mobilities)),
		locked:       make([]bool, len(sys.mobilities)),
		z:            make([]float64, len(sys.zs)),
		zInvalidates: make([]Stage, len(sys.zs)),
		zdot:         make([]float64, len(sys.zs)),
		zdotSet:      make([]bool, len(sys.zs)),
		discretes:    make([]discreteSlot, len(sys.discretes)),
		caches:       make([]cacheSlot, len(sys.caches)),
	}
	for i, m := range sys.mobilities {
		s.q[i] = m.q0
		s.u[i] = m.u0
	}
	for i, z := range sys.zs {
		s.z[i] = z.initial
		s.zInvalidates[i] = z.invalidates
	}
	for i, d := range sys.discretes {
		s.discretes[i] = discreteSlot{value: d.initial, invalidates: d.invalidates}
	}
	for i, c := range sys.caches {
		s.caches[i] = cacheSlot{value: c.prototype, dependsOn: c.dependsOn}
	}
	return s
}

// Realize brings s up to the requested stage, one stage at a time. If any
// realizer fails the marker stays at the last completed stage and anything
// written during the failed stage is invalidated.
func (sys *System) Realize(s *State, stage Stage) error {
	if s == nil || s.sys != sys {
		return ErrForeignState
	}
	if !sys.topology {
		return ErrTopologyNotRealized
	}
	if stage > HighestStage {
		stage = HighestStage
	}
	for st := s.stage + 1; st <= stage; st++ {
		s.realizing = st
		if err := sys.realizeStage(s, st); err != nil {
			s.realizing = StageEmpty
			s.invalidate(st)
			return fmt.Errorf("engine: realize %s: %w", st, err)
		}
		s.realizing = StageEmpty
		s.stage = st
	}
	return nil
}

func (sys *System) realizeStage(s *State, st Stage) error {
	if st == StageDynamics {
		for i := range s.force {
			s.force[i] = 0
		}
	}
	if st == StageAcceleration {
		// forces applied at Dynamics are complete once Acceleration starts
		for i, m := range sys.mobilities {
			if s.locked[i] {
				s.udot[i] = 0
				continue
			}
			s.udot[i] = s.force[i] / m.inertia
		}
	}
	for _, r := range sys.realizers {
		if err := r.Realize(s, st); err != nil {
			return err
		}
	}
	return nil
}
