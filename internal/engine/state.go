package engine

import (
	"fmt"
	"reflect"
	"slices"
)

type discreteSlot struct {
	value       any
	invalidates Stage
}

type cacheSlot struct {
	value     any
	dependsOn Stage
	valid     bool
}

// State is one independently realizable instance of a System's variables,
// together with its stage marker and cache validity. A State is not safe for
// concurrent use; clone it to evaluate on several goroutines.
type State struct {
	sys       *System
	stage     Stage
	realizing Stage

	time float64

	q, u   []float64
	force  []float64
	udot   []float64
	locked []bool

	z            []float64
	zInvalidates []Stage
	zdot         []float64
	zdotSet      []bool
	derivPhase   bool

	discretes []discreteSlot
	caches    []cacheSlot
}

func (s *State) System() *System { return s.sys }

// Stage reports the highest stage fully realized.
func (s *State) Stage() Stage { return s.stage }

// Realizing reports the stage currently being realized, or StageEmpty.
func (s *State) Realizing() Stage { return s.realizing }

// Available reports whether values depending on stage may be read, either
// because the stage is realized or because it is being realized right now.
func (s *State) Available(stage Stage) bool {
	if s.stage >= stage {
		return true
	}
	return s.realizing != StageEmpty && s.realizing >= stage
}

func (s *State) require(op string, stage Stage) error {
	if s.Available(stage) {
		return nil
	}
	return &StageError{Op: op, Required: stage, Current: s.stage}
}

// Invalidate drops the state back below stage. Every cache entry depending on
// stage or higher is marked invalid and, when stage is at or below
// Acceleration, every derivative is discarded.
func (s *State) Invalidate(stage Stage) {
	s.invalidate(clampStage(stage))
}

func (s *State) invalidate(stage Stage) {
	for i := range s.caches {
		if s.caches[i].dependsOn >= stage {
			s.caches[i].valid = false
		}
	}
	if stage <= StageAcceleration {
		clear(s.zdotSet)
	}
	if s.stage >= stage {
		s.stage = stage - 1
	}
}

func (s *State) Time() float64 { return s.time }

func (s *State) SetTime(t float64) {
	s.time = t
	s.invalidate(StageTime)
}

func (s *State) NumMobilities() int { return len(s.q) }
func (s *State) NumZ() int { return len(s.z) }

func (s *State) checkMobility(i MobilityIndex) error {
	if int(i) < 0 || int(i) >= len(s.q) {
		return fmt.Errorf("%w: mobility %d", ErrNotAllocated, i)
	}
	return nil
}

func (s *State) Q(i MobilityIndex) (float64, error) {
	if err := s.checkMobility(i); err != nil {
		return 0, err
	}
	return s.q[i], nil
}

func (s *State) SetQ(i MobilityIndex, v float64) error {
	if err := s.checkMobility(i); err != nil {
		return err
	}
	s.q[i] = v
	s.invalidate(StagePosition)
	return nil
}

func (s *State) U(i MobilityIndex) (float64, error) {
	if err := s.checkMobility(i); err != nil {
		return 0, err
	}
	return s.u[i], nil
}

func (s *State) SetU(i MobilityIndex, v float64) error {
	if err := s.checkMobility(i); err != nil {
		return err
	}
	s.u[i] = v
	s.invalidate(StageVelocity)
	return nil
}

// QDot is the time derivative of a generalized coordinate.
func (s *State) QDot(i MobilityIndex) (float64, error) {
	if err := s.checkMobility(i); err != nil {
		return 0, err
	}
	if err := s.require("qdot", StageVelocity); err != nil {
		return 0, err
	}
	if s.locked[i] {
		return 0, nil
	}
	return s.u[i], nil
}

func (s *State) UDot(i MobilityIndex) (float64, error) {
	if err := s.checkMobility(i); err != nil {
		return 0, err
	}
	if s.stage < StageAcceleration {
		return 0, &StageError{Op: "udot", Required: StageAcceleration, Current: s.stage}
	}
	return s.udot[i], nil
}

// ApplyMobilityForce accumulates a generalized force. Forces may only be
// applied while Dynamics is being realized.
func (s *State) ApplyMobilityForce(i MobilityIndex, f float64) error {
	if err := s.checkMobility(i); err != nil {
		return err
	}
	if s.realizing != StageDynamics {
		return fmt.Errorf("%w: forces are applied during %s", ErrWrongStage, StageDynamics)
	}
	s.force[i] += f
	return nil
}

func (s *State) MobilityForce(i MobilityIndex) (float64, error) {
	if err := s.checkMobility(i); err != nil {
		return 0, err
	}
	if s.stage < StageDynamics {
		return 0, &StageError{Op: "mobility force", Required: StageDynamics, Current: s.stage}
	}
	return s.force[i], nil
}

// LockMobility pins a coordinate in place. It is set while realizing Model
// from the owner's modeling options.
func (s *State) LockMobility(i MobilityIndex, locked bool) error {
	if err := s.checkMobility(i); err != nil {
		return err
	}
	if s.realizing != StageModel {
		return fmt.Errorf("%w: locks are applied during %s", ErrWrongStage, StageModel)
	}
	s.locked[i] = locked
	return nil
}

func (s *State) IsMobilityLocked(i MobilityIndex) bool {
	if s.checkMobility(i) != nil {
		return false
	}
	return s.locked[i]
}

func (s *State) checkZ(i ZIndex) error {
	if int(i) < 0 || int(i) >= len(s.z) {
		return fmt.Errorf("%w: continuous variable %d", ErrNotAllocated, i)
	}
	return nil
}

func (s *State) Z(i ZIndex) (float64, error) {
	if err := s.checkZ(i); err != nil {
		return 0, err
	}
	return s.z[i], nil
}

func (s *State) SetZ(i ZIndex, v float64) error {
	if err := s.checkZ(i); err != nil {
		return err
	}
	s.z[i] = v
	s.invalidate(s.zInvalidates[i])
	return nil
}

// ZDot returns a derivative written during the last derivative evaluation.
func (s *State) ZDot(i ZIndex) (float64, error) {
	if err := s.checkZ(i); err != nil {
		return 0, err
	}
	if !s.zdotSet[i] {
		return 0, &StageError{Op: "zdot", Required: StageAcceleration, Current: s.stage}
	}
	return s.zdot[i], nil
}

func (s *State) IsZDotSet(i ZIndex) bool {
	return s.checkZ(i) == nil && s.zdotSet[i]
}

func (s *State) SetZDot(i ZIndex, v float64) error {
	if err := s.checkZ(i); err != nil {
		return err
	}
	if !s.derivPhase {
		return ErrNotInDerivativePhase
	}
	s.zdot[i] = v
	s.zdotSet[i] = true
	return nil
}

// BeginDerivatives opens the window in which continuous derivatives may be
// written. The state must already be realized through Acceleration.
func (s *State) BeginDerivatives() error {
	if s.stage < StageAcceleration {
		return &StageError{Op: "derivative evaluation", Required: StageAcceleration, Current: s.stage}
	}
	clear(s.zdotSet)
	s.derivPhase = true
	return nil
}

func (s *State) EndDerivatives() { s.derivPhase = false }

func (s *State) InDerivativePhase() bool { return s.derivPhase }

func (s *State) checkDiscrete(i DiscreteIndex) error {
	if int(i) < 0 || int(i) >= len(s.discretes) {
		return fmt.Errorf("%w: discrete variable %d", ErrNotAllocated, i)
	}
	return nil
}

func (s *State) Discrete(i DiscreteIndex) (any, error) {
	if err := s.checkDiscrete(i); err != nil {
		return nil, err
	}
	return s.discretes[i].value, nil
}

// SetDiscrete stores v, which must have the same dynamic type as the value
// the variable was allocated with, and invalidates the variable's stage.
func (s *State) SetDiscrete(i DiscreteIndex, v any) error {
	if err := s.checkDiscrete(i); err != nil {
		return err
	}
	slot := &s.discretes[i]
	if !sameType(slot.value, v) {
		return fmt.Errorf("%w: have %T, got %T", ErrTypeMismatch, slot.value, v)
	}
	slot.value = v
	s.invalidate(slot.invalidates)
	return nil
}

func (s *State) checkCache(i CacheIndex) error {
	if int(i) < 0 || int(i) >= len(s.caches) {
		return fmt.Errorf("%w: cache entry %d", ErrNotAllocated, i)
	}
	return nil
}

// Cache reads an entry. It succeeds when the entry is valid or when the state
// has been fully realized through the entry's dependency stage.
func (s *State) Cache(i CacheIndex) (any, error) {
	if err := s.checkCache(i); err != nil {
		return nil, err
	}
	slot := s.caches[i]
	if slot.valid || s.stage >= slot.dependsOn {
		return slot.value, nil
	}
	return nil, &StageError{Op: "cache read", Required: slot.dependsOn, Current: s.stage}
}

// UpdCache returns the stored value regardless of validity.
func (s *State) UpdCache(i CacheIndex) (any, error) {
	if err := s.checkCache(i); err != nil {
		return nil, err
	}
	return s.caches[i].value, nil
}

// SetCache stores v and marks the entry valid.
func (s *State) SetCache(i CacheIndex, v any) error {
	if err := s.checkCache(i); err != nil {
		return err
	}
	slot := &s.caches[i]
	if !sameType(slot.value, v) {
		return fmt.Errorf("%w: have %T, got %T", ErrTypeMismatch, slot.value, v)
	}
	slot.value = v
	slot.valid = true
	return nil
}

func (s *State) MarkCacheValid(i CacheIndex) error {
	if err := s.checkCache(i); err != nil {
		return err
	}
	s.caches[i].valid = true
	return nil
}

func (s *State) MarkCacheInvalid(i CacheIndex) error {
	if err := s.checkCache(i); err != nil {
		return err
	}
	s.caches[i].valid = false
	return nil
}

func (s *State) IsCacheValid(i CacheIndex) bool {
	return s.checkCache(i) == nil && s.caches[i].valid
}

func (s *State) CacheDependsOn(i CacheIndex) Stage {
	if s.checkCache(i) != nil {
		return StageEmpty
	}
	return s.caches[i].dependsOn
}

func sameType(have, got any) bool {
	if have == nil {
		return true
	}
	return reflect.TypeOf(have) == reflect.TypeOf(got)
}

// Clone returns an independent copy sharing only the System.
func (s *State) Clone() *State {
	c := *s
	c.q = slices.Clone(s.q)
	c.u = slices.Clone(s.u)
	c.force = slices.Clone(s.force)
	c.udot = slices.Clone(s.udot)
	c.locked = slices.Clone(s.locked)
	c.z = slices.Clone(s.z)
	c.zInvalidates = slices.Clone(s.zInvalidates)
	c.zdot = slices.Clone(s.zdot)
	c.zdotSet = slices.Clone(s.zdotSet)
	c.discretes = slices.Clone(s.discretes)
	c.caches = slices.Clone(s.caches)
	c.realizing = StageEmpty
	c.derivPhase = false
	return &c
}
