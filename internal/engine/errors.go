package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrStageTooLow indicates a value was read before its stage was realized.
	ErrStageTooLow = errors.New("engine: state not realized to required stage")

	// ErrNotAllocated indicates an index that the system never handed out.
	ErrNotAllocated = errors.New("engine: resource not allocated")

	// ErrTopologyRealized indicates an allocation after the system was frozen.
	ErrTopologyRealized = errors.New("engine: topology already realized")

	// ErrTopologyNotRealized indicates a state request before RealizeTopology.
	ErrTopologyNotRealized = errors.New("engine: topology not realized")

	// ErrWrongStage indicates an operation attempted outside the stage that owns it.
	ErrWrongStage = errors.New("engine: operation not permitted at this stage")

	// ErrNotInDerivativePhase indicates a derivative write outside derivative evaluation.
	ErrNotInDerivativePhase = errors.New("engine: derivatives may only be set during derivative evaluation")

	// ErrTypeMismatch indicates a stored value of a different type than its prototype.
	ErrTypeMismatch = errors.New("engine: value type does not match prototype")

	// ErrForeignState indicates a state built by a different system.
	ErrForeignState = errors.New("engine: state does not belong to this system")
)

// StageError reports a stage requirement that a state did not meet.
type StageError struct {
	Op       string
	Required Stage
	Current  Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: requires stage %s, state is at %s", e.Op, e.Required, e.Current)
}

func (e *StageError) Unwrap() error { return ErrStageTooLow }
