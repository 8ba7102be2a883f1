package component

import (
	"errors"
	"fmt"

	"github.com/san-kum/simtree/internal/engine"
)

var (
	// ErrNotFound indicates a named component, slot or variable is absent.
	ErrNotFound = errors.New("component: not found")

	// ErrAmbiguous indicates a bare name matched more than one candidate of the required type.
	ErrAmbiguous = errors.New("component: ambiguous name")

	// ErrNotReady indicates an accessor used before its lifecycle phase or realization stage.
	ErrNotReady = errors.New("component: not ready")

	// ErrNotConnected indicates a connector or input read before it was resolved.
	ErrNotConnected = errors.New("component: not connected")

	// ErrConfiguration indicates wiring that can never be satisfied.
	ErrConfiguration = errors.New("component: invalid configuration")

	// ErrDuplicateName indicates a name reused within one table of a node.
	ErrDuplicateName = errors.New("component: duplicate name")

	// ErrTypeMismatch indicates a value or connectee of an unexpected type.
	ErrTypeMismatch = errors.New("component: type mismatch")

	// ErrMissingDerivative indicates a state variable left without a derivative.
	ErrMissingDerivative = errors.New("component: derivative not set")

	// ErrReadOnly indicates a write to a variable that does not accept one.
	ErrReadOnly = errors.New("component: read only")
)

// Error ties a failure to the component that reported it and the exact name
// that was requested.
type Error struct {
	Op    string
	Path  string
	Class string
	Name  string
	Err   error
}

func (e *Error) Error() string {
	who := e.Path
	if who == "" {
		who = "<unnamed>"
	}
	if e.Name == "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, who, e.Class, e.Err)
	}
	return fmt.Sprintf("%s %s (%s) %q: %v", e.Op, who, e.Class, e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (b *Base) errorf(op, name string, err error) error {
	path := b.pathName
	if path == "" {
		path = b.EffectiveName()
	}
	return &Error{Op: op, Path: path, Class: b.className, Name: name, Err: err}
}

func (b *Base) notReady(op, name string, need Phase) error {
	return b.errorf(op, name, fmt.Errorf("%w: requires phase %s, component is %s", ErrNotReady, need, b.phase))
}

// stateErr folds engine stage failures into the not-ready class while keeping
// the engine error reachable.
func stateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrStageTooLow) {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	if errors.Is(err, engine.ErrTypeMismatch) {
		return fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}
	return err
}
