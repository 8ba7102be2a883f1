package component

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/san-kum/simtree/internal/engine"
)

// ConnectorSlot is the type-erased view of a Connector.
type ConnectorSlot interface {
	Name() string
	ConnecteeName() string
	SetConnecteeName(path string)
	ConnecteeTypeName() string
	ConnectionStage() engine.Stage
	IsConnected() bool
	connect(owner *Base) error
	disconnect()
}

// InputSlot is the type-erased view of an Input.
type InputSlot interface {
	Name() string
	ConnecteeName() string
	SetConnecteeName(path string)
	RequiredAt() engine.Stage
	IsConnected() bool
	// ConnectedOutput is the path of the bound output.
	ConnectedOutput() string
	connect(owner *Base) error
	disconnect()
}

// OutputSlot is the type-erased view of an Output.
type OutputSlot interface {
	Name() string
	DependsOn() engine.Stage
	TypeName() string
	Owner() Component
	ValueString(s *engine.State) (string, error)
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// Connector is a named dependency on another node of type T, resolved by
// path or unique bare name when the tree connects.
type Connector[T any] struct {
	owner         *Base
	name          string
	connecteeName string
	connectee     Handle
}

// ConstructConnector declares a connector on owner. It belongs in the owner's
// constructor.
func ConstructConnector[T any](owner Component, name string) *Connector[T] {
	b := owner.ComponentBase()
	c := &Connector[T]{owner: b, name: name, connectee: NoHandle}
	for _, other := range b.connectors {
		if other.Name() == name {
			b.constructFailed(b.errorf("construct connector", name, ErrDuplicateName))
			return c
		}
	}
	b.connectors = append(b.connectors, c)
	return c
}

func (c *Connector[T]) Name() string { return c.name }
func (c *Connector[T]) ConnecteeName() string { return c.connecteeName }
func (c *Connector[T]) SetConnecteeName(path string) { c.connecteeName = path }
func (c *Connector[T]) ConnecteeTypeName() string { return typeName[T]() }
func (c *Connector[T]) ConnectionStage() engine.Stage { return engine.StageTopology }
func (c *Connector[T]) IsConnected() bool { return c.connectee != NoHandle }

// Connectee returns the node this connector was resolved to.
func (c *Connector[T]) Connectee() (T, error) {
	var zero T
	if c.connectee == NoHandle || c.owner.tree == nil {
		return zero, c.owner.errorf("connectee", c.name, ErrNotConnected)
	}
	v, ok := c.owner.tree.get(c.connectee).(T)
	if !ok {
		return zero, c.owner.errorf("connectee", c.name, ErrTypeMismatch)
	}
	return v, nil
}

func (c *Connector[T]) connect(owner *Base) error {
	c.connectee = NoHandle
	if c.connecteeName == "" {
		return owner.errorf("connect connector", c.name, fmt.Errorf("%w: connectee name is empty", ErrConfiguration))
	}
	match := func(n Component) bool {
		_, ok := n.(T)
		return ok
	}
	root := owner.tree.base(rootHandle)
	n, err := owner.tree.resolve(root, c.connecteeName, root, match)
	if err != nil {
		return owner.errorf("connect connector", c.name, fmt.Errorf("%s %q: %w", typeName[T](), c.connecteeName, err))
	}
	c.connectee = n.id
	return nil
}

func (c *Connector[T]) disconnect() { c.connectee = NoHandle }

// Output is a named value computed lazily from a State. It may only be
// evaluated once the state has reached DependsOn.
type Output[T any] struct {
	owner     *Base
	name      string
	dependsOn engine.Stage
	fn        func(s *engine.State) (T, error)
}

// ConstructOutput declares an output on owner.
func ConstructOutput[T any](owner Component, name string, dependsOn engine.Stage, fn func(s *engine.State) (T, error)) *Output[T] {
	b := owner.ComponentBase()
	o := &Output[T]{owner: b, name: name, dependsOn: dependsOn, fn: fn}
	if _, dup := b.outputs[name]; dup {
		b.constructFailed(b.errorf("construct output", name, ErrDuplicateName))
		return o
	}
	b.outputs[name] = o
	return o
}

// ConstructOutputForStateVariable exposes a state variable of owner as an
// output valid from Model onward.
func ConstructOutputForStateVariable(owner Component, name string) *Output[float64] {
	b := owner.ComponentBase()
	return ConstructOutput(owner, name, engine.StageModel, func(s *engine.State) (float64, error) {
		return b.GetStateVariableValue(s, name)
	})
}

func (o *Output[T]) Name() string { return o.name }
func (o *Output[T]) DependsOn() engine.Stage { return o.dependsOn }
func (o *Output[T]) TypeName() string { return typeName[T]() }
func (o *Output[T]) Owner() Component { return o.owner.self }

// PathName is the owner's path followed by the output name.
func (o *Output[T]) PathName() string { return o.owner.pathName + "/" + o.name }

func (o *Output[T]) Value(s *engine.State) (T, error) {
	var zero T
	if !s.Available(o.dependsOn) {
		err := &engine.StageError{Op: "output " + o.name, Required: o.dependsOn, Current: s.Stage()}
		return zero, o.owner.errorf("output", o.name, stateErr(err))
	}
	v, err := o.fn(s)
	if err != nil {
		return zero, o.owner.errorf("output", o.name, err)
	}
	return v, nil
}

func (o *Output[T]) ValueString(s *engine.State) (string, error) {
	v, err := o.Value(s)
	if err != nil {
		return "", err
	}
	if f, ok := any(v).(float64); ok {
		return fmt.Sprintf("%.6g", f), nil
	}
	return fmt.Sprint(v), nil
}

// Input consumes an Output[T] of some other node. Binding it to an output
// that only becomes valid after RequiredAt is a configuration error.
type Input[T any] struct {
	owner         *Base
	name          string
	connecteeName string
	requiredAt    engine.Stage

	source     Handle
	outputName string
}

// ConstructInput declares an input on owner.
func ConstructInput[T any](owner Component, name string, requiredAt engine.Stage) *Input[T] {
	b := owner.ComponentBase()
	in := &Input[T]{owner: b, name: name, requiredAt: requiredAt, source: NoHandle}
	for _, other := range b.inputs {
		if other.Name() == name {
			b.constructFailed(b.errorf("construct input", name, ErrDuplicateName))
			return in
		}
	}
	b.inputs = append(b.inputs, in)
	return in
}

func (in *Input[T]) Name() string { return in.name }
func (in *Input[T]) ConnecteeName() string { return in.connecteeName }
func (in *Input[T]) SetConnecteeName(path string) { in.connecteeName = path }
func (in *Input[T]) RequiredAt() engine.Stage { return in.requiredAt }
func (in *Input[T]) IsConnected() bool { return in.source != NoHandle }

func (in *Input[T]) ConnectedOutput() string {
	if !in.IsConnected() {
		return ""
	}
	return in.owner.tree.base(in.source).pathName + "/" + in.outputName
}

func (in *Input[T]) output() (*Output[T], error) {
	if in.source == NoHandle || in.owner.tree == nil {
		return nil, in.owner.errorf("input", in.name, ErrNotConnected)
	}
	slot := in.owner.tree.base(in.source).outputs[in.outputName]
	out, ok := slot.(*Output[T])
	if !ok {
		return nil, in.owner.errorf("input", in.name, ErrTypeMismatch)
	}
	return out, nil
}

func (in *Input[T]) Value(s *engine.State) (T, error) {
	out, err := in.output()
	if err != nil {
		var zero T
		return zero, err
	}
	return out.Value(s)
}

// connect resolves "<component path>/<output>" against the root, falling back
// to a unique bare component name for the leading segment.
func (in *Input[T]) connect(owner *Base) error {
	in.source, in.outputName = NoHandle, ""
	if in.connecteeName == "" {
		return owner.errorf("connect input", in.name, fmt.Errorf("%w: connectee name is empty", ErrConfiguration))
	}
	root := owner.tree.base(rootHandle)
	slot, err := root.findOutput(in.connecteeName)
	if errors.Is(err, ErrNotFound) {
		slot, err = findOutputByBareOwner[T](root, in.connecteeName)
	}
	if err != nil {
		return owner.errorf("connect input", in.name, fmt.Errorf("output %q: %w", in.connecteeName, err))
	}
	out, ok := slot.(*Output[T])
	if !ok {
		return owner.errorf("connect input", in.name,
			fmt.Errorf("%w: output %q is %s, input wants %s", ErrTypeMismatch, in.connecteeName, slot.TypeName(), typeName[T]()))
	}
	if out.dependsOn > in.requiredAt {
		return owner.errorf("connect input", in.name,
			fmt.Errorf("%w: output %q depends on %s but input is required at %s", ErrConfiguration, in.connecteeName, out.dependsOn, in.requiredAt))
	}
	in.source, in.outputName = out.owner.id, out.name
	return nil
}

func (in *Input[T]) disconnect() { in.source, in.outputName = NoHandle, "" }

// GetOutput finds an output on this node or, for a slash separated name, on
// the subcomponent named by everything before the last slash.
func (b *Base) GetOutput(name string) (OutputSlot, error) {
	out, err := b.findOutput(name)
	if err != nil {
		return nil, b.errorf("get output", name, err)
	}
	return out, nil
}

func (b *Base) findOutput(name string) (OutputSlot, error) {
	if out, ok := b.outputs[name]; ok {
		return out, nil
	}
	i := strings.LastIndex(name, "/")
	if i < 0 || b.tree == nil {
		return nil, ErrNotFound
	}
	owner, ok := b.tree.findPath(b, name[:i])
	if !ok || owner == b {
		return nil, ErrNotFound
	}
	return owner.findOutput(name[i+1:])
}

// findOutputByBareOwner resolves "owner/output" where owner is a bare name
// anywhere in b's subtree. Only nodes carrying an output of that name and
// type are candidates. When none does, nodes carrying the name with another
// type are tried so the caller can report the mismatch.
func findOutputByBareOwner[T any](b *Base, name string) (OutputSlot, error) {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return nil, ErrNotFound
	}
	outName := name[i+1:]
	typed := func(c Component) bool {
		_, ok := c.ComponentBase().outputs[outName].(*Output[T])
		return ok
	}
	named := func(c Component) bool {
		_, ok := c.ComponentBase().outputs[outName]
		return ok
	}
	owner, err := b.tree.resolve(b, name[:i], b, typed)
	if errors.Is(err, ErrNotFound) {
		owner, err = b.tree.resolve(b, name[:i], b, named)
	}
	if err != nil {
		return nil, err
	}
	return owner.outputs[outName], nil
}

// GetInput finds an input on this node or a nested subcomponent, like GetOutput.
func (b *Base) GetInput(name string) (InputSlot, error) {
	in, err := b.findInput(name)
	if err != nil {
		return nil, b.errorf("get input", name, err)
	}
	return in, nil
}

func (b *Base) findInput(name string) (InputSlot, error) {
	for _, in := range b.inputs {
		if in.Name() == name {
			return in, nil
		}
	}
	i := strings.LastIndex(name, "/")
	if i < 0 || b.tree == nil {
		return nil, ErrNotFound
	}
	owner, ok := b.tree.findPath(b, name[:i])
	if !ok || owner == b {
		return nil, ErrNotFound
	}
	return owner.findInput(name[i+1:])
}

// OutputValue evaluates a possibly nested output of c as a T.
func OutputValue[T any](c Component, s *engine.State, name string) (T, error) {
	var zero T
	b := c.ComponentBase()
	slot, err := b.GetOutput(name)
	if err != nil {
		return zero, err
	}
	out, ok := slot.(*Output[T])
	if !ok {
		return zero, b.errorf("output value", name, fmt.Errorf("%w: output is %s, want %s", ErrTypeMismatch, slot.TypeName(), typeName[T]()))
	}
	return out.Value(s)
}
