package elements

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/engine"
)

type pendulumRig struct {
	root  *Group
	body  *Body
	joint *PinJoint
}

func newPendulumRig(angle float64) *pendulumRig {
	r := &pendulumRig{
		body:  NewBody("bob", 1, 2),
		joint: NewPinJoint("hinge", "ground", "bob"),
	}
	r.joint.Coordinate.DefaultValue = angle
	r.root = NewGroup("model", NewGround("ground"), r.body, r.joint)
	return r
}

func build(t *testing.T, root component.Component) *engine.State {
	t.Helper()
	if err := component.FinalizeFromProperties(root); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := component.Connect(root); err != nil {
		t.Fatalf("connect: %v", err)
	}
	sys := engine.NewSystem()
	if err := component.AddToSystem(root, sys); err != nil {
		t.Fatalf("add to system: %v", err)
	}
	s, err := sys.DefaultState()
	if err != nil {
		t.Fatalf("default state: %v", err)
	}
	if err := component.InitState(root, s); err != nil {
		t.Fatalf("init state: %v", err)
	}
	return s
}

func realize(t *testing.T, root component.Component, s *engine.State, stage engine.Stage) {
	t.Helper()
	if err := component.Realize(root, s, stage); err != nil {
		t.Fatalf("realize %s: %v", stage, err)
	}
}

func TestPendulumEquilibrium(t *testing.T) {
	r := newPendulumRig(0)
	s := build(t, r.root)
	realize(t, r.root, s, engine.StageAcceleration)

	acc, err := r.joint.Coordinate.Acceleration(s)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(acc) > 1e-12 {
		t.Errorf("expected zero acceleration at rest, got %f", acc)
	}
	p, err := r.body.Pose(s)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p.X) > 1e-12 || math.Abs(p.Y+2) > 1e-12 {
		t.Errorf("expected bob at (0, -2), got (%f, %f)", p.X, p.Y)
	}
}

func TestJointDeclarationOrder(t *testing.T) {
	chain := func(childFirst bool) (*Group, *Body) {
		b1, b2 := NewBody("b1", 1, 1), NewBody("b2", 1, 0.5)
		j1 := NewPinJoint("j1", "ground", "b1")
		j2 := NewPinJoint("j2", "b1", "b2")
		j1.Coordinate.DefaultValue = 0.3
		j2.Coordinate.DefaultValue = -0.7
		if childFirst {
			return NewGroup("model", NewGround("ground"), b1, b2, j2, j1), b2
		}
		return NewGroup("model", NewGround("ground"), b1, b2, j1, j2), b2
	}

	want := make(map[bool]Pose)
	for _, childFirst := range []bool{false, true} {
		root, tip := chain(childFirst)
		s := build(t, root)
		realize(t, root, s, engine.StagePosition)
		p, err := tip.Pose(s)
		if err != nil {
			t.Fatalf("childFirst=%v: %v", childFirst, err)
		}
		want[childFirst] = p
	}
	if want[true] != want[false] {
		t.Errorf("expected the same tip pose in both orders, got %+v and %+v", want[false], want[true])
	}
	wantX := math.Sin(0.3) + 0.5*math.Sin(-0.4)
	if math.Abs(want[true].X-wantX) > 1e-12 {
		t.Errorf("expected tip x %f, got %f", wantX, want[true].X)
	}
}

func TestPendulumGravity(t *testing.T) {
	r := newPendulumRig(math.Pi / 2)
	s := build(t, r.root)
	realize(t, r.root, s, engine.StageAcceleration)

	acc, err := r.joint.Coordinate.Acceleration(s)
	if err != nil {
		t.Fatal(err)
	}
	expected := -StandardGravity / r.body.Length
	if math.Abs(acc-expected) > 1e-9 {
		t.Errorf("expected acceleration %f, got %f", expected, acc)
	}
}

func TestPendulumStateVariables(t *testing.T) {
	r := newPendulumRig(0.3)
	r.joint.Coordinate.DefaultSpeed = -0.5
	s := build(t, r.root)

	names, err := r.root.StateVariableNames()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"hinge/hinge_angle/value", "hinge/hinge_angle/speed"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected name %q at %d, got %q", want[i], i, names[i])
		}
	}

	if err := component.ComputeStateVariableDerivatives(r.root, s); err != nil {
		t.Fatal(err)
	}
	d, err := r.root.StateVariableDerivatives(s)
	if err != nil {
		t.Fatal(err)
	}
	if d[0] != -0.5 {
		t.Errorf("expected qdot -0.5, got %f", d[0])
	}
	expected := -StandardGravity / 2 * math.Sin(0.3)
	if math.Abs(d[1]-expected) > 1e-9 {
		t.Errorf("expected udot %f, got %f", expected, d[1])
	}
}

func TestEnergyAtRest(t *testing.T) {
	r := newPendulumRig(0)
	s := build(t, r.root)
	realize(t, r.root, s, engine.StagePosition)

	e, err := r.joint.Energy(s)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(e) > 1e-12 {
		t.Errorf("expected zero energy at rest, got %f", e)
	}
}

func TestLockedCoordinate(t *testing.T) {
	r := newPendulumRig(1)
	r.joint.Coordinate.Locked = true
	r.joint.Coordinate.DefaultSpeed = 3
	s := build(t, r.root)
	realize(t, r.root, s, engine.StageAcceleration)

	acc, _ := r.joint.Coordinate.Acceleration(s)
	speed, _ := r.joint.Coordinate.Speed(s)
	if acc != 0 || speed != 0 {
		t.Errorf("expected locked coordinate at rest, got speed %f acceleration %f", speed, acc)
	}

	if err := r.joint.Coordinate.SetLocked(s, false); err != nil {
		t.Fatal(err)
	}
	if s.Stage() >= engine.StageModel {
		t.Errorf("expected unlocking to invalidate Model, stage is %s", s.Stage())
	}
	realize(t, r.root, s, engine.StageAcceleration)
	acc, _ = r.joint.Coordinate.Acceleration(s)
	if acc >= 0 {
		t.Errorf("expected negative acceleration once unlocked, got %f", acc)
	}
}

func TestTorsionalSpringCache(t *testing.T) {
	r := newPendulumRig(0.2)
	spring := NewTorsionalSpring("spring", "hinge_angle", 10)
	r.root.Add(spring)
	s := build(t, r.root)
	realize(t, r.root, s, engine.StageDynamics)

	tau, err := spring.Torque(s)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(tau+2) > 1e-12 {
		t.Errorf("expected torque -2, got %f", tau)
	}
	if !spring.IsCacheVariableValid(s, "torque") {
		t.Error("expected torque cache valid after dynamics")
	}

	if err := r.joint.Coordinate.SetSpeed(s, 1); err != nil {
		t.Fatal(err)
	}
	if spring.IsCacheVariableValid(s, "torque") {
		t.Error("expected speed change to invalidate the torque cache")
	}

	realize(t, r.root, s, engine.StageVelocity)
	power, err := component.OutputValue[float64](spring, s, "power")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(power+2) > 1e-12 {
		t.Errorf("expected power -2, got %f", power)
	}
}

func TestSpringShiftsAcceleration(t *testing.T) {
	free := newPendulumRig(0.2)
	s0 := build(t, free.root)
	realize(t, free.root, s0, engine.StageAcceleration)
	a0, _ := free.joint.Coordinate.Acceleration(s0)

	sprung := newPendulumRig(0.2)
	sprung.root.Add(NewTorsionalSpring("spring", "hinge_angle", 4))
	s1 := build(t, sprung.root)
	realize(t, sprung.root, s1, engine.StageAcceleration)
	a1, _ := sprung.joint.Coordinate.Acceleration(s1)

	// -k q / (m L^2)
	expected := -4 * 0.2 / 4
	if math.Abs(a1-a0-expected) > 1e-9 {
		t.Errorf("expected spring to add %f, got %f", expected, a1-a0)
	}
}

func TestCoordinateCoupler(t *testing.T) {
	left := NewBody("left", 1, 1)
	right := NewBody("right", 1, 1)
	j1 := NewPinJoint("j1", "ground", "left")
	j2 := NewPinJoint("j2", "ground", "right")
	j1.Coordinate.DefaultValue = 0.1
	coupler := NewCoordinateCoupler("coupler", "j1_angle", "j2_angle", 5)
	root := NewGroup("model", NewGround("ground"), left, right, j1, j2, coupler)
	s := build(t, root)
	realize(t, root, s, engine.StageAcceleration)

	tau, err := coupler.Torque(s)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(tau+0.5) > 1e-12 {
		t.Errorf("expected coupler torque -0.5, got %f", tau)
	}
	a2, _ := j2.Coordinate.Acceleration(s)
	if math.Abs(a2-0.5) > 1e-12 {
		t.Errorf("expected right acceleration 0.5, got %f", a2)
	}
}

func TestCouplerRejectsSameCoordinate(t *testing.T) {
	r := newPendulumRig(0)
	r.root.Add(NewCoordinateCoupler("coupler", "hinge_angle", "hinge_angle", 1))
	if err := component.FinalizeFromProperties(r.root); err != nil {
		t.Fatal(err)
	}
	err := component.Connect(r.root)
	if !errors.Is(err, component.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestWorkMeter(t *testing.T) {
	r := newPendulumRig(0.2)
	r.joint.Coordinate.DefaultSpeed = 1
	spring := NewTorsionalSpring("spring", "hinge_angle", 10)
	meter := NewWorkMeter("meter", "spring/power")
	meter.InitialWork = 3
	r.root.Add(spring)
	r.root.Add(meter)
	s := build(t, r.root)

	work, err := component.OutputValue[float64](meter, s, "work")
	if err == nil {
		t.Errorf("expected work output unavailable before Model, got %f", work)
	}
	if err := component.ComputeStateVariableDerivatives(r.root, s); err != nil {
		t.Fatal(err)
	}
	work, err = component.OutputValue[float64](meter, s, "work")
	if err != nil {
		t.Fatal(err)
	}
	if work != 3 {
		t.Errorf("expected work 3, got %f", work)
	}
	d, err := meter.GetStateVariableDerivativeValue(s, "work")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d+2) > 1e-12 {
		t.Errorf("expected work rate -2, got %f", d)
	}
}

func TestPIDController(t *testing.T) {
	r := newPendulumRig(0.2)
	r.joint.Coordinate.DefaultSpeed = 0.5
	pid := NewPIDController("pid", "hinge_angle", 10, 2, 1, 0.5)
	r.root.Add(pid)
	s := build(t, r.root)
	if err := pid.SetStateVariableValue(s, "integral_error", 1); err != nil {
		t.Fatal(err)
	}
	realize(t, r.root, s, engine.StageVelocity)

	tau, err := component.OutputValue[float64](pid, s, "torque")
	if err != nil {
		t.Fatal(err)
	}
	// 10*0.3 + 2*1 - 1*0.5
	if math.Abs(tau-4.5) > 1e-12 {
		t.Errorf("expected torque 4.5, got %f", tau)
	}

	if err := component.ComputeStateVariableDerivatives(r.root, s); err != nil {
		t.Fatal(err)
	}
	d, err := pid.GetStateVariableDerivativeValue(s, "integral_error")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-0.3) > 1e-12 {
		t.Errorf("expected integral rate 0.3, got %f", d)
	}

	pid.MaxTorque = 1
	tau, _ = pid.Torque(s)
	if tau != 1 {
		t.Errorf("expected clamped torque 1, got %f", tau)
	}
}

func TestPIDRejectsNegativeGain(t *testing.T) {
	r := newPendulumRig(0)
	r.root.Add(NewPIDController("pid", "hinge_angle", -1, 0, 0, 0))
	err := component.FinalizeFromProperties(r.root)
	if !errors.Is(err, component.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestBodyValidation(t *testing.T) {
	tests := []struct {
		name   string
		mass   float64
		length float64
	}{
		{"zero mass", 0, 1},
		{"negative length", 1, -1},
		{"nan mass", math.NaN(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewGroup("model", NewBody("b", tt.mass, tt.length))
			err := component.FinalizeFromProperties(root)
			if !errors.Is(err, component.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestParams(t *testing.T) {
	var p Parameterized = NewBody("b", 1, 1)
	if err := p.SetParam("mass", 4); err != nil {
		t.Fatal(err)
	}
	if p.Params()["mass"] != 4 {
		t.Errorf("expected mass 4, got %f", p.Params()["mass"])
	}
	if err := p.SetParam("colour", 1); err == nil {
		t.Error("expected unknown param error")
	}
}

func TestDecorations(t *testing.T) {
	r := newPendulumRig(0)
	s := build(t, r.root)
	realize(t, r.root, s, engine.StagePosition)

	fixed, err := component.GenerateDecorations(r.root, true, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(fixed) != 1 || fixed[0].Kind != component.DecorationFrame {
		t.Errorf("expected one fixed frame decoration, got %v", fixed)
	}
	moving, err := component.GenerateDecorations(r.root, false, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(moving) != 2 {
		t.Errorf("expected sphere and line, got %v", moving)
	}
}
