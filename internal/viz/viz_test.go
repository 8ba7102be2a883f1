package viz

import (
	"errors"
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/dynamo"
	"github.com/san-kum/simtree/internal/elements"
	"github.com/san-kum/simtree/internal/integrators"
	"github.com/san-kum/simtree/internal/model"
)

func pendulum(t *testing.T, angle float64) (*model.Model, *model.Integrand, dynamo.State) {
	t.Helper()
	m := model.New("pendulum")
	hinge := elements.NewPinJoint("hinge", "ground", "bob")
	hinge.Coordinate.DefaultValue = angle
	m.Add(elements.NewGround("ground"), elements.NewBody("bob", 1, 1), hinge)
	s, err := m.InitSystem()
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	in, err := m.NewIntegrand(s)
	if err != nil {
		t.Fatalf("integrand failed: %v", err)
	}
	x0, err := in.Initial()
	if err != nil {
		t.Fatalf("initial failed: %v", err)
	}
	return m, in, x0
}

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Set(3, 5)
	if !c.IsSet(3, 5) {
		t.Error("expected pixel (3,5) set")
	}
	if c.IsSet(2, 5) {
		t.Error("expected pixel (2,5) clear")
	}
	c.Set(-1, 0)
	c.Set(8, 0)
	c.Set(0, 8)
	if got := c.Grid[1][1]; got != rune(blank|pixelMap[1][1]) {
		t.Errorf("expected only one dot in cell, got %U", got)
	}
	c.Clear()
	if c.IsSet(3, 5) {
		t.Error("expected clear canvas")
	}
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawLine(0, 0, 19, 19)
	for _, p := range [][2]int{{0, 0}, {10, 10}, {19, 19}} {
		if !c.IsSet(p[0], p[1]) {
			t.Errorf("expected (%d,%d) on line", p[0], p[1])
		}
	}
	if lines := strings.Count(c.String(), "\n"); lines != 5 {
		t.Errorf("expected 5 rows, got %d", lines)
	}
}

func TestViewportProject(t *testing.T) {
	c := NewCanvas(20, 10)
	v := NewViewport(c, 1)

	x0, y0 := v.Project(0, 0)
	if x0 != 20 || y0 != 20 {
		t.Errorf("expected origin at (20,20), got (%d,%d)", x0, y0)
	}
	_, yDown := v.Project(0, -1)
	if yDown <= y0 {
		t.Errorf("expected negative y below origin, got %d", yDown)
	}
	xRight, _ := v.Project(1, 0)
	if xRight <= x0 || xRight >= 40 {
		t.Errorf("expected x=1 right of origin and on canvas, got %d", xRight)
	}
}

func TestExtent(t *testing.T) {
	decos := []component.Decoration{
		{Kind: component.DecorationLine, X: 0, Y: 0, X2: 0, Y2: -2},
		{Kind: component.DecorationSphere, X: 0, Y: -2, Radius: 0.1},
	}
	if e := Extent(decos); math.Abs(e-1.1*2.1) > 1e-12 {
		t.Errorf("expected extent %f, got %f", 1.1*2.1, e)
	}
	if e := Extent(nil); e != 0.55 {
		t.Errorf("expected minimum extent 0.55, got %f", e)
	}
}

func TestRenderTree(t *testing.T) {
	m, _, _ := pendulum(t, 0.3)
	out := RenderTree(DefaultStyles, m, TreeOptions{Connectors: true, Outputs: true})

	for _, want := range []string{"pendulum", "hinge", "hinge_angle", "PinJoint", "parent_frame: ground", "gravity_torque", "└── "} {
		if !strings.Contains(out, want) {
			t.Errorf("expected tree to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "child_frame") == false {
		t.Error("expected child_frame connector listed")
	}
}

func TestRenderValues(t *testing.T) {
	out := RenderValues(DefaultStyles, "state", []string{"a", "b"}, []float64{1.5})
	if !strings.Contains(out, "1.5") {
		t.Errorf("expected value in output:\n%s", out)
	}
	if !strings.Contains(out, "-") {
		t.Errorf("expected placeholder for missing value:\n%s", out)
	}
}

func TestPlot(t *testing.T) {
	out := Plot("angle", []float64{0, 1, 0, -1, 0}, 20, 5)
	if !strings.Contains(out, "angle") {
		t.Errorf("expected caption in plot:\n%s", out)
	}
	if out := Plot("angle", nil, 20, 5); !strings.Contains(out, "no data") {
		t.Errorf("expected no data, got %q", out)
	}
	if out := PlotMany("both", [][]float64{{0, 1}, {1, 0}}, 20, 5); !strings.Contains(out, "both") {
		t.Errorf("expected caption in plot:\n%s", out)
	}
}

func TestSparkline(t *testing.T) {
	out := SparklineChart([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8)
	if got := len([]rune(out)); got != 8 {
		t.Errorf("expected 8 runes, got %d", got)
	}
	if []rune(out)[0] != '▁' || []rune(out)[7] != '█' {
		t.Errorf("expected rising sparkline, got %s", out)
	}
}

func TestThemes(t *testing.T) {
	if _, ok := GetTheme("nope"); ok {
		t.Error("expected unknown theme")
	}
	names := ThemeNames()
	seen := map[string]bool{}
	name := names[0]
	for range names {
		seen[name] = true
		name = NextTheme(name).Name
	}
	if len(seen) != len(names) || name != names[0] {
		t.Errorf("expected NextTheme to cycle through %v", names)
	}
}

func TestWatchSteps(t *testing.T) {
	_, in, x0 := pendulum(t, 0.5)
	integ, err := integrators.New("rk4")
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWatch(in, integ, x0, WatchConfig{Title: "pendulum", Dt: 0.01, StepsPerFrame: 5})
	if err != nil {
		t.Fatalf("new watch failed: %v", err)
	}

	next, _ := w.Update(TickMsg{})
	w = next.(Watch)
	if math.Abs(w.Time()-0.05) > 1e-12 {
		t.Errorf("expected t=0.05, got %f", w.Time())
	}
	if w.State()[0] >= x0[0] {
		t.Errorf("expected angle to decrease from %f, got %f", x0[0], w.State()[0])
	}

	next, _ = w.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	w = next.(Watch)
	if w.Running() {
		t.Error("expected paused")
	}
	next, _ = w.Update(TickMsg{})
	w = next.(Watch)
	if math.Abs(w.Time()-0.05) > 1e-12 {
		t.Errorf("expected paused time 0.05, got %f", w.Time())
	}

	next, _ = w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	w = next.(Watch)
	if w.Time() != 0 || w.State()[0] != x0[0] {
		t.Errorf("expected reset to initial state, got t=%f x=%v", w.Time(), w.State())
	}

	if view := w.View(); !strings.Contains(view, "PENDULUM") || !strings.Contains(view, "PAUSED") {
		t.Errorf("unexpected view:\n%s", view)
	}
}

func TestWatchInvalidConfig(t *testing.T) {
	_, in, x0 := pendulum(t, 0.5)
	integ, _ := integrators.New("euler")

	if _, err := NewWatch(in, integ, x0, WatchConfig{Dt: 0}); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected invalid config, got %v", err)
	}
	if _, err := NewWatch(in, integ, x0[:1], WatchConfig{Dt: 0.01}); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}
