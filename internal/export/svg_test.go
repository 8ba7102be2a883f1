package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/san-kum/simtree/internal/component"
)

func TestDecorations(t *testing.T) {
	decos := []component.Decoration{
		{Kind: component.DecorationFrame, Owner: "/m/ground", Radius: 0.1, Fixed: true},
		{Kind: component.DecorationLine, Owner: "/m/hinge", X2: 0.5, Y2: -0.8},
		{Kind: component.DecorationSphere, Owner: "/m/bob", X: 0.5, Y: -0.8, Radius: 0.08},
	}
	var buf bytes.Buffer
	if err := Decorations(&buf, decos, 200); err != nil {
		t.Fatalf("decorations failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`width="200"`, "<line", "<circle", "<rect x=", "/m/bob", "</svg>"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in svg:\n%s", want, out)
		}
	}

	if err := Decorations(&buf, nil, 200); err == nil {
		t.Error("expected error for no decorations")
	}
}

func TestTrajectory(t *testing.T) {
	var buf bytes.Buffer
	err := Trajectory(&buf, []float64{0, 1, 2}, []float64{0, 1, 0}, 100, 50, "")
	if err != nil {
		t.Fatalf("trajectory failed: %v", err)
	}
	out := buf.String()
	if strings.Count(out, " L") != 2 {
		t.Errorf("expected 2 line segments:\n%s", out)
	}
	if !strings.Contains(out, stroke) {
		t.Error("expected default stroke color")
	}

	tests := []struct {
		name   string
		xs, ys []float64
	}{
		{"mismatch", []float64{0, 1}, []float64{0}},
		{"single point", []float64{0}, []float64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Trajectory(&buf, tt.xs, tt.ys, 10, 10, "red"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
