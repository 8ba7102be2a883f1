// Package export writes model geometry and trajectories as SVG.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/simtree/internal/component"
)

const (
	background = "#0a0a0a"
	stroke     = "#00ccff"
	fill       = "#00ff88"
	fixedColor = "#888899"
)

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b *bounds) add(x, y float64) {
	b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
	b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
}

// pad widens b by a tenth of its range, or to a unit box when degenerate.
func (b *bounds) pad() {
	rangeX := b.maxX - b.minX
	rangeY := b.maxY - b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.1
	b.maxX += rangeX * 0.1
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
}

func emptyBounds() bounds {
	return bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)
}

// Decorations draws decorations in world coordinates, y up, scaled
// uniformly to fit a size by size image.
func Decorations(w io.Writer, decos []component.Decoration, size int) error {
	if len(decos) == 0 {
		return fmt.Errorf("no decorations to draw")
	}
	b := emptyBounds()
	for _, d := range decos {
		b.add(d.X-d.Radius, d.Y-d.Radius)
		b.add(d.X+d.Radius, d.Y+d.Radius)
		if d.Kind == component.DecorationLine {
			b.add(d.X2, d.Y2)
		}
	}
	b.pad()
	span := math.Max(b.maxX-b.minX, b.maxY-b.minY)
	scale := float64(size) / span
	cx, cy := (b.minX+b.maxX)/2, (b.minY+b.maxY)/2
	px := func(x float64) float64 { return float64(size)/2 + (x-cx)*scale }
	py := func(y float64) float64 { return float64(size)/2 - (y-cy)*scale }

	var sb strings.Builder
	header(&sb, size, size)
	for _, d := range decos {
		switch d.Kind {
		case component.DecorationLine:
			fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"><title>%s</title></line>
`, px(d.X), py(d.Y), px(d.X2), py(d.Y2), stroke, d.Owner)
		case component.DecorationSphere:
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"><title>%s</title></circle>
`, px(d.X), py(d.Y), math.Max(d.Radius*scale, 1), fill, d.Owner)
		case component.DecorationFrame:
			r := math.Max(d.Radius*scale, 2)
			fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%s</title></rect>
`, px(d.X)-r, py(d.Y)-r/4, 2*r, r/2, fixedColor, d.Owner)
		}
	}
	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// Trajectory draws the path through (xs[i], ys[i]) as a single polyline.
func Trajectory(w io.Writer, xs, ys []float64, width, height int, strokeColor string) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("trajectory: %d x values for %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return fmt.Errorf("trajectory needs at least 2 points, got %d", len(xs))
	}
	if strokeColor == "" {
		strokeColor = stroke
	}

	b := emptyBounds()
	for i := range xs {
		b.add(xs[i], ys[i])
	}
	b.pad()
	rangeX := b.maxX - b.minX
	rangeY := b.maxY - b.minY

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)
	for i := range xs {
		x := (xs[i] - b.minX) / rangeX * float64(width)
		y := float64(height) - (ys[i]-b.minY)/rangeY*float64(height)
		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
