package analysis

import (
	"fmt"
	"math"
	"strings"
)

type Point struct {
	X, Y float64
}

// Portrait is a 2D phase portrait of two series sampled together.
type Portrait struct {
	XName, YName string
	Points       []Point
}

func NewPortrait(xName, yName string, xs, ys []float64) (*Portrait, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("portrait %s/%s: %d x values for %d y values", xName, yName, len(xs), len(ys))
	}
	p := &Portrait{XName: xName, YName: yName, Points: make([]Point, len(xs))}
	for i := range xs {
		p.Points[i] = Point{X: xs[i], Y: ys[i]}
	}
	return p, nil
}

// ASCII draws the portrait on a width by height character grid, with axes
// where they cross the visible area.
func (p *Portrait) ASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	for _, pt := range p.Points {
		col := int((pt.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			grid[row][col] = '•'
		}
	}

	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if grid[row][col] == ' ' {
				grid[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if grid[row][col] == ' ' {
				grid[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s vs %s\n", p.YName, p.XName)
	for _, row := range grid {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

// Crossings returns the interpolated times at which values rises through
// level.
func Crossings(times, values []float64, level float64) []float64 {
	var out []float64
	for i := 1; i < len(values) && i < len(times); i++ {
		prev, curr := values[i-1], values[i]
		if prev < level && curr >= level {
			frac := (level - prev) / (curr - prev)
			out = append(out, times[i-1]+frac*(times[i]-times[i-1]))
		}
	}
	return out
}

// Period is the mean interval between upward crossings of the series mean.
func Period(times, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrTooShort
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	c := Crossings(times, values, mean)
	if len(c) < 2 {
		return 0, fmt.Errorf("%w: %d crossings", ErrTooShort, len(c))
	}
	return (c[len(c)-1] - c[0]) / float64(len(c)-1), nil
}
