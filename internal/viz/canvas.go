package viz

import (
	"math"
	"strings"

	"github.com/san-kum/simtree/internal/component"
)

// Braille cells hold 2x4 dots; pixelMap gives the bit for each.
//
//	1 4
//	2 5
//	3 6
//	7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a grid of braille cells addressed in sub-pixels: (Width*2) by
// (Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) cell(x, y int) (row, col int, ok bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	col, row = x/2, y/4
	return row, col, col < c.Width && row < c.Height
}

func (c *Canvas) Set(x, y int) {
	if row, col, ok := c.cell(x, y); ok {
		c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
	}
}

func (c *Canvas) IsSet(x, y int) bool {
	row, col, ok := c.cell(x, y)
	return ok && c.Grid[row][col]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawDisc fills a disc of radius r sub-pixels.
func (c *Canvas) DrawDisc(cx, cy, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				c.Set(cx+dx, cy+dy)
			}
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Viewport maps planar world coordinates onto a canvas with the world origin
// at the center and y pointing up.
type Viewport struct {
	cx, cy int
	scale  float64
}

// NewViewport fits a square of half-width extent onto c.
func NewViewport(c *Canvas, extent float64) Viewport {
	if extent <= 0 {
		extent = 1
	}
	pw, ph := c.Width*2, c.Height*4
	return Viewport{
		cx:    pw / 2,
		cy:    ph / 2,
		scale: float64(min(pw, ph)-2) / (2 * extent),
	}
}

func (v Viewport) Project(x, y float64) (int, int) {
	return v.cx + int(math.Round(x*v.scale)), v.cy - int(math.Round(y*v.scale))
}

// Extent is the largest coordinate magnitude among decorations, padded so
// that a swinging chain stays on screen.
func Extent(decos []component.Decoration) float64 {
	e := 0.0
	for _, d := range decos {
		e = max(e, math.Abs(d.X), math.Abs(d.Y), math.Hypot(d.X, d.Y)+d.Radius)
		if d.Kind == component.DecorationLine {
			e = max(e, math.Hypot(d.X2, d.Y2))
		}
	}
	return 1.1 * max(e, 0.5)
}

// DrawDecorations draws each decoration through v.
func (c *Canvas) DrawDecorations(v Viewport, decos []component.Decoration) {
	for _, d := range decos {
		x, y := v.Project(d.X, d.Y)
		switch d.Kind {
		case component.DecorationLine:
			x2, y2 := v.Project(d.X2, d.Y2)
			c.DrawLine(x, y, x2, y2)
		case component.DecorationSphere:
			c.DrawDisc(x, y, max(1, int(d.Radius*v.scale)))
		case component.DecorationFrame:
			r := max(1, int(d.Radius*v.scale))
			c.DrawLine(x-r, y, x+r, y)
			c.DrawLine(x, y, x, y+r/2)
		}
	}
}
