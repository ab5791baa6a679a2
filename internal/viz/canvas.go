package viz

import (
	"math"
	"strings"

	"github.com/san-kum/gravtree/internal/body"
)

const blankCell = rune(0x2800)

// dotBits[row][col] is the braille bit of each dot in a 2x4 cell.
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille raster: every character cell holds 2x4 dots, so a
// Width x Height canvas addresses (2*Width) x (4*Height) dots.
type Canvas struct {
	Width, Height int
	cells         []rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([]rune, w*h)}
	c.Clear()
	return c
}

// dot locates the cell and bit of dot (x, y); ok is false off the canvas.
func (c *Canvas) dot(x, y int) (idx int, bit rune, ok bool) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return 0, 0, false
	}
	return (y/4)*c.Width + x/2, dotBits[y%4][x%2], true
}

func (c *Canvas) Set(x, y int) {
	if i, bit, ok := c.dot(x, y); ok {
		c.cells[i] |= bit
	}
}

func (c *Canvas) Unset(x, y int) {
	if i, bit, ok := c.dot(x, y); ok {
		c.cells[i] &^= bit
	}
}

// At returns the character in cell (col, row).
func (c *Canvas) At(col, row int) rune {
	return c.cells[row*c.Width+col]
}

func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = blankCell
	}
}

// DrawLine sets the dots of a Bresenham line between two dots.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, sx := abs(x1-x0), sign(x1-x0)
	dy, sy := -abs(y1-y0), sign(y1-y0)
	e := dx + dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// DrawRect outlines the box with corners (x0, y0) and (x1, y1).
func (c *Canvas) DrawRect(x0, y0, x1, y1 int) {
	c.DrawLine(x0, y0, x1, y0)
	c.DrawLine(x1, y0, x1, y1)
	c.DrawLine(x1, y1, x0, y1)
	c.DrawLine(x0, y1, x0, y0)
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(len(c.cells)*3 + c.Height)
	for row := 0; row < c.Height; row++ {
		b.WriteString(string(c.cells[row*c.Width : (row+1)*c.Width]))
		b.WriteByte('\n')
	}
	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

// Viewport is the square of world space shown on the canvas.
type Viewport struct {
	CX, CY float64
	Span   float64
}

// FitViewport centres on the bodies and spans their extent plus a margin.
func FitViewport(bs []*body.Body) Viewport {
	if len(bs) == 0 {
		return Viewport{Span: 1}
	}
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, b := range bs {
		xmin, xmax = math.Min(xmin, b.PX), math.Max(xmax, b.PX)
		ymin, ymax = math.Min(ymin, b.PY), math.Max(ymax, b.PY)
	}
	span := 1.1 * math.Max(xmax-xmin, ymax-ymin)
	if !(span > 0) || math.IsInf(span, 0) {
		span = 1
	}
	return Viewport{CX: (xmin + xmax) / 2, CY: (ymin + ymax) / 2, Span: span}
}

func (v Viewport) Zoom(factor float64) Viewport {
	v.Span /= factor
	return v
}

// Project maps world coordinates to canvas sub-pixels, y up.
func (v Viewport) Project(c *Canvas, x, y float64) (int, int) {
	w, h := float64(c.Width*2), float64(c.Height*4)
	scale := math.Min(w, h) / v.Span
	px := w/2 + (x-v.CX)*scale
	py := h/2 - (y-v.CY)*scale
	return int(math.Floor(px)), int(math.Floor(py))
}

// PlotBodies sets one dot per body inside the viewport.
func (c *Canvas) PlotBodies(v Viewport, bs []*body.Body) {
	for _, b := range bs {
		x, y := v.Project(c, b.PX, b.PY)
		c.Set(x, y)
	}
}
