package viz

import (
	"math"
	"strings"

	"github.com/san-kum/nboxsim/internal/detector"
)

// Braille cells hold 2x4 dots, bit layout:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a Braille pixel grid of Width x Height cells, so
// (2*Width) x (4*Height) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set turns on the dot at (x, y) in dot coordinates.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine uses Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
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

func (c *Canvas) DrawRect(x0, y0, x1, y1 int) {
	c.DrawLine(x0, y0, x1, y0)
	c.DrawLine(x1, y0, x1, y1)
	c.DrawLine(x1, y1, x0, y1)
	c.DrawLine(x0, y1, x0, y0)
}

// DrawCircle uses the midpoint algorithm. A radius below one dot sets the centre.
func (c *Canvas) DrawCircle(cx, cy, r int) {
	if r < 1 {
		c.Set(cx, cy)
		return
	}
	x, y := r, 0
	d := 1 - r
	for x >= y {
		c.Set(cx+x, cy+y)
		c.Set(cx+y, cy+x)
		c.Set(cx-y, cy+x)
		c.Set(cx-x, cy+y)
		c.Set(cx-x, cy-y)
		c.Set(cx-y, cy-x)
		c.Set(cx+y, cy-x)
		c.Set(cx+x, cy-y)
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// DrawLayout draws the moderator box cross-section in the x-y plane with each
// placement's tube as a circle of its outer radius, scaled to fit the canvas.
func (c *Canvas) DrawLayout(box detector.Box, placements []detector.Placement, types []detector.Type) {
	c.Clear()
	if box.X <= 0 || box.Y <= 0 {
		return
	}
	w, h := float64(c.Width*2-1), float64(c.Height*4-1)
	scale := math.Min(w/box.X, h/box.Y)
	ox, oy := w/2, h/2
	toDots := func(x, y float64) (int, int) {
		return int(math.Round(ox + x*scale)), int(math.Round(oy - y*scale))
	}

	x0, y0 := toDots(-box.X/2, box.Y/2)
	x1, y1 := toDots(box.X/2, -box.Y/2)
	c.DrawRect(x0, y0, x1, y1)

	radius := make(map[string]float64, len(types))
	for _, t := range types {
		radius[t.Name] = t.OuterRadius()
	}
	for _, p := range placements {
		pos := p.Position()
		cx, cy := toDots(pos.X, pos.Y)
		c.DrawCircle(cx, cy, int(math.Round(radius[p.Type]*scale)))
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
