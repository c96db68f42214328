package engine

import (
	"image/color"

	"github.com/plus3/keel/canvas"
)

// Dot is a canvas-visible probe that chases the engine pointer: two linear
// lerps track the pointer's x/y, and the render phase paints a filled square
// at the interpolated position. It is the illustrative component for how a
// behavior integrates with the tick, input, and paint contracts.
type Dot struct {
	name   string
	engine *Engine
	x, y   float64
	lx, ly *Lerp
	size   int
	col    color.RGBA
}

// NewDot creates a dot of the given size chasing the pointer at speed
// (pixels/s) from a starting position.
func NewDot(name string, x, y float64, size int, speed float64, col color.RGBA) *Dot {
	d := &Dot{name: name, x: x, y: y, size: size, col: col}
	d.lx = NewLerp(name+".x", Float64Var(&d.x), LerpLinear, speed)
	d.ly = NewLerp(name+".y", Float64Var(&d.y), LerpLinear, speed)
	return d
}

// Bind implements Binder; the dot reads pointer state from its engine.
func (d *Dot) Bind(e *Engine) { d.engine = e }

// Update retargets both axes at the current pointer position and steps them.
func (d *Dot) Update(dt float64) bool {
	if d.engine != nil {
		p := d.engine.Pointer()
		d.lx.SetTarget(p.X)
		d.ly.SetTarget(p.Y)
	}
	movedX := d.lx.Update(dt)
	movedY := d.ly.Update(dt)
	return movedX || movedY
}

// Paint implements Painter.
func (d *Dot) Paint(c *canvas.Canvas) {
	half := d.size / 2
	c.FillRect(int(d.x)-half, int(d.y)-half, d.size, d.size, d.col)
}

// Values implements Reporter.
func (d *Dot) Values() map[string]float64 {
	return map[string]float64{
		d.name + ".x": d.x,
		d.name + ".y": d.y,
	}
}
