// Package canvas provides the pixel surface an engine renders into once per
// frame. A canvas is exclusively owned by a single execution context: the
// host thread for a directly-hosted engine, or the worker for a remote one.
// The engine only ever writes pixels; reading them back is a host concern
// (snapshots).
package canvas

import (
	"image"
	"image/color"
	"image/png"
	"io"
)

// Canvas is a named drawable target with a fixed background color.
type Canvas struct {
	width      int
	height     int
	background color.RGBA
	img        *image.RGBA
}

// New creates a canvas of the given size with a black background.
func New(width, height int) *Canvas {
	return &Canvas{
		width:      width,
		height:     height,
		background: color.RGBA{A: 0xff},
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int { return c.width }

// Height returns the canvas height in pixels.
func (c *Canvas) Height() int { return c.height }

// Background returns the color Clear fills with.
func (c *Canvas) Background() color.RGBA { return c.background }

// SetBackground changes the color Clear fills with.
func (c *Canvas) SetBackground(col color.RGBA) { c.background = col }

// Resize reallocates the pixel buffer. Previous contents are discarded.
func (c *Canvas) Resize(width, height int) {
	if width == c.width && height == c.height {
		return
	}
	c.width = width
	c.height = height
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Clear fills the whole surface with the background color.
func (c *Canvas) Clear() {
	c.FillRect(0, 0, c.width, c.height, c.background)
}

// SetPixel writes a single pixel. Out-of-bounds coordinates are ignored.
func (c *Canvas) SetPixel(x, y int, col color.RGBA) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return
	}
	c.img.SetRGBA(x, y, col)
}

// FillRect fills a rectangle, clipped to the canvas bounds.
func (c *Canvas) FillRect(x, y, w, h int, col color.RGBA) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, c.width), min(y+h, c.height)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			c.img.SetRGBA(px, py, col)
		}
	}
}

// Image returns the live pixel buffer. Callers must not hold the reference
// across a Resize.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Snapshot returns a deep copy of the current pixels.
func (c *Canvas) Snapshot() *image.RGBA {
	out := image.NewRGBA(c.img.Rect)
	copy(out.Pix, c.img.Pix)
	return out
}

// EncodePNG writes the current pixels as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return png.Encode(w, c.img)
}
