package harness

import (
	"image"
	"image/png"
	"io"
)

func writePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
