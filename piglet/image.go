package piglet

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/nf/piglet/chip8"
)

var palette = color.Palette{
	color.RGBA{0x10, 0x14, 0x10, 0xff}, // off
	color.RGBA{0xa0, 0xe0, 0x90, 0xff}, // on
}

// frameImage returns g as a Width×Height paletted image.
func frameImage(g *chip8.Grid) *image.Paletted {
	m := image.NewPaletted(image.Rect(0, 0, chip8.Width, chip8.Height), palette)
	copy(m.Pix, g[:])
	return m
}

// renderFrame draws g scaled to fill dst, keeping its pixels square-edged.
func renderFrame(dst *image.RGBA, g *chip8.Grid) {
	src := frameImage(g)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}
