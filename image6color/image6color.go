// Package image6color provides a 6-color indexed image format for ACeP-class
// e-paper panels.
//
// The panel accepts exactly six colors (black, white, red, green, blue and
// yellow) and stores pixels in horizontal nibble packing where each byte
// contains 2 pixels. High nibble represents the left pixel, low nibble
// represents the right pixel. The nibble value is the palette index, not a
// controller color code; drivers translate indices on the way out.
package image6color

import (
	"image"
	"image/color"
)

// Palette is the fixed panel palette in declaration order. Index 0 is black,
// 1 white, 2 red, 3 green, 4 blue, 5 yellow. It must not be mutated.
var Palette = []color.RGBA{
	{0x00, 0x00, 0x00, 0xFF}, // black
	{0xFF, 0xFF, 0xFF, 0xFF}, // white
	{0xFF, 0x00, 0x00, 0xFF}, // red
	{0x00, 0xFF, 0x00, 0xFF}, // green
	{0x00, 0x00, 0xFF, 0xFF}, // blue
	{0xFF, 0xFF, 0x00, 0xFF}, // yellow
}

// NearestIndex returns the palette index minimizing squared Euclidean RGB
// distance to the given channels. Channels are float-valued and may lie
// outside [0,255] (error diffusion pushes them there transiently). Ties are
// broken by palette declaration order: the first minimal match wins.
func NearestIndex(r, g, b float64) int {
	best := 0
	bestDist := distSq(r, g, b, Palette[0])
	for i := 1; i < len(Palette); i++ {
		if d := distSq(r, g, b, Palette[i]); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

func distSq(r, g, b float64, c color.RGBA) float64 {
	dr := r - float64(c.R)
	dg := g - float64(c.G)
	db := b - float64(c.B)
	return dr*dr + dg*dg + db*db
}

// Index is a palette index in [0, 5] wrapped as a color.Color.
type Index uint8

// RGBA returns the palette entry for the index. Out-of-range indices map to
// black.
func (c Index) RGBA() (r, g, b, a uint32) {
	if int(c) >= len(Palette) {
		c = 0
	}
	p := Palette[c]
	return uint32(p.R) * 0x101, uint32(p.G) * 0x101, uint32(p.B) * 0x101, 0xFFFF
}

// toIndex converts any color.Color to the nearest palette Index.
func toIndex(c color.Color) color.Color {
	if i, ok := c.(Index); ok {
		return i
	}
	r, g, b, _ := c.RGBA()
	// RGBA returns 16-bit values; the palette is defined over 8-bit channels.
	return Index(NearestIndex(float64(r>>8), float64(g>>8), float64(b>>8)))
}

// Model converts colors to the nearest palette Index.
var Model = color.ModelFunc(toIndex)

// Indexed is a 6-color image where pixels are palette indices stored in
// horizontal nibble packing. Each byte contains 2 pixels: high nibble = left
// pixel, low nibble = right pixel.
type Indexed struct {
	Pix    []byte          // Pixel data (2 pixels per byte)
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// NewIndexed creates a new Indexed image with the specified bounds. The width
// must be even (since 2 pixels per byte).
func NewIndexed(r image.Rectangle) *Indexed {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		return &Indexed{Rect: r}
	}
	if w%2 != 0 {
		panic("image6color: width must be even")
	}

	stride := w / 2
	return &Indexed{
		Pix:    make([]byte, stride*h),
		Stride: stride,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Indexed) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *Indexed) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
// It implements the image.Image interface.
func (p *Indexed) At(x, y int) color.Color {
	return p.IndexAt(x, y)
}

// IndexAt returns the palette Index of the pixel at (x, y).
func (p *Indexed) IndexAt(x, y int) Index {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return 0
	}
	offset, shift := p.pixOffset(x, y)
	return Index((p.Pix[offset] >> shift) & 0x0F)
}

// Set sets the color of the pixel at (x, y), quantizing through Model.
func (p *Indexed) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.setNibble(x, y, uint8(Model.Convert(c).(Index)))
}

// SetIndex sets the palette index of the pixel at (x, y).
// This is faster than Set() as it doesn't require color conversion.
func (p *Indexed) SetIndex(x, y int, c Index) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.setNibble(x, y, uint8(c))
}

func (p *Indexed) setNibble(x, y int, v uint8) {
	offset, shift := p.pixOffset(x, y)
	p.Pix[offset] = (p.Pix[offset] &^ (0x0F << shift)) | ((v & 0x0F) << shift)
}

// pixOffset returns the byte offset and bit shift for the pixel at (x, y).
// Memory layout: each byte contains 2 pixels horizontally.
// High nibble (shift 4) = even x (left pixel)
// Low nibble (shift 0) = odd x (right pixel)
func (p *Indexed) pixOffset(x, y int) (offset int, shift uint) {
	offset = (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)/2
	shift = uint(4 * (1 - (x & 1)))
	return
}
