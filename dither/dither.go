// Package dither converts full-color images into the 6-color panel palette
// using Floyd-Steinberg error diffusion.
//
// The pass is inherently sequential: each quantization depends on error
// diffused by earlier pixels in scan order, so it must not be parallelized
// across rows.
package dither

import (
	"image"

	"github.com/inkduo/inkduo/image6color"
)

// Floyd-Steinberg kernel weights, in 1/16ths.
const (
	weightRight      = 7.0 / 16.0
	weightBelowLeft  = 3.0 / 16.0
	weightBelow      = 5.0 / 16.0
	weightBelowRight = 1.0 / 16.0
)

// FloydSteinberg renders src into a palette-exact Indexed image of the same
// dimensions. Pixels are processed in row-major order; the quantization error
// of each pixel is diffused to its unprocessed neighbors (right 7/16,
// below-left 3/16, below 5/16, below-right 1/16) before the next pixel is
// quantized. Neighbors outside the image are skipped, never wrapped.
//
// The source width must be even (the nibble-packed output requires it).
func FloydSteinberg(src image.Image) *image6color.Indexed {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image6color.NewIndexed(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}

	// Float working buffer; channels may transiently leave [0,255] as error
	// accumulates.
	buf := make([]float64, w*h*3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			buf[i] = float64(r >> 8)
			buf[i+1] = float64(g >> 8)
			buf[i+2] = float64(b >> 8)
			i += 3
		}
	}

	diffuse := func(x, y int, er, eg, eb, weight float64) {
		if x < 0 || x >= w || y >= h {
			return
		}
		j := (y*w + x) * 3
		buf[j] += er * weight
		buf[j+1] += eg * weight
		buf[j+2] += eb * weight
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			j := (y*w + x) * 3
			oldR, oldG, oldB := buf[j], buf[j+1], buf[j+2]

			idx := image6color.NearestIndex(oldR, oldG, oldB)
			dst.SetIndex(x, y, image6color.Index(idx))

			c := image6color.Palette[idx]
			er := oldR - float64(c.R)
			eg := oldG - float64(c.G)
			eb := oldB - float64(c.B)

			diffuse(x+1, y, er, eg, eb, weightRight)
			diffuse(x-1, y+1, er, eg, eb, weightBelowLeft)
			diffuse(x, y+1, er, eg, eb, weightBelow)
			diffuse(x+1, y+1, er, eg, eb, weightBelowRight)
		}
	}

	return dst
}
