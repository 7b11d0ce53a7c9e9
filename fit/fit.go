// Package fit adapts arbitrary source images to the fixed panel geometry.
//
// Sources are first center-cropped to the target aspect ratio, then resized
// with Lanczos resampling, so content is never stretched.
package fit

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/gift"
)

// ErrBadGeometry reports a degenerate source or target geometry. It is fatal
// for the invocation only; callers skip the cycle and retry on the next tick.
var ErrBadGeometry = errors.New("fit: bad geometry")

// Frame returns a copy of src with exactly the given target dimensions.
//
// If the source is relatively wider than the target, width is cropped
// symmetrically from the center to match the target aspect ratio, otherwise
// height is. The cropped region is then resized to (w, h).
func Frame(src image.Image, w, h int) (image.Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrBadGeometry, w, h)
	}
	srcW, srcH := src.Bounds().Dx(), src.Bounds().Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("%w: source %dx%d", ErrBadGeometry, srcW, srcH)
	}

	cropW, cropH := srcW, srcH
	// Compare aspect ratios without division: srcW/srcH > w/h.
	if srcW*h > w*srcH {
		cropW = srcH * w / h
		if cropW < 1 {
			cropW = 1
		}
	} else if srcW*h < w*srcH {
		cropH = srcW * h / w
		if cropH < 1 {
			cropH = 1
		}
	}

	g := gift.New(
		gift.CropToSize(cropW, cropH, gift.CenterAnchor),
		gift.Resize(w, h, gift.LanczosResampling),
	)
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst, nil
}
