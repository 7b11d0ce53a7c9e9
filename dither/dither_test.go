package dither

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/inkduo/inkduo/image6color"
)

// Dithered output must contain only palette colors, whatever the input.
func TestFloydSteinbergPaletteExact(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 0xFF,
			})
		}
	}

	dst := FloydSteinberg(src)
	if got := dst.Bounds(); got != src.Bounds() {
		t.Fatalf("bounds = %v, want %v", got, src.Bounds())
	}
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			if idx := dst.IndexAt(x, y); int(idx) >= len(image6color.Palette) {
				t.Fatalf("pixel (%d, %d) has index %d outside palette", x, y, idx)
			}
		}
	}
}

// Quantizing a palette-exact image changes nothing: every pixel quantizes to
// itself with zero error, so no diffusion occurs.
func TestFloydSteinbergIdempotent(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			src.SetRGBA(x, y, image6color.Palette[(x+y)%len(image6color.Palette)])
		}
	}

	dst := FloydSteinberg(src)
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			want := image6color.Index((x + y) % len(image6color.Palette))
			if got := dst.IndexAt(x, y); got != want {
				t.Errorf("pixel (%d, %d) = index %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestFloydSteinbergSinglePixelBlack(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{A: 0xFF})
	src.SetRGBA(1, 0, color.RGBA{A: 0xFF})

	dst := FloydSteinberg(src)
	if got := dst.IndexAt(0, 0); got != 0 {
		t.Errorf("black pixel quantized to index %d, want 0", got)
	}
}

// A mid-gray field has no exact palette match; diffusion must still produce a
// mix rather than a flat field, and the mix must average near the input.
func TestFloydSteinbergPreservesTone(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			src.SetRGBA(x, y, color.RGBA{0x80, 0x80, 0x80, 0xFF})
		}
	}

	dst := FloydSteinberg(src)
	counts := make(map[image6color.Index]int)
	var sumR, sumG, sumB float64
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			idx := dst.IndexAt(x, y)
			counts[idx]++
			c := image6color.Palette[idx]
			sumR += float64(c.R)
			sumG += float64(c.G)
			sumB += float64(c.B)
		}
	}
	if len(counts) < 2 {
		t.Errorf("flat mid-gray dithered to a single color %v, want a mix", counts)
	}
	n := float64(32 * 32)
	for name, avg := range map[string]float64{"R": sumR / n, "G": sumG / n, "B": sumB / n} {
		if avg < 0x60 || avg > 0xA0 {
			t.Errorf("average %s channel = %.1f, want near 0x80", name, avg)
		}
	}
}

// Diffusion moves left-edge error rightwards: a gradient must not collapse to
// a hard threshold column.
func TestFloydSteinbergGradient(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 256, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 256; x++ {
			v := uint8(x)
			src.SetRGBA(x, y, color.RGBA{v, v, v, 0xFF})
		}
	}

	dst := FloydSteinberg(src)

	// Count transitions along the middle row; a plain threshold would give
	// exactly one.
	transitions := 0
	prev := dst.IndexAt(0, 4)
	for x := 1; x < 256; x++ {
		if cur := dst.IndexAt(x, 4); cur != prev {
			transitions++
			prev = cur
		}
	}
	if transitions < 4 {
		t.Errorf("gradient row has %d transitions, want dithered mix (>= 4)", transitions)
	}
}

func TestFloydSteinbergEmptyImage(t *testing.T) {
	dst := FloydSteinberg(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if dst.Bounds().Dx() != 0 || dst.Bounds().Dy() != 0 {
		t.Errorf("empty source produced bounds %v", dst.Bounds())
	}
}
