// Package render draws the fallback dashboard shown when no generated image
// is supplied: date header, current weather and the next few calendar events
// on a white canvas sized for the color panel.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/inkduo/inkduo/frame"
)

// MaxListedEvents limits the event list to what fits the layout.
const MaxListedEvents = 6

var (
	ink       = color.RGBA{0x00, 0x00, 0x00, 0xFF}
	accent    = color.RGBA{0x00, 0x00, 0xFF, 0xFF}
	eventTint = color.RGBA{0x00, 0xFF, 0x00, 0xFF}
)

// Dashboard renders a w x h dashboard for the given records. now supplies the
// date header. The result is full-color; the caller dithers it down to the
// panel palette.
func Dashboard(w, h int, weather frame.Weather, events []frame.Event, now time.Time) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	text(img, 20, 30, now.Format("Monday, January 2, 2006"), ink)

	text(img, 20, 70, fmt.Sprintf("%.0f C  %s", weather.Temperature, weather.Description), accent)
	if weather.Location != "" {
		text(img, 20, 90, weather.Location, ink)
	}

	line(img, 20, 110, w-20, ink)

	text(img, 20, 140, "Upcoming events:", ink)
	y := 170
	listed := 0
	for _, e := range events {
		if !e.Valid || listed == MaxListedEvents || y > h-30 {
			break
		}
		text(img, 20, y, "- "+e.Title, eventTint)
		if e.Location != "" {
			text(img, 40, y+16, e.Location, ink)
			y += 16
		}
		if e.StartTime != 0 {
			text(img, 40, y+16, time.Unix(int64(e.StartTime), 0).Format("01/02 15:04"), ink)
			y += 16
		}
		y += 30
		listed++
	}
	if listed == 0 {
		text(img, 20, 170, "No upcoming events", ink)
	}

	return img
}

func text(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func line(img *image.RGBA, x0, y, x1 int, c color.RGBA) {
	for x := x0; x <= x1 && x < img.Bounds().Max.X; x++ {
		img.SetRGBA(x, y, c)
		img.SetRGBA(x, y+1, c)
	}
}
