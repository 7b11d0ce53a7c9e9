package inkduo

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/inkduo/inkduo/dither"
	"github.com/inkduo/inkduo/fit"
	"github.com/inkduo/inkduo/frame"
	"github.com/inkduo/inkduo/gate"
	"github.com/inkduo/inkduo/render"
)

// WeatherSource supplies the current weather record. Implementations are
// external collaborators (API clients); the pipeline only caches and packs
// their output.
type WeatherSource interface {
	CurrentWeather(ctx context.Context) (frame.Weather, error)
}

// CalendarSource supplies upcoming calendar events in display order.
type CalendarSource interface {
	UpcomingEvents(ctx context.Context) ([]frame.Event, error)
}

// Pipeline wires the image path (fit, dither, color panel) and the data path
// (cache gate, frame packer, bus transport) together. All methods are called
// from a single scheduling loop; the pipeline spawns no goroutines.
type Pipeline struct {
	Color    ColorSink
	Frames   FrameSink
	Weather  WeatherSource
	Calendar CalendarSource

	// Fallbacks receive the cycle's output when the primary sink fails, so a
	// faulted panel never loses a rendered result. Optional.
	ColorFallback ColorSink
	FrameFallback FrameSink

	Gate  *gate.Gate
	Store *gate.Store

	// Target geometry of the color panel.
	Width, Height int

	// Now is the pipeline clock; defaults to time.Now. Injected in tests.
	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// RefreshColor runs the image path: adapt src to the panel geometry, dither
// it into the palette and push it to the color sink. A nil src renders the
// fallback dashboard from the cached records instead.
//
// A sink failure is reported after the image has been handed to the fallback
// sink; the result of the (completed) dither pass is never discarded.
func (p *Pipeline) RefreshColor(ctx context.Context, src image.Image) error {
	if src == nil {
		src = render.Dashboard(p.Width, p.Height, p.Store.Weather(), p.Store.Events(), p.now())
	}

	fitted, err := fit.Frame(src, p.Width, p.Height)
	if err != nil {
		return err
	}
	img := dither.FloydSteinberg(fitted)

	if err := p.Color.DisplayImage(ctx, img); err != nil {
		if p.ColorFallback != nil {
			if fbErr := p.ColorFallback.DisplayImage(ctx, img); fbErr != nil {
				return fmt.Errorf("inkduo: color sink: %w (fallback also failed: %v)", err, fbErr)
			}
		}
		return fmt.Errorf("inkduo: color sink: %w", err)
	}
	return nil
}

// Tick runs one scheduler cycle of the data path. The two gates are
// evaluated independently: a tick may refresh upstream data, push a frame,
// do both, or do nothing.
//
// Upstream fetch failures are absorbed: the store keeps the last good
// records (or the placeholder if nothing was ever fetched) and the cycle
// continues. Transport failures are returned after the fallback sink has
// been fed; the send stays due, so the next tick retries.
func (p *Pipeline) Tick(ctx context.Context) error {
	now := p.now()

	if p.Gate.DataDue(now) {
		p.refreshData(ctx)
		p.Gate.MarkFetch(now)
	}

	if !p.Gate.SendDue(now) {
		return nil
	}

	buf := frame.Pack(p.Store.Weather(), p.Store.Events(), now)
	if err := p.Frames.SendFrame(ctx, buf); err != nil {
		if p.FrameFallback != nil {
			if fbErr := p.FrameFallback.SendFrame(ctx, buf); fbErr != nil {
				return fmt.Errorf("inkduo: frame sink: %w (fallback also failed: %v)", err, fbErr)
			}
		}
		return fmt.Errorf("inkduo: frame sink: %w", err)
	}
	p.Gate.MarkSend(now)
	return nil
}

// refreshData pulls fresh records into the store, keeping the previous ones
// on failure.
func (p *Pipeline) refreshData(ctx context.Context) {
	if w, err := p.Weather.CurrentWeather(ctx); err == nil {
		p.Store.SetWeather(w)
	}
	if events, err := p.Calendar.UpcomingEvents(ctx); err == nil {
		p.Store.SetEvents(events)
	}
}
