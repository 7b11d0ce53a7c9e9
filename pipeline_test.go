package inkduo

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/inkduo/inkduo/frame"
	"github.com/inkduo/inkduo/gate"
	"github.com/inkduo/inkduo/image6color"
)

type fakeColorSink struct {
	images []*image6color.Indexed
	err    error
}

func (s *fakeColorSink) DisplayImage(ctx context.Context, img *image6color.Indexed) error {
	if s.err != nil {
		return s.err
	}
	s.images = append(s.images, img)
	return nil
}

type fakeFrameSink struct {
	frames [][]byte
	err    error
}

func (s *fakeFrameSink) SendFrame(ctx context.Context, f []byte) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, append([]byte(nil), f...))
	return nil
}

type fakeWeather struct {
	w     frame.Weather
	err   error
	calls int
}

func (f *fakeWeather) CurrentWeather(ctx context.Context) (frame.Weather, error) {
	f.calls++
	return f.w, f.err
}

type fakeCalendar struct {
	events []frame.Event
	err    error
	calls  int
}

func (f *fakeCalendar) UpcomingEvents(ctx context.Context) ([]frame.Event, error) {
	f.calls++
	return f.events, f.err
}

func testPipeline(colorSink ColorSink, frameSink FrameSink, w *fakeWeather, c *fakeCalendar) (*Pipeline, *time.Time) {
	now := time.Unix(1756100000, 0)
	p := &Pipeline{
		Color:    colorSink,
		Frames:   frameSink,
		Weather:  w,
		Calendar: c,
		Gate:     gate.New(1800*time.Second, 30*time.Second),
		Store:    &gate.Store{},
		Width:    16,
		Height:   8,
		Now:      func() time.Time { return now },
	}
	return p, &now
}

func TestRefreshColorProducesPaletteImage(t *testing.T) {
	sink := &fakeColorSink{}
	p, _ := testPipeline(sink, &fakeFrameSink{}, &fakeWeather{}, &fakeCalendar{})

	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.SetRGBA(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 0x80, 0xFF})
		}
	}

	if err := p.RefreshColor(context.Background(), src); err != nil {
		t.Fatalf("RefreshColor() error = %v", err)
	}
	if len(sink.images) != 1 {
		t.Fatalf("sink received %d images, want 1", len(sink.images))
	}
	img := sink.images[0]
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("sink image = %dx%d, want 16x8", b.Dx(), b.Dy())
	}
}

func TestRefreshColorNilRendersDashboard(t *testing.T) {
	sink := &fakeColorSink{}
	p, _ := testPipeline(sink, &fakeFrameSink{}, &fakeWeather{}, &fakeCalendar{})
	p.Width, p.Height = 200, 100

	if err := p.RefreshColor(context.Background(), nil); err != nil {
		t.Fatalf("RefreshColor(nil) error = %v", err)
	}
	if len(sink.images) != 1 {
		t.Fatalf("sink received %d images, want 1", len(sink.images))
	}
}

func TestRefreshColorFallback(t *testing.T) {
	fallback := &fakeColorSink{}
	p, _ := testPipeline(&fakeColorSink{err: errors.New("panel fault")}, &fakeFrameSink{}, &fakeWeather{}, &fakeCalendar{})
	p.ColorFallback = fallback

	err := p.RefreshColor(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 8)))
	if err == nil {
		t.Fatal("RefreshColor() error = nil, want sink failure")
	}
	if len(fallback.images) != 1 {
		t.Errorf("fallback received %d images, want 1 (output must not be lost)", len(fallback.images))
	}
}

// Both intervals tripping on the same tick fire two independent operations:
// a data fetch and a transport send, not one merged action.
func TestTickBothGatesFireIndependently(t *testing.T) {
	frames := &fakeFrameSink{}
	weather := &fakeWeather{w: frame.Weather{Temperature: 20, Description: "Sunny", Timestamp: 7}}
	calendar := &fakeCalendar{events: []frame.Event{{Title: "a", Valid: true}}}
	p, now := testPipeline(&fakeColorSink{}, frames, weather, calendar)

	// First tick: both "never done", both fire.
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if weather.calls != 1 || calendar.calls != 1 {
		t.Errorf("fetch calls = (%d, %d), want (1, 1)", weather.calls, calendar.calls)
	}
	if len(frames.frames) != 1 {
		t.Fatalf("sends = %d, want 1", len(frames.frames))
	}
	if len(frames.frames[0]) != frame.Size {
		t.Errorf("frame length = %d, want %d", len(frames.frames[0]), frame.Size)
	}

	// +30s: send due again, data not.
	*now = now.Add(30 * time.Second)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if weather.calls != 1 {
		t.Errorf("weather fetched %d times after send-only tick, want 1", weather.calls)
	}
	if len(frames.frames) != 2 {
		t.Errorf("sends = %d, want 2", len(frames.frames))
	}

	// +1800s from start: both due on the same tick again.
	*now = now.Add(1770 * time.Second)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if weather.calls != 2 {
		t.Errorf("weather fetches = %d, want 2", weather.calls)
	}
	if len(frames.frames) != 3 {
		t.Errorf("sends = %d, want 3", len(frames.frames))
	}
}

func TestTickInBetweenDoesNothing(t *testing.T) {
	frames := &fakeFrameSink{}
	weather := &fakeWeather{}
	p, now := testPipeline(&fakeColorSink{}, frames, weather, &fakeCalendar{})

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	*now = now.Add(10 * time.Second)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if weather.calls != 1 || len(frames.frames) != 1 {
		t.Errorf("idle tick performed work: fetches=%d sends=%d", weather.calls, len(frames.frames))
	}
}

// A failed fetch keeps the previously cached records; the placeholder only
// appears when nothing was ever fetched.
func TestTickFetchFailureRetainsCache(t *testing.T) {
	frames := &fakeFrameSink{}
	weather := &fakeWeather{err: errors.New("api down")}
	p, now := testPipeline(&fakeColorSink{}, frames, weather, &fakeCalendar{err: errors.New("api down")})

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := p.Store.Weather(); got != gate.PlaceholderWeather {
		t.Errorf("store = %+v, want placeholder before any successful fetch", got)
	}

	// Upstream recovers.
	weather.err = nil
	weather.w = frame.Weather{Temperature: 12, Description: "Rain", Timestamp: 9}
	*now = now.Add(1800 * time.Second)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := p.Store.Weather(); got != weather.w {
		t.Errorf("store = %+v, want fetched record", got)
	}

	// Upstream fails again: stale-but-valid beats empty.
	weather.err = errors.New("api down again")
	*now = now.Add(1800 * time.Second)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := p.Store.Weather(); got != weather.w {
		t.Errorf("store = %+v, want retained record after fetch failure", got)
	}
}

// A transport failure feeds the fallback sink, reports the error and leaves
// the send due so the next tick retries.
func TestTickTransportFailure(t *testing.T) {
	primary := &fakeFrameSink{err: errors.New("bus fault")}
	fallback := &fakeFrameSink{}
	p, now := testPipeline(&fakeColorSink{}, primary, &fakeWeather{}, &fakeCalendar{})
	p.FrameFallback = fallback

	if err := p.Tick(context.Background()); err == nil {
		t.Fatal("Tick() error = nil, want transport failure")
	}
	if len(fallback.frames) != 1 {
		t.Errorf("fallback received %d frames, want 1", len(fallback.frames))
	}

	// Transport recovers; the very next tick retries because the send was
	// never marked done.
	primary.err = nil
	*now = now.Add(10 * time.Second)
	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(primary.frames) != 1 {
		t.Errorf("primary received %d frames after recovery, want 1", len(primary.frames))
	}
}
