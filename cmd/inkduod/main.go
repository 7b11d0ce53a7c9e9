// Package main runs inkduod, the daemon driving both dashboard panels.
//
// The daemon ticks on a fixed period and lets the timing gates decide what
// each tick does: refresh upstream data, push a frame to the remote panel,
// redraw the color panel, or nothing. Without hardware (or with -mock) the
// rendered outputs land in files instead.
//
// Hardware Setup:
//
// Connect the 6-color panel via SPI:
//
//	Panel      Raspberry Pi
//	GND        GND
//	VCC        3.3V
//	CLK        GPIO11 (SPI0 CLK)
//	DIN        GPIO10 (SPI0 MOSI)
//	CS         GPIO8 (SPI0 CE0)
//	DC         GPIO25 (configurable)
//	RST        GPIO17 (configurable)
//	BUSY       GPIO24 (configurable)
//
// The monochrome panel hangs off a microcontroller on the I2C bus
// (address 0x28 by default).
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/host/v3"

	"github.com/inkduo/inkduo"
	"github.com/inkduo/inkduo/config"
	"github.com/inkduo/inkduo/frame"
	"github.com/inkduo/inkduo/gate"
)

var (
	configPath = flag.String("config", "", "Path to YAML config (empty for defaults)")
	imagePath  = flag.String("image", "", "Source image for the color panel (empty renders the dashboard)")
	mockOnly   = flag.Bool("mock", false, "Skip hardware, write outputs to files")
	verbose    = flag.Bool("v", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(); err != nil {
		slog.Error("inkduod: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *mockOnly {
		cfg.MockOnly = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fileColor := &inkduo.FileColorSink{Dir: cfg.OutputDir}
	fileFrames := &inkduo.FileFrameSink{Dir: cfg.OutputDir}

	p := &inkduo.Pipeline{
		Color:    fileColor,
		Frames:   fileFrames,
		Weather:  demoWeather{},
		Calendar: demoCalendar{},
		Gate:     gate.New(cfg.CacheInterval(), cfg.SendInterval()),
		Store:    &gate.Store{},
		Width:    cfg.Color.Width,
		Height:   cfg.Color.Height,
	}

	if cfg.MockOnly {
		slog.Info("inkduod: mock mode, writing outputs to files", "dir", cfg.OutputDir)
	} else {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("inkduod: initializing host: %w", err)
		}
		panels := inkduo.NewPanels(cfg)
		defer panels.Release()
		p.Color = panels
		p.Frames = panels
		p.ColorFallback = fileColor
		p.FrameFallback = fileFrames
	}

	var src image.Image
	if *imagePath != "" {
		var err error
		if src, err = loadImage(*imagePath); err != nil {
			return err
		}
		slog.Info("inkduod: source image loaded", "path", *imagePath)
	}

	slog.Info("inkduod: starting",
		"tick", cfg.Tick(),
		"cache_interval", cfg.CacheInterval(),
		"send_interval", cfg.SendInterval(),
		"color_refresh", cfg.ColorRefreshInterval())

	// The color panel has its own, much slower cadence (daily by default);
	// its e-ink refresh is slow and visually disruptive, so it is scheduled
	// here instead of inside the per-tick gate.
	var lastColor time.Time

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	for {
		now := time.Now()

		if lastColor.IsZero() || now.Sub(lastColor) >= cfg.ColorRefreshInterval() {
			if err := p.RefreshColor(ctx, src); err != nil {
				slog.Error("inkduod: color refresh failed", "error", err)
			} else {
				slog.Info("inkduod: color panel refreshed")
			}
			// A failed refresh still waits a full interval: e-ink panels do
			// not tolerate rapid re-drives, and the file fallback already
			// preserved the output.
			lastColor = now
		}

		if err := p.Tick(ctx); err != nil {
			slog.Error("inkduod: cycle failed", "error", err)
		} else {
			slog.Debug("inkduod: cycle complete")
		}

		select {
		case <-ctx.Done():
			slog.Info("inkduod: shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

// loadImage decodes a PNG or JPEG from disk.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inkduod: opening %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("inkduod: decoding %s: %w", path, err)
	}
	return img, nil
}

// demoWeather and demoCalendar are stand-in data providers. Real deployments
// replace them with API clients implementing the same interfaces.
type demoWeather struct{}

func (demoWeather) CurrentWeather(ctx context.Context) (frame.Weather, error) {
	return frame.Weather{
		Temperature: 21.5,
		Description: "Partly cloudy",
		Location:    "Toronto",
		Timestamp:   uint32(time.Now().Unix()),
	}, nil
}

type demoCalendar struct{}

func (demoCalendar) UpcomingEvents(ctx context.Context) ([]frame.Event, error) {
	now := time.Now()
	return []frame.Event{
		{Title: "Morning standup", Location: "Meet", StartTime: uint32(now.Add(1 * time.Hour).Unix()), Valid: true},
		{Title: "Design review", Location: "Room 4B", StartTime: uint32(now.Add(3 * time.Hour).Unix()), Valid: true},
	}, nil
}
