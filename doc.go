// Package inkduo drives a dual e-paper dashboard: a 6-color 800x480 panel
// attached over SPI and a remote monochrome panel fed through a
// microcontroller over I2C.
//
// # Architecture
//
// Two independent pipelines share one hardware resource manager:
//
//	image ──> fit ──> dither ──> ColorSink (epd7in3e or PNG file)
//	weather/calendar ──> gate/store ──> frame ──> FrameSink (buslink or raw file)
//
// The image path adapts an arbitrary source image to the panel geometry
// (center-crop + Lanczos resize), quantizes it to the fixed 6-color palette
// with Floyd-Steinberg error diffusion and hands the result to a ColorSink.
//
// The data path caches weather and calendar records behind a dual-interval
// timing gate, packs them into the fixed 740-byte wire frame the remote
// firmware expects, and streams it over I2C in paced 32-byte chunks.
//
// # Hardware ownership
//
// Panels owns the process-wide SPI and I2C handles. The display and bus
// protocols are stateful and non-reentrant, so every hardware transaction is
// mutually exclusive. Construction performs no I/O; buses are acquired
// lazily on first use and a faulted handle is torn down and reacquired at
// most once per operation.
//
// # Failure policy
//
// Upstream data failures degrade to the last cached records, never to an
// empty panel. Hardware failures fail the cycle, hand the rendered output to
// a file sink so nothing is lost, and are retried on the next scheduled
// tick. There is no alerting: a failed cycle is simply superseded by the
// next one.
//
// # Basic usage
//
//	cfg := config.Default()
//	panels := inkduo.NewPanels(cfg)
//	defer panels.Release()
//
//	p := &inkduo.Pipeline{
//		Color:         panels,
//		Frames:        panels,
//		ColorFallback: &inkduo.FileColorSink{Dir: cfg.OutputDir},
//		FrameFallback: &inkduo.FileFrameSink{Dir: cfg.OutputDir},
//		Weather:       weatherClient,
//		Calendar:      calendarClient,
//		Gate:          gate.New(cfg.CacheInterval(), cfg.SendInterval()),
//		Store:         &gate.Store{},
//		Width:         cfg.Color.Width,
//		Height:        cfg.Color.Height,
//	}
//
//	for range time.Tick(cfg.Tick()) {
//		if err := p.Tick(ctx); err != nil {
//			slog.Error("inkduod: cycle failed", "error", err)
//		}
//	}
//
// See cmd/inkduod for the complete daemon.
package inkduo
