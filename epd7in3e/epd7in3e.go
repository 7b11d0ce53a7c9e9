// Package epd7in3e controls a 7.3" 6-color e-paper panel via SPI.
//
// The panel is an ACeP-class 800x480 display with a fixed palette of black,
// white, red, green, blue and yellow. Pixel data is written as one plane of
// packed nibbles (2 pixels per byte), each nibble holding a controller color
// code.
//
// See the root package for how the driver fits into the display pipeline.
package epd7in3e

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/inkduo/inkduo/image6color"
)

// hwCode maps an image6color palette index to the controller's color code.
// The controller orders its colors differently from the logical palette.
var hwCode = [6]byte{
	0x0, // black
	0x1, // white
	0x3, // red
	0x6, // green
	0x5, // blue
	0x2, // yellow
}

// maxTxSize keeps individual SPI transfers under the common Linux spidev
// buffer limit; the full 192000-byte plane is streamed in slices.
const maxTxSize = 4096

// busyTimeout bounds the wait for the BUSY pin after a refresh. A full-panel
// color refresh takes up to ~30s on this panel class.
const busyTimeout = 40 * time.Second

// Opts is the configuration for the display.
type Opts struct {
	// Display dimensions in pixels
	W int // Width (default: 800, must be even)
	H int // Height (default: 480)

	// RST is the optional hardware reset pin.
	RST gpio.PinIO
	// BUSY is the optional panel-busy input. Without it the driver falls
	// back to fixed delays.
	BUSY gpio.PinIn
}

// Dev is the device handle for the panel.
//
// Construction performs no panel I/O; call Init before the first Clear or
// Draw. Init is idempotent and may be called again after a fault to rerun
// the full power-up sequence.
type Dev struct {
	// Communication
	c    conn.Conn   // SPI connection
	dc   gpio.PinOut // Data/Command pin
	rst  gpio.PinIO  // Reset pin (optional)
	busy gpio.PinIn  // Busy pin (optional)

	// Display geometry
	rect image.Rectangle

	// State
	inited bool
	halted bool
}

// NewSPI creates a new device connected via SPI.
//
// The SPI port is configured for 10MHz, Mode0, 8-bit transfers. The dc
// (Data/Command) GPIO pin must be provided and configured as an output.
//
// opts can be nil to use defaults (800x480).
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{W: 800, H: 480}
	}
	if opts.W == 0 {
		opts.W = 800
	}
	if opts.H == 0 {
		opts.H = 480
	}
	if opts.W <= 0 || opts.W%2 != 0 {
		return nil, errors.New("epd7in3e: width must be even and positive")
	}
	if opts.H <= 0 {
		return nil, errors.New("epd7in3e: height must be positive")
	}

	c, err := p.Connect(10*1000000, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}

	return &Dev{
		c:    c,
		dc:   dc,
		rst:  opts.RST,
		busy: opts.BUSY,
		rect: image.Rect(0, 0, opts.W, opts.H),
	}, nil
}

// Init runs the hardware reset and power-up command sequence. It must be
// called once before drawing; calling it again after a fault reruns the full
// sequence.
func (d *Dev) Init() error {
	if d.halted {
		return errors.New("epd7in3e: halted")
	}

	if d.rst != nil {
		if err := d.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("epd7in3e: failed to pull RST high: %w", err)
		}
		time.Sleep(20 * time.Millisecond)
		if err := d.rst.Out(gpio.Low); err != nil {
			return fmt.Errorf("epd7in3e: failed to pull RST low: %w", err)
		}
		time.Sleep(2 * time.Millisecond)
		if err := d.rst.Out(gpio.High); err != nil {
			return fmt.Errorf("epd7in3e: failed to pull RST high: %w", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := d.waitBusy(100 * time.Millisecond); err != nil {
		return err
	}

	type step struct {
		cmd  byte
		data []byte
	}
	seq := []step{
		{0xAA, []byte{0x49, 0x55, 0x20, 0x08, 0x09, 0x18}}, // CMDH unlock
		{0x01, []byte{0x3F}},                               // power setting
		{0x00, []byte{0x5F, 0x69}},                         // panel setting
		{0x03, []byte{0x00, 0x54, 0x00, 0x44}},             // POFS
		{0x05, []byte{0x40, 0x1F, 0x1F, 0x2C}},             // booster soft start 1
		{0x06, []byte{0x6F, 0x1F, 0x17, 0x49}},             // booster soft start 2
		{0x08, []byte{0x6F, 0x1F, 0x1F, 0x22}},             // booster soft start 3
		{0x30, []byte{0x03}},                               // PLL
		{0x50, []byte{0x3F}},                               // VCOM and data interval
		{0x60, []byte{0x02, 0x00}},                         // TCON
		{0x61, []byte{0x03, 0x20, 0x01, 0xE0}},             // resolution: 800x480
		{0x84, []byte{0x01}},                               // T_VDCS
		{0xE3, []byte{0x2F}},                               // power saving
	}
	for _, s := range seq {
		if err := d.sendCommand(s.cmd); err != nil {
			return err
		}
		if err := d.sendData(s.data); err != nil {
			return err
		}
	}

	// Power on and wait for the rails to settle.
	if err := d.sendCommand(0x04); err != nil {
		return err
	}
	if err := d.waitBusy(200 * time.Millisecond); err != nil {
		return err
	}

	d.inited = true
	return nil
}

// sendCommand sends a single command byte.
func (d *Dev) sendCommand(cmd byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	return d.c.Tx([]byte{cmd}, nil)
}

// sendData sends a slice of data bytes, split to respect the SPI transfer
// size limit.
func (d *Dev) sendData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(data) > 0 {
		n := len(data)
		if n > maxTxSize {
			n = maxTxSize
		}
		if err := d.c.Tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// waitBusy blocks until the BUSY pin reports ready. Without a BUSY pin it
// sleeps for fallback, which must cover the worst case for the preceding
// command.
func (d *Dev) waitBusy(fallback time.Duration) error {
	if d.busy == nil {
		time.Sleep(fallback)
		return nil
	}
	deadline := time.Now().Add(busyTimeout)
	// BUSY is active low on this controller.
	for d.busy.Read() == gpio.Low {
		if time.Now().After(deadline) {
			return errors.New("epd7in3e: timeout waiting for BUSY")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// refresh latches the written plane onto the panel.
func (d *Dev) refresh() error {
	if err := d.sendCommand(0x12); err != nil {
		return err
	}
	if err := d.sendData([]byte{0x00}); err != nil {
		return err
	}
	return d.waitBusy(30 * time.Second)
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image6color.Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// Clear fills the whole panel with the given palette color and refreshes.
func (d *Dev) Clear(c image6color.Index) error {
	if err := d.ready(); err != nil {
		return err
	}
	if int(c) >= len(image6color.Palette) {
		return errors.New("epd7in3e: palette index out of range")
	}

	fill := hwCode[c]<<4 | hwCode[c]
	plane := make([]byte, d.rect.Dx()*d.rect.Dy()/2)
	for i := range plane {
		plane[i] = fill
	}
	return d.writePlane(plane)
}

// Draw renders src onto the panel and refreshes. The panel only supports
// full-frame updates: src must cover the full display bounds.
//
// If src is an *image6color.Indexed of exactly the display size, its pixels
// are translated directly; any other image is quantized through the palette
// color model first (without dithering — dither upstream for photographic
// content).
func (d *Dev) Draw(src image.Image) error {
	if err := d.ready(); err != nil {
		return err
	}
	if src.Bounds().Dx() != d.rect.Dx() || src.Bounds().Dy() != d.rect.Dy() {
		return fmt.Errorf("epd7in3e: image is %dx%d, display is %dx%d",
			src.Bounds().Dx(), src.Bounds().Dy(), d.rect.Dx(), d.rect.Dy())
	}

	idx, ok := src.(*image6color.Indexed)
	if !ok {
		idx = image6color.NewIndexed(image.Rect(0, 0, d.rect.Dx(), d.rect.Dy()))
		b := src.Bounds()
		for y := 0; y < d.rect.Dy(); y++ {
			for x := 0; x < d.rect.Dx(); x++ {
				idx.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}

	return d.writePlane(translate(idx.Pix))
}

// translate maps packed palette indices to packed controller color codes.
func translate(pix []byte) []byte {
	out := make([]byte, len(pix))
	for i, b := range pix {
		hi := (b >> 4) & 0x0F
		lo := b & 0x0F
		if hi >= 6 {
			hi = 0
		}
		if lo >= 6 {
			lo = 0
		}
		out[i] = hwCode[hi]<<4 | hwCode[lo]
	}
	return out
}

// writePlane streams one full data plane and refreshes the panel.
func (d *Dev) writePlane(plane []byte) error {
	if err := d.sendCommand(0x10); err != nil {
		return err
	}
	if err := d.sendData(plane); err != nil {
		return err
	}
	return d.refresh()
}

// Sleep puts the panel into deep sleep. E-paper must not be kept powered
// between refreshes; the image persists without power. Init wakes it again.
func (d *Dev) Sleep() error {
	if d.halted {
		return errors.New("epd7in3e: halted")
	}
	if err := d.sendCommand(0x07); err != nil {
		return err
	}
	if err := d.sendData([]byte{0xA5}); err != nil {
		return err
	}
	d.inited = false
	return nil
}

// Halt puts the display to sleep permanently. After calling Halt the device
// no longer accepts commands.
func (d *Dev) Halt() error {
	if err := d.Sleep(); err != nil {
		return err
	}
	d.halted = true
	return nil
}

func (d *Dev) ready() error {
	if d.halted {
		return errors.New("epd7in3e: halted")
	}
	if !d.inited {
		return errors.New("epd7in3e: not initialized, call Init first")
	}
	return nil
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("epd7in3e.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}
