package inkduo

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/inkduo/inkduo/buslink"
	"github.com/inkduo/inkduo/config"
	"github.com/inkduo/inkduo/epd7in3e"
	"github.com/inkduo/inkduo/image6color"
)

// PanelState is the lifecycle state of the shared hardware handles.
type PanelState int

const (
	// StateUninitialized: constructed, no I/O performed yet.
	StateUninitialized PanelState = iota
	// StateReady: buses open, panel initialized.
	StateReady
	// StateFaulted: a hardware operation failed; handles must be torn down
	// and reacquired before the next operation.
	StateFaulted
)

func (s PanelState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("PanelState(%d)", int(s))
	}
}

// Panels owns the process-wide hardware handles: the SPI-attached color
// panel and the I2C link to the remote monochrome panel. The hardware
// protocols are stateful and non-reentrant, so all operations are mutually
// exclusive; at most one transaction is in flight at any time.
//
// Lifecycle: NewPanels performs no I/O. The first operation acquires the
// buses lazily; a faulted handle is torn down and reacquired at most once
// per operation, so a persistent fault costs one failed attempt per cycle
// instead of an infinite retry loop.
type Panels struct {
	mu    sync.Mutex
	state PanelState
	cfg   *config.Config

	spiPort spi.PortCloser
	i2cBus  i2c.BusCloser
	epd     *epd7in3e.Dev
	sender  *buslink.Sender
}

// NewPanels constructs the manager without touching hardware.
func NewPanels(cfg *config.Config) *Panels {
	return &Panels{cfg: cfg}
}

// State returns the current lifecycle state.
func (p *Panels) State() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// acquireLocked opens both buses and initializes the panel handles. Idempotent
// when already Ready. Caller holds p.mu.
func (p *Panels) acquireLocked() error {
	if p.state == StateReady {
		return nil
	}
	if p.state == StateFaulted {
		p.releaseLocked()
	}

	spiPort, err := spireg.Open(p.cfg.Color.SPIPort)
	if err != nil {
		return fmt.Errorf("inkduo: opening SPI port: %w", err)
	}

	dc := gpioreg.ByName(p.cfg.Color.DCPin)
	if dc == nil {
		spiPort.Close()
		return fmt.Errorf("inkduo: DC pin %q not found", p.cfg.Color.DCPin)
	}
	opts := &epd7in3e.Opts{W: p.cfg.Color.Width, H: p.cfg.Color.Height}
	if p.cfg.Color.RSTPin != "" {
		if opts.RST = gpioreg.ByName(p.cfg.Color.RSTPin); opts.RST == nil {
			spiPort.Close()
			return fmt.Errorf("inkduo: RST pin %q not found", p.cfg.Color.RSTPin)
		}
	}
	if p.cfg.Color.BusyPin != "" {
		busy := gpioreg.ByName(p.cfg.Color.BusyPin)
		if busy == nil {
			spiPort.Close()
			return fmt.Errorf("inkduo: BUSY pin %q not found", p.cfg.Color.BusyPin)
		}
		if err := busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			spiPort.Close()
			return fmt.Errorf("inkduo: configuring BUSY pin: %w", err)
		}
		opts.BUSY = busy
	}

	epd, err := epd7in3e.NewSPI(spiPort, dc, opts)
	if err != nil {
		spiPort.Close()
		return err
	}

	i2cBus, err := i2creg.Open(p.cfg.Data.I2CBus)
	if err != nil {
		spiPort.Close()
		return fmt.Errorf("inkduo: opening I2C bus: %w", err)
	}

	p.spiPort = spiPort
	p.i2cBus = i2cBus
	p.epd = epd
	p.sender = buslink.NewSender(i2cBus, &buslink.Opts{Addr: p.cfg.Data.I2CAddr})
	p.state = StateReady
	return nil
}

// releaseLocked tears down all handles. Caller holds p.mu.
func (p *Panels) releaseLocked() {
	if p.spiPort != nil {
		p.spiPort.Close()
		p.spiPort = nil
	}
	if p.i2cBus != nil {
		p.i2cBus.Close()
		p.i2cBus = nil
	}
	p.epd = nil
	p.sender = nil
	p.state = StateUninitialized
}

// Release closes all hardware handles.
func (p *Panels) Release() {
	p.mu.Lock()
	p.releaseLocked()
	p.mu.Unlock()
}

// DisplayImage pushes a dithered image to the color panel: wake, draw,
// refresh, back to sleep. Implements ColorSink.
func (p *Panels) DisplayImage(ctx context.Context, img *image6color.Indexed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.acquireLocked(); err != nil {
		p.state = StateFaulted
		return err
	}

	err := func() error {
		if err := p.epd.Init(); err != nil {
			return err
		}
		if err := p.epd.Draw(img); err != nil {
			return err
		}
		return p.epd.Sleep()
	}()
	if err != nil {
		p.state = StateFaulted
		return err
	}
	return nil
}

// SendFrame streams a packed frame to the remote panel over I2C. Implements
// FrameSink. A pending (unacknowledged) frame is not an error; the next
// scheduled send supersedes it.
func (p *Panels) SendFrame(ctx context.Context, frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.acquireLocked(); err != nil {
		p.state = StateFaulted
		return err
	}

	acked, err := p.sender.Send(ctx, frame)
	if err != nil {
		p.state = StateFaulted
		return err
	}
	_ = acked // pending is fine; the remote catches up on its own clock
	return nil
}
