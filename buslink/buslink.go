// Package buslink pushes packed frames to the companion microcontroller over
// I2C.
//
// The receiver exposes a tiny write window, so a frame is streamed as
// offset-tagged chunks with a pacing delay between writes. After the last
// chunk a single status byte is read back; anything other than the ack value
// means the remote has not (yet) accepted the frame, which is reported as
// pending rather than as an error.
package buslink

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

const (
	// ChunkSize is the payload size per bus write. The remote's receive
	// buffer is 34 bytes: 2 bytes of offset tag plus 32 bytes of frame data.
	ChunkSize = 32

	// StatusAck is the status byte the remote returns once it has accepted a
	// complete frame.
	StatusAck = 0xA5

	// DefaultAddr is the remote's 7-bit bus address.
	DefaultAddr = 0x28

	// DefaultPause is the inter-chunk delay. The remote copies each chunk out
	// of its receive buffer in its main loop; writing faster overruns it.
	DefaultPause = 5 * time.Millisecond
)

// Opts configures a Sender. The zero value selects defaults.
type Opts struct {
	Addr  uint16        // bus address (default: DefaultAddr)
	Pause time.Duration // inter-chunk delay (default: DefaultPause, <0 disables)
}

// Sender streams frames to one remote device. It performs no locking; the
// owner must serialize Send calls per device, since an interleaved second
// frame would corrupt the remote's reassembly state.
type Sender struct {
	dev   *i2c.Dev
	pause time.Duration
}

// NewSender returns a Sender for the remote at opts.Addr on the given bus.
// opts can be nil to use defaults.
func NewSender(bus i2c.Bus, opts *Opts) *Sender {
	if opts == nil {
		opts = &Opts{}
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	pause := opts.Pause
	if pause == 0 {
		pause = DefaultPause
	} else if pause < 0 {
		pause = 0
	}
	return &Sender{
		dev:   &i2c.Dev{Bus: bus, Addr: addr},
		pause: pause,
	}
}

// Send streams frame to the remote as paced, offset-tagged chunks and reads
// back the status byte. It reports whether the remote acknowledged the frame.
//
// A write failure aborts the sequence and is returned as an error. A failed
// or unexpected status read is not an error: the result is simply acked ==
// false ("assume pending"); the next scheduled cycle retries.
//
// The chunk sequence is atomic once started: ctx is only consulted before the
// first write, since a half-sent frame is worse than a late one.
func (s *Sender) Send(ctx context.Context, frame []byte) (acked bool, err error) {
	if len(frame) == 0 {
		return false, fmt.Errorf("buslink: empty frame")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	buf := make([]byte, 2+ChunkSize)
	for off := 0; off < len(frame); off += ChunkSize {
		end := off + ChunkSize
		if end > len(frame) {
			end = len(frame)
		}

		// Offset tag, little-endian, followed by the chunk payload.
		buf[0] = byte(off)
		buf[1] = byte(off >> 8)
		n := copy(buf[2:], frame[off:end])

		if err := s.dev.Tx(buf[:2+n], nil); err != nil {
			return false, fmt.Errorf("buslink: chunk at offset %d: %w", off, err)
		}
		if s.pause > 0 {
			time.Sleep(s.pause)
		}
	}

	var status [1]byte
	if err := s.dev.Tx(nil, status[:]); err != nil {
		// Unknown state, assume pending.
		return false, nil
	}
	return status[0] == StatusAck, nil
}

// String returns a string representation of the sender.
func (s *Sender) String() string {
	return fmt.Sprintf("buslink.Sender{%s}", s.dev.String())
}
