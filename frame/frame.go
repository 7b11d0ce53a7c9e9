// Package frame serializes weather and calendar records into the fixed
// 740-byte buffer consumed by the companion microcontroller firmware.
//
// The layout is a frozen wire protocol: every field lives at a fixed offset,
// all integers are little-endian, all string fields are zero-padded to their
// reserved size. Any change to field order or size is a breaking protocol
// change requiring a coordinated firmware update.
package frame

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf8"
)

// Buffer layout. Offsets are bytes from the start of the frame.
const (
	// Weather sub-record.
	offTemperature  = 0   // float32
	offDescription  = 4   // 64 bytes, 63 text + NUL
	offLocation     = 68  // 32 bytes, 31 text + NUL
	offWeatherStamp = 100 // uint32 epoch seconds

	descriptionSize = 64
	locationSize    = 32

	// Event sub-records. Each record is 101 bytes of payload padded to the
	// next 4-byte boundary.
	offEvents       = 104
	eventTitleSize  = 64
	eventLocSize    = 32
	eventSize       = eventTitleSize + eventLocSize + 4 + 1 // 101
	eventStride     = 104                                   // eventSize padded to 4
	MaxEvents       = 6

	// Trailer.
	offEventCount = offEvents + MaxEvents*eventStride // 728, uint8
	offDataHash   = 732                               // uint32, reserved: written 0, remote-computed
	offFrameStamp = 736                               // uint32 epoch seconds, pack time

	// Size is the fixed total frame length. It never varies with content.
	Size = 740
)

// Weather is the current-conditions record cached from the upstream weather
// collaborator.
type Weather struct {
	Temperature float32
	Description string // truncated to 63 bytes on pack
	Location    string // truncated to 31 bytes on pack
	Timestamp   uint32 // epoch seconds of the upstream observation
}

// Event is one calendar entry. Zero-value events mark empty slots.
type Event struct {
	Title     string // truncated to 63 bytes on pack
	Location  string // truncated to 31 bytes on pack
	StartTime uint32 // epoch seconds, 0 if absent or unparseable
	Valid     bool   // false for empty slots
}

// Pack serializes one weather record and up to MaxEvents events into a frame.
// Events beyond MaxEvents are silently dropped in caller order; unused slots
// stay zero-filled at their full reserved size. The returned slice is always
// exactly Size bytes.
func Pack(w Weather, events []Event, packedAt time.Time) []byte {
	buf := make([]byte, Size)

	binary.LittleEndian.PutUint32(buf[offTemperature:], math.Float32bits(w.Temperature))
	putString(buf[offDescription:offDescription+descriptionSize], w.Description)
	putString(buf[offLocation:offLocation+locationSize], w.Location)
	binary.LittleEndian.PutUint32(buf[offWeatherStamp:], w.Timestamp)

	n := len(events)
	if n > MaxEvents {
		n = MaxEvents
	}
	for i := 0; i < n; i++ {
		packEvent(buf[offEvents+i*eventStride:], events[i])
	}

	buf[offEventCount] = uint8(n)
	binary.LittleEndian.PutUint32(buf[offDataHash:], 0)
	binary.LittleEndian.PutUint32(buf[offFrameStamp:], uint32(packedAt.Unix()))
	return buf
}

func packEvent(rec []byte, e Event) {
	putString(rec[:eventTitleSize], e.Title)
	putString(rec[eventTitleSize:eventTitleSize+eventLocSize], e.Location)
	binary.LittleEndian.PutUint32(rec[eventTitleSize+eventLocSize:], e.StartTime)
	if e.Valid {
		rec[eventSize-1] = 1
	}
}

// putString copies s into field, truncated to len(field)-1 bytes so the field
// always ends with at least one NUL. Truncation never splits a multi-byte
// UTF-8 sequence: when the byte limit falls inside one, the whole sequence is
// dropped.
func putString(field []byte, s string) {
	capacity := len(field) - 1
	b := []byte(s)
	if len(b) > capacity {
		b = b[:capacity]
		// Back out of a partial UTF-8 sequence left at the cut point.
		for len(b) > 0 {
			if r, size := utf8.DecodeLastRune(b); r == utf8.RuneError && size <= 1 {
				b = b[:len(b)-1]
				continue
			}
			break
		}
	}
	copy(field, b)
}
