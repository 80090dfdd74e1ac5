// Package ir encodes and decodes the infrared tag pulse train.
//
// A frame is a start burst, eight data bits MSB first carrying the
// attacker's team id, and an end burst, with fixed gaps between
// bursts. Burst widths select the symbol; the 38kHz carrier itself is
// a hardware concern below this package.
package ir

import (
	"time"

	"tagarena"
	"tagarena/config"
)

// resetGap: any silence longer than this abandons a partial frame, so
// a truncated transmission can never bleed into the next one.
const resetGap = 100 * time.Millisecond

// Timing is the pulse-train schedule, taken from config.
type Timing struct {
	StartEnd time.Duration
	Bit1     time.Duration
	Bit0     time.Duration
	Gap      time.Duration
	Tol      time.Duration
}

// TimingFromConfig converts the config block's microsecond fields.
func TimingFromConfig(p config.IRProtocol) Timing {
	return Timing{
		StartEnd: time.Duration(p.StartEndBurstUS) * time.Microsecond,
		Bit1:     time.Duration(p.Bit1BurstUS) * time.Microsecond,
		Bit0:     time.Duration(p.Bit0BurstUS) * time.Microsecond,
		Gap:      time.Duration(p.InterBitGapUS) * time.Microsecond,
		Tol:      time.Duration(p.ToleranceUS) * time.Microsecond,
	}
}

// Frame is alternating mark and space durations, first and last
// entries being marks. Emitter hardware plays it back over the
// carrier.
type Frame []time.Duration

// Encode builds the frame for a team id: 21 entries, 10 marks with 9
// gaps between them.
func Encode(t Timing, id tagarena.TeamID) Frame {
	frame := make(Frame, 0, 21)
	frame = append(frame, t.StartEnd)
	for bit := 7; bit >= 0; bit-- {
		frame = append(frame, t.Gap)
		if id&(1<<uint(bit)) != 0 {
			frame = append(frame, t.Bit1)
		} else {
			frame = append(frame, t.Bit0)
		}
	}
	frame = append(frame, t.Gap, t.StartEnd)
	return frame
}

type decodeState uint8

const (
	stateIdle decodeState = iota
	stateData
)

// Decoder is the receive-side state machine. Feed it one mark at a
// time with the silence that preceded it.
type Decoder struct {
	timing Timing
	state  decodeState
	bits   int
	value  uint8
}

func NewDecoder(timing Timing) *Decoder {
	return &Decoder{timing: timing}
}

func (d *Decoder) reset() {
	d.state = stateIdle
	d.bits = 0
	d.value = 0
}

func (d *Decoder) within(width, want time.Duration) bool {
	delta := width - want
	if delta < 0 {
		delta = -delta
	}
	return delta <= d.timing.Tol
}

// Pulse consumes one received mark. gapBefore is the silence since the
// previous mark ended; pass zero for the first mark ever seen. Returns
// a decoded attacker id when the mark completes a valid frame.
func (d *Decoder) Pulse(mark, gapBefore time.Duration) (tagarena.TeamID, bool) {
	if gapBefore > resetGap {
		d.reset()
	}

	isStartEnd := d.within(mark, d.timing.StartEnd)

	switch d.state {
	case stateIdle:
		if isStartEnd {
			d.state = stateData
		}
		return 0, false

	case stateData:
		if d.bits == 8 {
			// Expecting the end burst.
			value := d.value
			d.reset()
			if isStartEnd && value != 0 {
				return tagarena.TeamID(value), true
			}
			// A malformed trailer that itself looks like a start burst
			// opens a new frame.
			if isStartEnd {
				d.state = stateData
			}
			return 0, false
		}
		switch {
		case d.within(mark, d.timing.Bit1):
			d.value = d.value<<1 | 1
			d.bits++
		case d.within(mark, d.timing.Bit0):
			d.value <<= 1
			d.bits++
		case isStartEnd:
			// Start burst mid-frame: treat as the start of a fresh
			// frame rather than data corruption.
			d.reset()
			d.state = stateData
		default:
			d.reset()
		}
		return 0, false
	}
	return 0, false
}
