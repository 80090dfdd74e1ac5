package ir

import (
	"testing"
	"time"

	"tagarena"
	"tagarena/config"
)

func testTiming() Timing {
	return TimingFromConfig(config.Default().IR)
}

// playback feeds an encoded frame into a decoder the way receiver
// hardware would: each mark arrives with the gap that preceded it.
func playback(d *Decoder, frame Frame) (tagarena.TeamID, bool) {
	gap := time.Duration(0)
	for i := 0; i < len(frame); i += 2 {
		if id, ok := d.Pulse(frame[i], gap); ok {
			return id, true
		}
		if i+1 < len(frame) {
			gap = frame[i+1]
		}
	}
	return 0, false
}

func TestRoundTrip(t *testing.T) {
	timing := testTiming()
	for _, id := range []tagarena.TeamID{1, 7, 0xA5, 128, 255} {
		d := NewDecoder(timing)
		got, ok := playback(d, Encode(timing, id))
		if !ok {
			t.Fatalf("team %d: frame did not decode", id)
		}
		if got != id {
			t.Fatalf("decoded %d, want %d", got, id)
		}
	}
}

func TestEncodeShape(t *testing.T) {
	timing := testTiming()
	frame := Encode(timing, 0xFF)
	if len(frame) != 21 {
		t.Fatalf("frame has %d entries, want 21", len(frame))
	}
	if frame[0] != timing.StartEnd || frame[len(frame)-1] != timing.StartEnd {
		t.Fatal("frame must start and end with the long burst")
	}
	for i := 1; i < len(frame)-1; i += 2 {
		if frame[i] != timing.Gap {
			t.Fatalf("entry %d = %s, want gap %s", i, frame[i], timing.Gap)
		}
	}
	// All bits set: every data mark is the 1 width.
	for i := 2; i < len(frame)-2; i += 2 {
		if frame[i] != timing.Bit1 {
			t.Fatalf("data mark %d = %s, want %s", i, frame[i], timing.Bit1)
		}
	}
}

func TestToleranceBoundary(t *testing.T) {
	timing := testTiming()

	// Widths exactly at the tolerance edge still decode.
	skewed := Encode(timing, 42)
	for i := 0; i < len(skewed); i += 2 {
		skewed[i] += timing.Tol
	}
	if got, ok := playback(NewDecoder(timing), skewed); !ok || got != 42 {
		t.Fatalf("tolerance-edge frame: got %d ok=%v, want 42", got, ok)
	}

	// One microsecond past tolerance on a data mark kills the frame.
	broken := Encode(timing, 42)
	broken[2] += timing.Tol + time.Microsecond
	if _, ok := playback(NewDecoder(timing), broken); ok {
		t.Fatal("out-of-tolerance mark decoded")
	}
}

func TestLongGapResetsPartialFrame(t *testing.T) {
	timing := testTiming()
	d := NewDecoder(timing)

	// Half a frame, then silence past the reset threshold.
	frame := Encode(timing, 0xF0)
	gap := time.Duration(0)
	for i := 0; i < 8; i += 2 {
		d.Pulse(frame[i], gap)
		gap = frame[i+1]
	}
	d.Pulse(frame[8], 150*time.Millisecond)

	// A complete frame afterward decodes cleanly.
	if got, ok := playback(d, Encode(timing, 9)); !ok || got != 9 {
		t.Fatalf("after reset: got %d ok=%v, want 9", got, ok)
	}
}

func TestGarbageThenFrame(t *testing.T) {
	timing := testTiming()
	d := NewDecoder(timing)

	for _, noise := range []time.Duration{90 * time.Microsecond, 3 * time.Millisecond, 400 * time.Microsecond} {
		if _, ok := d.Pulse(noise, timing.Gap); ok {
			t.Fatal("noise decoded as a frame")
		}
	}
	if got, ok := playback(d, Encode(timing, 200)); !ok || got != 200 {
		t.Fatalf("after noise: got %d ok=%v, want 200", got, ok)
	}
}

func TestStartBurstMidFrameOpensNewFrame(t *testing.T) {
	timing := testTiming()
	d := NewDecoder(timing)

	// A frame interrupted after three bits by a fresh transmission.
	partial := Encode(timing, 0xFF)
	gap := time.Duration(0)
	for i := 0; i <= 6; i += 2 {
		d.Pulse(partial[i], gap)
		gap = partial[i+1]
	}
	if got, ok := playback(d, Encode(timing, 55)); !ok || got != 55 {
		t.Fatalf("interrupting frame: got %d ok=%v, want 55", got, ok)
	}
}

func TestZeroIDRejected(t *testing.T) {
	timing := testTiming()
	if _, ok := playback(NewDecoder(timing), Encode(timing, 0)); ok {
		t.Fatal("all-zero payload must not decode to a team")
	}
}
