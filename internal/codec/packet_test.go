package codec

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	p := NewPacket(Command, 1, 5, []byte{0x01, 0x02, 0x03})
	framed := p.Frame()

	if len(framed) != 14 {
		t.Fatalf("expected 14-byte frame, got %d", len(framed))
	}
	if framed[0] != SOF {
		t.Fatalf("expected SOF 0x%02x, got 0x%02x", SOF, framed[0])
	}

	decoded, n, err := FromData(framed)
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}
	if n != len(framed) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(framed), n)
	}
	if decoded.Class != Command || decoded.Seq != 1 || decoded.Cmd != 5 {
		t.Fatalf("unexpected header: %+v", decoded)
	}
	if !bytes.Equal(decoded.Data, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("unexpected payload: %v", decoded.Data)
	}
	if decoded.Partial {
		t.Fatalf("expected non-partial decode")
	}
}

// TestFrameEmptyPayloadIsWriteOnly documents that a zero-data Command
// frame (as EnterHighFreqSync/ExitHighFreqSync send, builders.go)
// frames to a declared length of 7, below FromData's 8-byte floor —
// the same floor the original Rust codec enforces (from_data rejects
// any length < 8 regardless of payload). These commands are write-only:
// the device never echoes them back, so this codec never needs to
// decode one locally.
func TestFrameEmptyPayloadIsWriteOnly(t *testing.T) {
	p := NewPacket(Command, 0, 7, nil)
	framed := p.Frame()
	if len(framed) != 11 {
		t.Fatalf("expected 11-byte frame for empty payload, got %d", len(framed))
	}
	_, _, err := FromData(framed)
	if err != ErrInvalidPacketLen {
		t.Fatalf("expected ErrInvalidPacketLen, got %v", err)
	}
}

func TestFromDataInvalidSof(t *testing.T) {
	buf := []byte{0x00, 0x07, 0x00, 0x00}
	_, _, err := FromData(buf)
	if err != ErrInvalidSof {
		t.Fatalf("expected ErrInvalidSof, got %v", err)
	}
}

func TestFromDataTooShort(t *testing.T) {
	_, _, err := FromData([]byte{0xAA, 0x00})
	if err != ErrPacketTooShort {
		t.Fatalf("expected ErrPacketTooShort, got %v", err)
	}
}

func TestFromDataBadHeaderCrc8(t *testing.T) {
	p := NewPacket(Command, 1, 5, []byte{0x01})
	framed := p.Frame()
	framed[3] ^= 0xFF // corrupt header CRC8
	_, _, err := FromData(framed)
	if err != ErrInvalidHeaderCrc8 {
		t.Fatalf("expected ErrInvalidHeaderCrc8, got %v", err)
	}
}

func TestFromDataBadPayloadCrc32(t *testing.T) {
	p := NewPacket(Command, 1, 5, []byte{0x01, 0x02, 0x03})
	framed := p.Frame()
	framed[len(framed)-1] ^= 0xFF // corrupt trailing CRC32 byte
	_, _, err := FromData(framed)
	if err != ErrInvalidDataCrc32 {
		t.Fatalf("expected ErrInvalidDataCrc32, got %v", err)
	}
}

func TestFromDataPartialThenReassemble(t *testing.T) {
	p := NewPacket(Command, 2, 9, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE})
	framed := p.Frame()

	// Feed only the header plus a few payload bytes.
	prefix := framed[:7]
	partial, n, err := FromData(prefix)
	if err != nil {
		t.Fatalf("FromData(prefix): %v", err)
	}
	if !partial.Partial {
		t.Fatalf("expected partial decode")
	}
	if n != len(prefix) {
		t.Fatalf("expected to consume entire prefix, consumed %d of %d", n, len(prefix))
	}

	// Now reassemble with the full frame available.
	full, _, err := FromData(framed)
	if err != nil {
		t.Fatalf("FromData(full): %v", err)
	}
	if full.Partial {
		t.Fatalf("expected non-partial decode on full frame")
	}
	if !bytes.Equal(full.Data, p.Data) {
		t.Fatalf("reassembled data mismatch: got %v want %v", full.Data, p.Data)
	}
}

func TestActivityFromCodeRanges(t *testing.T) {
	cases := []struct {
		in   int64
		want Activity
	}{
		{0, ActivityInactive},
		{250_000_000, ActivityInactive},
		{499_999_999, ActivityInactive},
		{500_000_000, ActivityActive},
		{999_999_999, ActivityActive},
		{1_000_000_000, ActivitySleep},
		{1_499_999_999, ActivitySleep},
		{1_500_000_000, ActivityAwake},
		{9_000_000_000, ActivityAwake},
		{-1, ActivityUnknown},
	}
	for _, c := range cases {
		if got := ActivityFromCode(c.in); got != c.want {
			t.Errorf("ActivityFromCode(%d) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestHistoryReadingIsValid(t *testing.T) {
	valid := &HistoryReading{BPM: 70}
	if !valid.IsValid() {
		t.Fatalf("expected bpm=70 to be valid")
	}
	invalid := &HistoryReading{BPM: 0}
	if invalid.IsValid() {
		t.Fatalf("expected bpm=0 to be invalid")
	}
}
