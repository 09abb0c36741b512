package codec

import "fmt"

// Packet is a decoded framed packet: start-of-frame validated, header
// CRC8 validated, and — unless Partial is set — payload CRC32
// validated. Class/Seq/Cmd are the first three payload bytes; Data is
// everything after them.
type Packet struct {
	Class   PacketClass
	Seq     byte
	Cmd     byte
	Data    []byte
	Partial bool
	// declaredLen is the little-endian length field read from the
	// header; it is the L a partial packet is still waiting to reach.
	declaredLen int
}

func (p *Packet) String() string {
	return fmt.Sprintf("Packet{class=%s seq=%d cmd=%d len(data)=%d partial=%v}",
		p.Class, p.Seq, p.Cmd, len(p.Data), p.Partial)
}

// WithSeq returns a copy of the packet with its sequence byte replaced,
// used by callers that need to stamp an outbound packet's layout-version
// tag without mutating a shared instance.
func (p *Packet) WithSeq(seq byte) *Packet {
	cp := *p
	cp.Seq = seq
	return &cp
}

// NewPacket is the canonical way to build an outbound packet prior to
// framing.
func NewPacket(class PacketClass, seq, cmd byte, data []byte) *Packet {
	return &Packet{Class: class, Seq: seq, Cmd: cmd, Data: data}
}

// Frame serializes the packet into its on-wire framed form: SOF, LE
// length, header CRC8, payload (class/seq/cmd/data), trailing LE
// CRC32 over the payload.
func (p *Packet) Frame() []byte {
	payload := make([]byte, 0, 3+len(p.Data))
	payload = append(payload, byte(p.Class), p.Seq, p.Cmd)
	payload = append(payload, p.Data...)

	length := len(payload) + 4 // +4 for the trailing CRC32
	out := make([]byte, 0, 3+length)
	out = append(out, SOF, byte(length), byte(length>>8))
	out = append(out, crc8Header(out[1:3]))
	out = append(out, payload...)

	crc := crc32IEEE(payload)
	out = append(out, byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
	return out
}

// FromData decodes a framed packet from the front of buf. It returns
// the packet (which may be Partial) and the number of bytes consumed
// from buf, or an error if the frame is structurally invalid.
//
// A partial result is returned — with no error — when buf holds the
// full header but fewer than the declared L bytes of payload; the
// caller is expected to keep buffering and call FromData again once
// more bytes have arrived (see internal/session's reassembly loop).
func FromData(buf []byte) (*Packet, int, error) {
	if len(buf) < 4 {
		return nil, 0, ErrPacketTooShort
	}
	if buf[0] != SOF {
		return nil, 0, ErrInvalidSof
	}

	length := int(buf[1]) | int(buf[2])<<8
	if length < 8 {
		return nil, 0, ErrInvalidPacketLen
	}
	if crc8Header(buf[1:3]) != buf[3] {
		return nil, 0, ErrInvalidHeaderCrc8
	}

	payloadLen := length - 4
	available := len(buf) - 4
	if available < length {
		// Partial: emit what we have, flagged, skipping the CRC32 check.
		data := append([]byte(nil), buf[4:]...)
		p, err := decodeStructured(data, true)
		if err != nil {
			return nil, 0, err
		}
		p.declaredLen = length
		return p, len(buf), nil
	}

	payload := buf[4 : 4+payloadLen]
	crcOff := 4 + payloadLen
	gotCRC := uint32(buf[crcOff]) | uint32(buf[crcOff+1])<<8 |
		uint32(buf[crcOff+2])<<16 | uint32(buf[crcOff+3])<<24
	if crc32IEEE(payload) != gotCRC {
		return nil, 0, ErrInvalidDataCrc32
	}

	p, err := decodeStructured(payload, false)
	if err != nil {
		return nil, 0, err
	}
	p.declaredLen = length
	return p, crcOff + 4, nil
}

// decodeStructured splits a payload into class/seq/cmd/data. It does
// not itself decode the higher-level record — that's FromPacket's job
// — but it validates the packet class is well-formed.
func decodeStructured(payload []byte, partial bool) (*Packet, error) {
	if len(payload) < 3 {
		if partial {
			return &Packet{Data: payload, Partial: true}, nil
		}
		return nil, ErrInvalidData
	}
	class := PacketClass(payload[0])
	switch class {
	case Command, CommandResponse, RealtimeData, RealtimeRawData,
		HistoricalData, Event, Metadata, ConsoleLogs, RealtimeImu, HistoricalImu:
	default:
		if partial {
			// Partial frames may still be mid-header; don't reject
			// until the class byte is trustworthy (full frame).
			break
		}
		return nil, &InvalidPacketTypeError{Byte: payload[0]}
	}
	return &Packet{
		Class:   class,
		Seq:     payload[1],
		Cmd:     payload[2],
		Data:    append([]byte(nil), payload[3:]...),
		Partial: partial,
	}, nil
}

// DeclaredLen exposes the length this packet's header declared, used by
// the reassembly state machine's "+3" bookkeeping (spec §4.2).
func (p *Packet) DeclaredLen() int {
	return p.declaredLen
}
