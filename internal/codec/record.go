package codec

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ParsedHistoryReading is a HistoryReading with its activity code
// narrowed to the closed Activity enum and its timestamp converted to
// a wall-clock time.Time, the form the sync controller and analytics
// packages operate on.
type ParsedHistoryReading struct {
	Time     time.Time
	BPM      uint8
	RR       []uint16
	Activity Activity
	IMU      []ImuSample
	Sensor   *SensorData
}

// Parsed converts a raw decoded HistoryReading into its wall-clock,
// activity-narrowed form.
func (h *HistoryReading) Parsed() ParsedHistoryReading {
	return ParsedHistoryReading{
		Time:     time.UnixMilli(h.UnixMillis),
		BPM:      h.BPM,
		RR:       h.RR,
		Activity: ActivityFromCode(h.Activity),
		IMU:      h.IMU,
		Sensor:   h.Sensor,
	}
}

// HistoryMetadata is a decoded Metadata-class record.
type HistoryMetadata struct {
	UnixSeconds uint32
	Data        uint32
	Subtype     MetadataType
}

// ConsoleLog is a decoded ConsoleLogs-class record.
type ConsoleLog struct {
	UnixSeconds uint32
	Log         string
}

// EventRecord is a decoded Event-class record (RunAlarm/Event/UnknownEvent in
// the source's terms are distinguished by Cmd, carried by the caller —
// the codec itself just extracts the timestamp and raw command id).
type EventRecord struct {
	UnixSeconds uint32
	Cmd         byte
}

// VersionInfo is the decoded reply to ReportVersionInfo: two
// independently-versioned subsystems, each a dotted-quad string.
type VersionInfo struct {
	Harvard  [4]byte
	Boylston [4]byte
}

func (v VersionInfo) HarvardString() string  { return dottedQuad(v.Harvard) }
func (v VersionInfo) BoylstonString() string { return dottedQuad(v.Boylston) }

func dottedQuad(b [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

// consoleLogMarker is a firmware framing artifact the device prepends
// to some console-log payloads before the human-readable text; the
// original source strips it before the lossy UTF-8 decode.
var consoleLogMarker = []byte{0x34, 0x00, 0x01}

// ParseConsoleLog decodes a ConsoleLogs-class payload: unix-seconds u32
// LE, then the remaining bytes as a (possibly marker-prefixed) string
// decoded lossily — invalid UTF-8 sequences become the replacement
// character rather than failing the decode.
func ParseConsoleLog(data []byte) (*ConsoleLog, error) {
	c := newCursor(data)
	unixS, ok := c.readU32LE()
	if !ok {
		return nil, ErrInvalidData
	}
	rest := data[c.off:]
	if len(rest) >= len(consoleLogMarker) && string(rest[:len(consoleLogMarker)]) == string(consoleLogMarker) {
		rest = rest[len(consoleLogMarker):]
	}
	return &ConsoleLog{UnixSeconds: unixS, Log: toValidUTF8(rest)}, nil
}

// toValidUTF8 performs the same "lossy decode" spec §3 calls for:
// invalid byte sequences are replaced rather than rejected.
func toValidUTF8(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// ParseHistoryMetadata decodes a Metadata-class payload: unix-seconds
// u32 LE, a u32 LE data field, with the subtype carried separately on
// the enclosing Packet's Cmd byte (spec §3/§6).
func ParseHistoryMetadata(cmd byte, data []byte) (*HistoryMetadata, error) {
	c := newCursor(data)
	unixS, ok := c.readU32LE()
	if !ok {
		return nil, ErrInvalidData
	}
	payload, ok := c.readU32LE()
	if !ok {
		return nil, ErrInvalidData
	}
	var subtype MetadataType
	switch MetadataType(cmd) {
	case HistoryStart, HistoryEnd, HistoryComplete:
		subtype = MetadataType(cmd)
	default:
		return nil, &InvalidMetadataTypeError{Byte: cmd}
	}
	return &HistoryMetadata{UnixSeconds: unixS, Data: payload, Subtype: subtype}, nil
}

// ParseEvent decodes an Event-class payload: unix-seconds u32 LE; the
// command identifier is carried on the enclosing Packet's Cmd byte.
func ParseEvent(cmd byte, data []byte) (*EventRecord, error) {
	c := newCursor(data)
	unixS, ok := c.readU32LE()
	if !ok {
		return nil, ErrInvalidData
	}
	return &EventRecord{UnixSeconds: unixS, Cmd: cmd}, nil
}

// ParseVersionInfo decodes a CommandResponse payload replying to
// ReportVersionInfo: two four-byte dotted-quad version identifiers.
func ParseVersionInfo(data []byte) (*VersionInfo, error) {
	if len(data) < 8 {
		return nil, ErrInvalidData
	}
	var v VersionInfo
	copy(v.Harvard[:], data[0:4])
	copy(v.Boylston[:], data[4:8])
	return &v, nil
}
