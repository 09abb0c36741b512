package codec

// RecordKind tags which concrete record a decoded Data value holds.
type RecordKind int

const (
	KindHistoryReading RecordKind = iota
	KindHistoryMetadata
	KindConsoleLog
	KindEvent
	KindVersionInfo
	KindUnknown
)

// Record is the decoded-record tagged union (spec §3's "Decoded
// Record"). Exactly one of the typed fields is non-nil, selected by
// Kind, except for KindUnknown, which sets none of them.
type Record struct {
	Kind     RecordKind
	Reading  *HistoryReading
	Metadata *HistoryMetadata
	Console  *ConsoleLog
	Ev       *EventRecord
	Version  *VersionInfo
}

// FromPacket dispatches a decoded Packet to the appropriate structured
// decoder by class, mirroring the source's WhoopData::from_packet.
// Packet classes this core does not decode (realtime variants) yield
// ErrUnimplemented.
func FromPacket(p *Packet) (*Record, error) {
	switch p.Class {
	case HistoricalData, HistoricalImu:
		reading, err := ParseHistoricalData(p.Seq, p.Data)
		if err != nil {
			return nil, err
		}
		return &Record{Kind: KindHistoryReading, Reading: reading}, nil

	case Metadata:
		md, err := ParseHistoryMetadata(p.Cmd, p.Data)
		if err != nil {
			return nil, err
		}
		return &Record{Kind: KindHistoryMetadata, Metadata: md}, nil

	case ConsoleLogs:
		cl, err := ParseConsoleLog(p.Data)
		if err != nil {
			return nil, err
		}
		return &Record{Kind: KindConsoleLog, Console: cl}, nil

	case Event:
		ev, err := ParseEvent(p.Cmd, p.Data)
		if err != nil {
			return nil, err
		}
		return &Record{Kind: KindEvent, Ev: ev}, nil

	case CommandResponse:
		if CommandByte(p.Cmd) == CmdReportVersionInfo {
			vi, err := ParseVersionInfo(p.Data)
			if err != nil {
				return nil, err
			}
			return &Record{Kind: KindVersionInfo, Version: vi}, nil
		}
		return &Record{Kind: KindUnknown}, nil

	case RealtimeData, RealtimeRawData, RealtimeImu:
		return nil, ErrUnimplemented

	default:
		return nil, ErrUnimplemented
	}
}
