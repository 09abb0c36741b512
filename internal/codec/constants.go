// Package codec implements the wire protocol spoken over the device's
// low-energy characteristics: frame encode/decode with header CRC8 and
// payload CRC32, and structured decoding of the packet classes the host
// cares about.
package codec

// ServiceUUID identifies the GATT service exposing every characteristic
// this package's frames travel over. The suffix of each characteristic
// UUID varies only in its third hex pair (see CharSuffix* below).
const ServiceUUID = "61080001-8d6d-82b8-614a-1c8cb0f8dcc6"

// Characteristic UUID third-pair suffixes, per the direction of travel.
const (
	CharSuffixCommandToDevice   = "0002"
	CharSuffixCommandFromDevice = "0003"
	CharSuffixEvents            = "0004"
	CharSuffixData              = "0005"
	CharSuffixMemfault          = "0007"
)

// SOF is the start-of-frame byte every framed packet begins with.
const SOF byte = 0xAA

// PacketClass identifies the class byte of a framed packet.
type PacketClass byte

const (
	Command          PacketClass = 35
	CommandResponse  PacketClass = 36
	RealtimeData     PacketClass = 40
	RealtimeRawData  PacketClass = 43
	HistoricalData   PacketClass = 47
	Event            PacketClass = 48
	Metadata         PacketClass = 49
	ConsoleLogs      PacketClass = 50
	RealtimeImu      PacketClass = 51
	HistoricalImu    PacketClass = 52
)

func (c PacketClass) String() string {
	switch c {
	case Command:
		return "Command"
	case CommandResponse:
		return "CommandResponse"
	case RealtimeData:
		return "RealtimeData"
	case RealtimeRawData:
		return "RealtimeRawData"
	case HistoricalData:
		return "HistoricalData"
	case Event:
		return "Event"
	case Metadata:
		return "Metadata"
	case ConsoleLogs:
		return "ConsoleLogs"
	case RealtimeImu:
		return "RealtimeImu"
	case HistoricalImu:
		return "HistoricalImu"
	default:
		return "Unknown"
	}
}

// MetadataType identifies the subtype byte of a Metadata-class packet.
type MetadataType byte

const (
	HistoryStart    MetadataType = 1
	HistoryEnd      MetadataType = 2
	HistoryComplete MetadataType = 3
)

// CommandByte identifies outbound command packets this host sends.
type CommandByte byte

const (
	CmdSetClock                 CommandByte = 10
	CmdToggleR7DataCollection   CommandByte = 16
	CmdSendHistoricalData       CommandByte = 22
	CmdHistoricalDataResult     CommandByte = 23
	CmdRebootStrap              CommandByte = 29
	CmdForceTrim                CommandByte = 25
	CmdGetHelloHarvard          CommandByte = 35
	CmdSetAlarmTime             CommandByte = 66
	CmdGetAdvertisingNameHarvard CommandByte = 76
	CmdReportVersionInfo        CommandByte = 7
	CmdToggleImuModeHistorical  CommandByte = 105
	CmdToggleImuMode            CommandByte = 106
	CmdEnableOpticalData        CommandByte = 107
	CmdToggleOpticalMode        CommandByte = 108
	CmdEnterHighFreqSync        CommandByte = 96
	CmdExitHighFreqSync         CommandByte = 97
)

// Activity is the closed enumeration the raw 32-bit activity code is
// narrowed into.
type Activity int

const (
	ActivityUnknown Activity = iota
	ActivityInactive
	ActivityActive
	ActivitySleep
	ActivityAwake
)

func (a Activity) String() string {
	switch a {
	case ActivityInactive:
		return "Inactive"
	case ActivityActive:
		return "Active"
	case ActivitySleep:
		return "Sleep"
	case ActivityAwake:
		return "Awake"
	default:
		return "Unknown"
	}
}

// ActivityFromCode narrows the raw 32-bit/64-bit activity code carried on
// a HistoryReading into the closed Activity enumeration. Quartering
// boundaries: [0, 5e8) Inactive, [5e8, 1e9) Active, [1e9, 1.5e9) Sleep,
// [1.5e9, max] Awake; negative values are Unknown.
func ActivityFromCode(value int64) Activity {
	switch {
	case value < 0:
		return ActivityUnknown
	case value < 500_000_000:
		return ActivityInactive
	case value < 1_000_000_000:
		return ActivityActive
	case value < 1_500_000_000:
		return ActivitySleep
	default:
		return ActivityAwake
	}
}
