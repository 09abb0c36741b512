package codec

// ImuSample is one interleaved accelerometer/gyroscope sample from the
// IMU-bearing historical layout.
type ImuSample struct {
	AccXG   float32
	AccYG   float32
	AccZG   float32
	GyrXDps float32
	GyrYDps float32
	GyrZDps float32
}

// SensorData is the raw DSP sensor block carried by the V12/V24
// historical layout. These are raw ADC values the device's firmware
// hands off uninterpreted; server-side DSP (or, here, internal/algo)
// is what turns them into SpO2/skin-temp scores.
type SensorData struct {
	PPGGreen      uint16
	PPGRedIR      uint16
	SpO2Red       uint16
	SpO2IR        uint16
	SkinTempRaw   uint16
	AmbientLight  uint16
	LEDDrive1     uint16
	LEDDrive2     uint16
	RespRateRaw   uint16
	SignalQuality uint16
	SkinContact   byte
	AccelGravity  [3]float32
}

// HistoryReading is a decoded historical-data record prior to activity
// narrowing — its Activity field is the raw 32-bit device code, not yet
// mapped to the closed Activity enum (ParsedHistoryReading carries the
// narrowed form, produced by the session/sync layer once a wall-clock
// time is attached).
type HistoryReading struct {
	UnixMillis int64
	BPM        uint8
	RR         []uint16
	Activity   int64
	IMU        []ImuSample
	Sensor     *SensorData
}

// IsValid reports whether the reading should be persisted: a
// HistoryReading is valid iff its heart rate is positive.
func (h *HistoryReading) IsValid() bool {
	return h.BPM > 0
}

const (
	imuThreshold        = 1188
	dspMinLen           = 77
	accelSensitivity    = 1875.0
	gyroSensitivity     = 15.0
	imuSamplesPerAxis   = 100
	imuHeaderBaseline   = 20
)

// ParseHistoricalData routes a HistoricalData-class payload to the
// correct layout decoder by payload length and sequence byte, per
// spec §4.1's routing table.
func ParseHistoricalData(seq byte, data []byte) (*HistoryReading, error) {
	switch {
	case len(data) >= imuThreshold:
		return parseHistoricalIMU(data)
	case (seq == 12 || seq == 24) && len(data) >= dspMinLen:
		return parseHistoricalV12(data)
	default:
		return parseHistoricalGeneric(data)
	}
}

// parseHistoricalGeneric decodes the compact layout: skip 4, unix-s u32
// LE (->ms), skip 6, bpm u8, rr-count u8, up to four u16 LE RR slots
// (zeros elided), activity u32 LE. Shared with the IMU layout, whose
// header is byte-identical through the activity field.
func parseHistoricalGeneric(data []byte) (*HistoryReading, error) {
	return parseHistoricalGenericHeader(data)
}

// parseHistoricalV12 decodes the V12/V24 DSP layout: fixed byte offsets,
// no activity field (implicitly 0 for this layout).
func parseHistoricalV12(data []byte) (*HistoryReading, error) {
	u32At := func(off int) (uint32, bool) {
		if off+4 > len(data) {
			return 0, false
		}
		return uint32(data[off]) | uint32(data[off+1])<<8 |
			uint32(data[off+2])<<16 | uint32(data[off+3])<<24, true
	}
	u16At := func(off int) (uint16, bool) {
		if off+2 > len(data) {
			return 0, false
		}
		return uint16(data[off]) | uint16(data[off+1])<<8, true
	}

	unixS, ok := u32At(4)
	if !ok {
		return nil, ErrInvalidData
	}
	if len(data) < 16 {
		return nil, ErrInvalidData
	}
	bpm := data[14]
	rrCount := int(data[15])

	rrMax := rrCount
	if rrMax > 4 {
		rrMax = 4
	}
	rr := make([]uint16, 0, rrMax)
	for i := 0; i < rrMax; i++ {
		v, ok := u16At(16 + i*2)
		if !ok {
			return nil, ErrInvalidData
		}
		if v != 0 {
			rr = append(rr, v)
		}
	}

	var gravity [3]float32
	for i := 0; i < 3; i++ {
		f, ok := readFloat32LEAt(data, 33+i*4)
		if !ok {
			return nil, ErrInvalidData
		}
		gravity[i] = f
	}

	ppgGreen, ok := u16At(26)
	if !ok {
		return nil, ErrInvalidData
	}
	ppgRedIR, ok := u16At(28)
	if !ok {
		return nil, ErrInvalidData
	}
	if len(data) < 49 {
		return nil, ErrInvalidData
	}
	skinContact := data[48]

	spo2Red, ok := u16At(61)
	if !ok {
		return nil, ErrInvalidData
	}
	spo2IR, ok := u16At(63)
	if !ok {
		return nil, ErrInvalidData
	}
	skinTempRaw, ok := u16At(65)
	if !ok {
		return nil, ErrInvalidData
	}
	ambientLight, ok := u16At(67)
	if !ok {
		return nil, ErrInvalidData
	}
	ledDrive1, ok := u16At(69)
	if !ok {
		return nil, ErrInvalidData
	}
	ledDrive2, ok := u16At(71)
	if !ok {
		return nil, ErrInvalidData
	}
	respRateRaw, ok := u16At(73)
	if !ok {
		return nil, ErrInvalidData
	}
	signalQuality, ok := u16At(75)
	if !ok {
		return nil, ErrInvalidData
	}

	return &HistoryReading{
		UnixMillis: int64(unixS) * 1000,
		BPM:        bpm,
		RR:         rr,
		Activity:   0,
		Sensor: &SensorData{
			PPGGreen:      ppgGreen,
			PPGRedIR:      ppgRedIR,
			SpO2Red:       spo2Red,
			SpO2IR:        spo2IR,
			SkinTempRaw:   skinTempRaw,
			AmbientLight:  ambientLight,
			LEDDrive1:     ledDrive1,
			LEDDrive2:     ledDrive2,
			RespRateRaw:   respRateRaw,
			SignalQuality: signalQuality,
			SkinContact:   skinContact,
			AccelGravity:  gravity,
		},
	}, nil
}

// parseHistoricalIMU decodes the IMU-bearing layout: identical header
// through activity, then six 100-sample big-endian int16 axis blocks at
// offsets adjusted by the number of non-zero RR intervals actually
// present (each consumes 2 header bytes the fixed offsets below assume
// are occupied by RR slots).
func parseHistoricalIMU(data []byte) (*HistoryReading, error) {
	generic, err := parseHistoricalGenericHeader(data)
	if err != nil {
		return nil, err
	}

	headerOffset := imuHeaderBaseline + len(generic.RR)*2

	axisOffset := func(fixed int) int {
		return fixed + (headerOffset - imuHeaderBaseline)
	}

	axes := [6]int{
		axisOffset(85),  // ACC-X
		axisOffset(285), // ACC-Y
		axisOffset(485), // ACC-Z
		axisOffset(688), // GYR-X
		axisOffset(888), // GYR-Y
		axisOffset(1088),// GYR-Z
	}

	samples := make([]ImuSample, imuSamplesPerAxis)
	for axis, off := range axes {
		for i := 0; i < imuSamplesPerAxis; i++ {
			raw, ok := readU16BEAt(data, off+i*2)
			if !ok {
				return nil, ErrInvalidData
			}
			switch axis {
			case 0:
				samples[i].AccXG = float32(raw) / accelSensitivity
			case 1:
				samples[i].AccYG = float32(raw) / accelSensitivity
			case 2:
				samples[i].AccZG = float32(raw) / accelSensitivity
			case 3:
				samples[i].GyrXDps = float32(raw) / gyroSensitivity
			case 4:
				samples[i].GyrYDps = float32(raw) / gyroSensitivity
			case 5:
				samples[i].GyrZDps = float32(raw) / gyroSensitivity
			}
		}
	}

	generic.IMU = samples
	return generic, nil
}

// parseHistoricalGenericHeader decodes just the generic header (unix,
// bpm, rr, activity) without requiring the payload to end there —
// used as the first stage of the IMU layout, which has many more bytes
// following.
func parseHistoricalGenericHeader(data []byte) (*HistoryReading, error) {
	c := newCursor(data)
	if !c.skip(4) {
		return nil, ErrInvalidData
	}
	unixS, ok := c.readU32LE()
	if !ok {
		return nil, ErrInvalidData
	}
	if !c.skip(6) {
		return nil, ErrInvalidData
	}
	bpm, ok := c.readByte()
	if !ok {
		return nil, ErrInvalidData
	}
	rrCount, ok := c.readByte()
	if !ok {
		return nil, ErrInvalidData
	}

	rr := make([]uint16, 0, 4)
	for i := 0; i < 4; i++ {
		v, ok := c.readU16LE()
		if !ok {
			return nil, ErrInvalidData
		}
		if v != 0 {
			rr = append(rr, v)
		}
	}
	if int(rrCount) != len(rr) {
		return nil, ErrInvalidRRCount
	}

	activity, ok := c.readU32LE()
	if !ok {
		return nil, ErrInvalidData
	}

	return &HistoryReading{
		UnixMillis: int64(unixS) * 1000,
		BPM:        bpm,
		RR:         rr,
		Activity:   int64(activity),
	}, nil
}
