package codec

import (
	"math"
	"testing"
)

func leU32Bytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func leU16Bytes(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

// buildGenericPayload constructs a compact historical-data payload
// matching parseHistoricalGeneric's layout: 4 skip bytes, unix-s u32 LE,
// 6 skip bytes, bpm u8, rr-count u8, 4x u16 LE RR slots, activity u32 LE.
func buildGenericPayload(unixS uint32, bpm uint8, rr []uint16, activity uint32) []byte {
	buf := make([]byte, 4)
	buf = append(buf, leU32Bytes(unixS)...)
	buf = append(buf, make([]byte, 6)...)
	buf = append(buf, bpm, byte(len(rr)))
	slots := make([]uint16, 4)
	copy(slots, rr)
	for _, v := range slots {
		buf = append(buf, leU16Bytes(v)...)
	}
	buf = append(buf, leU32Bytes(activity)...)
	return buf
}

func TestParseHistoricalGenericDecode(t *testing.T) {
	payload := buildGenericPayload(1735831144, 62, []uint16{837}, 0)

	reading, err := ParseHistoricalData(0, payload)
	if err != nil {
		t.Fatalf("ParseHistoricalData: %v", err)
	}
	if reading.UnixMillis != 1735831144*1000 {
		t.Errorf("unix millis = %d, want %d", reading.UnixMillis, 1735831144*1000)
	}
	if reading.BPM != 62 {
		t.Errorf("bpm = %d, want 62", reading.BPM)
	}
	if len(reading.RR) != 1 || reading.RR[0] != 837 {
		t.Errorf("rr = %v, want [837]", reading.RR)
	}
	if reading.Activity != 0 {
		t.Errorf("activity = %d, want 0", reading.Activity)
	}
	if reading.Sensor != nil {
		t.Errorf("expected no sensor block on generic layout")
	}
}

func TestParseHistoricalGenericRRCountMismatch(t *testing.T) {
	payload := buildGenericPayload(1000, 70, []uint16{800}, 0)
	// Lie about the rr-count byte.
	payload[4+4+6+1] = 2
	_, err := ParseHistoricalData(0, payload)
	if err != ErrInvalidRRCount {
		t.Fatalf("expected ErrInvalidRRCount, got %v", err)
	}
}

func TestParseHistoricalV12Decode(t *testing.T) {
	payload := make([]byte, 77)
	copy(payload[4:8], leU32Bytes(1747484318))
	payload[14] = 64  // bpm
	payload[15] = 0   // rr-count
	copy(payload[61:63], leU16Bytes(480)) // spo2_red
	copy(payload[63:65], leU16Bytes(599)) // spo2_ir
	copy(payload[65:67], leU16Bytes(747)) // skin_temp_raw
	copy(payload[69:71], leU16Bytes(313)) // led_drive_1
	copy(payload[71:73], leU16Bytes(1168)) // led_drive_2
	// gravity_z at [41:45] (33 + 2*4)
	copy(payload[41:45], float32LEBytes(0.98))

	reading, err := ParseHistoricalData(12, payload)
	if err != nil {
		t.Fatalf("ParseHistoricalData: %v", err)
	}
	if reading.UnixMillis != 1747484318*1000 {
		t.Errorf("unix millis = %d, want %d", reading.UnixMillis, 1747484318*1000)
	}
	if reading.BPM != 64 {
		t.Errorf("bpm = %d, want 64", reading.BPM)
	}
	if len(reading.RR) != 0 {
		t.Errorf("rr = %v, want empty", reading.RR)
	}
	if reading.Sensor == nil {
		t.Fatalf("expected sensor block on V12 layout")
	}
	if reading.Sensor.SpO2Red != 480 || reading.Sensor.SpO2IR != 599 {
		t.Errorf("spo2 red/ir = %d/%d, want 480/599", reading.Sensor.SpO2Red, reading.Sensor.SpO2IR)
	}
	if reading.Sensor.SkinTempRaw != 747 {
		t.Errorf("skin temp raw = %d, want 747", reading.Sensor.SkinTempRaw)
	}
	if reading.Sensor.LEDDrive1 != 313 || reading.Sensor.LEDDrive2 != 1168 {
		t.Errorf("led drive = %d/%d, want 313/1168", reading.Sensor.LEDDrive1, reading.Sensor.LEDDrive2)
	}
	if reading.Sensor.AccelGravity[2] <= 0.9 {
		t.Errorf("gravity_z = %f, want > 0.9", reading.Sensor.AccelGravity[2])
	}
}

func float32LEBytes(f float32) []byte {
	bits := math.Float32bits(f)
	return []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
}

func TestParseHistoricalIMUDecode(t *testing.T) {
	header := buildGenericPayload(1000, 55, nil, 500_000_000)
	// Header is 4+4+6+1+1+8+4 = 28 bytes; pad to imuHeaderBaseline (20)
	// plus rr-count*2 (0) then lay out 6 axes of 100 big-endian int16
	// samples starting at the fixed offsets.
	payload := make([]byte, imuThreshold+200)
	copy(payload, header)

	setAxis := func(offset int, value int16) {
		for i := 0; i < imuSamplesPerAxis; i++ {
			off := offset + i*2
			payload[off] = byte(uint16(value) >> 8)
			payload[off+1] = byte(uint16(value))
		}
	}
	setAxis(85, 1875)   // 1g on accel axis
	setAxis(285, 0)
	setAxis(485, 0)
	setAxis(688, 0)
	setAxis(888, 0)
	setAxis(1088, 0)

	reading, err := ParseHistoricalData(0, payload)
	if err != nil {
		t.Fatalf("ParseHistoricalData: %v", err)
	}
	if len(reading.IMU) != imuSamplesPerAxis {
		t.Fatalf("expected %d imu samples, got %d", imuSamplesPerAxis, len(reading.IMU))
	}
	if reading.IMU[0].AccXG < 0.99 || reading.IMU[0].AccXG > 1.01 {
		t.Errorf("acc_x = %f, want ~1.0g", reading.IMU[0].AccXG)
	}
}
