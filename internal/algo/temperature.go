package algo

import "time"

// skinTempConversionFactor converts the raw thermistor ADC reading to
// degrees Celsius. Empirically derived (firmware passes the ADC
// reading through uninterpreted; per-device calibration happens
// server-side); produces physiologically reasonable wrist
// temperatures (31-37degC) across the observed raw range (582-1125).
const skinTempConversionFactor = 0.04

// skinTempMinRaw is the minimum plausible raw reading; below this the
// sensor is likely off-wrist or faulted.
const skinTempMinRaw = 100

// SkinTempScore is a computed skin temperature for one timestamp.
type SkinTempScore struct {
	Time         time.Time
	TempCelsius float64
}

// CalculateSkinTemp converts a raw thermistor reading to Celsius,
// rejecting implausibly low raw values.
func CalculateSkinTemp(t time.Time, rawValue uint16) (SkinTempScore, bool) {
	if rawValue < skinTempMinRaw {
		return SkinTempScore{}, false
	}
	return SkinTempScore{Time: t, TempCelsius: float64(rawValue) * skinTempConversionFactor}, true
}
