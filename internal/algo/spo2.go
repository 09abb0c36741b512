package algo

import (
	"math"
	"time"
)

// spo2WindowSize is the minimum number of (non-zero) readings
// Calculate requires.
const spo2WindowSize = 30

// SpO2Reading is one raw optical sample Calculate consumes.
type SpO2Reading struct {
	Time     time.Time
	SpO2Red  uint16
	SpO2IR   uint16
}

// SpO2Score is a computed blood-oxygen percentage for the last
// timestamp in its input window.
type SpO2Score struct {
	Time           time.Time
	SpO2Percentage float64
}

// CalculateSpO2 computes a ratio-of-ratios SpO2 estimate from a window
// of optical readings. Requires at least 30 readings with non-zero
// red/IR channels (readings with a zero channel are filtered out
// before the 30-sample floor is checked again), and non-trivial AC
// variation on both channels.
func CalculateSpO2(readings []SpO2Reading) (SpO2Score, bool) {
	if len(readings) < spo2WindowSize {
		return SpO2Score{}, false
	}

	var valid []SpO2Reading
	for _, r := range readings {
		if r.SpO2Red > 0 && r.SpO2IR > 0 {
			valid = append(valid, r)
		}
	}
	if len(valid) < spo2WindowSize {
		return SpO2Score{}, false
	}

	n := float64(len(valid))
	var sumRed, sumIR float64
	for _, r := range valid {
		sumRed += float64(r.SpO2Red)
		sumIR += float64(r.SpO2IR)
	}
	meanRed := sumRed / n
	meanIR := sumIR / n

	if meanRed < 1.0 || meanIR < 1.0 {
		return SpO2Score{}, false
	}

	var sumSqRed, sumSqIR float64
	for _, r := range valid {
		dr := float64(r.SpO2Red) - meanRed
		di := float64(r.SpO2IR) - meanIR
		sumSqRed += dr * dr
		sumSqIR += di * di
	}
	acRed := math.Sqrt(sumSqRed / n)
	acIR := math.Sqrt(sumSqIR / n)

	if acRed < 0.001 || acIR < 0.001 {
		return SpO2Score{}, false
	}

	ratio := (acRed / meanRed) / (acIR / meanIR)
	spo2 := 110.0 - 25.0*ratio
	if spo2 < 70.0 {
		spo2 = 70.0
	}
	if spo2 > 100.0 {
		spo2 = 100.0
	}

	return SpO2Score{Time: valid[len(valid)-1].Time, SpO2Percentage: spo2}, true
}
