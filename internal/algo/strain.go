package algo

import (
	"math"

	"github.com/vivek-dodia/openwhoop/internal/codec"
)

// minStrainReadings is the minimum window size Calculate requires (10
// minutes at 1Hz).
const minStrainReadings = 600

// maxStrain is the ceiling of the WHOOP 0-21 strain scale.
const maxStrain = 21.0

// ln7201 anchors the log mapping: 24h at zone 5 (max HR) yields a raw
// TRIMP of 7200, and ln(7200+1) / ln7201 == 1, so that calibration
// point maps to exactly maxStrain.
var ln7201 = math.Log(7201)

// StrainCalculator computes Edwards' HRR-zone TRIMP strain, calibrated
// to the WHOOP 0-21 scale.
type StrainCalculator struct {
	MaxHR     uint8
	RestingHR uint8
}

// StrainScore is the computed 0-21 strain value.
type StrainScore float64

// Calculate computes strain over hr, requiring at least
// minStrainReadings samples and MaxHR strictly greater than RestingHR.
func (c StrainCalculator) Calculate(hr []codec.ParsedHistoryReading) (StrainScore, bool) {
	if len(hr) < minStrainReadings || c.MaxHR <= c.RestingHR {
		return 0, false
	}

	sampleDurationMin := sampleDurationMinutes(hr)
	hrReserve := float64(c.MaxHR) - float64(c.RestingHR)
	trimp := edwardsTRIMP(hr, c.RestingHR, hrReserve, sampleDurationMin)

	return StrainScore(trimpToStrain(trimp)), true
}

// sampleDurationMinutes estimates the sample interval from the first
// two readings, falling back to 1 second if there's only one reading
// or the first two share a timestamp.
func sampleDurationMinutes(hr []codec.ParsedHistoryReading) float64 {
	if len(hr) < 2 {
		return 1.0 / 60.0
	}
	dt := hr[1].Time.Sub(hr[0].Time)
	if dt < 0 {
		dt = -dt
	}
	if dt == 0 {
		return 1.0 / 60.0
	}
	return dt.Minutes()
}

// zoneWeight returns the Edwards HRR zone weight (0-5) for one bpm
// sample.
func zoneWeight(bpm uint8, restingHR uint8, hrReserve float64) float64 {
	pct := (float64(bpm) - float64(restingHR)) / hrReserve * 100.0
	switch {
	case pct >= 90.0:
		return 5
	case pct >= 80.0:
		return 4
	case pct >= 70.0:
		return 3
	case pct >= 60.0:
		return 2
	case pct >= 50.0:
		return 1
	default:
		return 0
	}
}

func edwardsTRIMP(hr []codec.ParsedHistoryReading, restingHR uint8, hrReserve, sampleDurationMin float64) float64 {
	var trimp float64
	for _, r := range hr {
		trimp += sampleDurationMin * zoneWeight(r.BPM, restingHR, hrReserve)
	}
	return trimp
}

// trimpToStrain maps raw TRIMP to the 0-21 WHOOP scale via a
// calibrated log transform, rounded to 2 decimal places.
func trimpToStrain(trimp float64) float64 {
	if trimp <= 0 {
		return 0
	}
	raw := maxStrain * math.Log(trimp+1) / ln7201
	return math.Round(raw*100) / 100
}
