package algo

import (
	"math"
	"time"

	"github.com/vivek-dodia/openwhoop/internal/codec"
)

// idealSleepDuration is the denominator sleep_score divides by; the
// integer division by this constant (truncating before the cast to
// f64) is deliberate and preserved from the original — any sleep
// under 8 hours truncates its raw duration-over-ideal ratio to 0.
const idealSleepDuration = 8 * time.Hour

// rollingHRVWindow is the window size rolling_hrv slides a per-reading
// mean-RR series through.
const rollingHRVWindow = 300

// SleepCycle is one detected and scored sleep period.
type SleepCycle struct {
	// ID is the period's end-date, matching the original's
	// id = event.end.date() (a sleep cycle's identity is the day it
	// ended on, not the day it started).
	ID      time.Time
	Start   time.Time
	End     time.Time
	MinBPM  uint8
	MaxBPM  uint8
	AvgBPM  uint8
	MinHRV  uint64
	MaxHRV  uint64
	AvgHRV  uint64
	Score   float64
}

// Duration returns End-Start.
func (s SleepCycle) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// SleepCycleFromEvent builds a scored SleepCycle from an activity
// period already identified as the Sleep segment (via FindSleep) plus
// the full reading history it should pull bpm/RR statistics from.
func SleepCycleFromEvent(event ActivityPeriod, history []codec.ParsedHistoryReading) SleepCycle {
	var heartRates []uint64
	var perReadingRR []uint64

	for _, h := range history {
		if h.Time.Before(event.Start) || h.Time.After(event.End) {
			continue
		}
		heartRates = append(heartRates, uint64(h.BPM))
		if len(h.RR) > 0 {
			var sum uint64
			for _, rr := range h.RR {
				sum += uint64(rr)
			}
			perReadingRR = append(perReadingRR, sum/uint64(len(h.RR)))
		}
	}

	rollingHRV := rollingHRV(perReadingRR)

	var minHRV, maxHRV, avgHRV uint64
	if len(rollingHRV) > 0 {
		minHRV, maxHRV = rollingHRV[0], rollingHRV[0]
		var sum uint64
		for _, v := range rollingHRV {
			if v < minHRV {
				minHRV = v
			}
			if v > maxHRV {
				maxHRV = v
			}
			sum += v
		}
		avgHRV = sum / uint64(len(rollingHRV))
	}

	var minBPM, maxBPM uint8
	var avgBPM uint8
	if len(heartRates) > 0 {
		minV, maxV := heartRates[0], heartRates[0]
		var sum uint64
		for _, v := range heartRates {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			sum += v
		}
		minBPM, maxBPM = uint8(minV), uint8(maxV)
		avgBPM = uint8(sum / uint64(len(heartRates)))
	}

	return SleepCycle{
		ID:     time.Date(event.End.Year(), event.End.Month(), event.End.Day(), 0, 0, 0, 0, event.End.Location()),
		Start:  event.Start,
		End:    event.End,
		MinBPM: minBPM,
		MaxBPM: maxBPM,
		AvgBPM: avgBPM,
		MinHRV: minHRV,
		MaxHRV: maxHRV,
		AvgHRV: avgHRV,
		Score:  SleepScore(event.Start, event.End),
	}
}

// rollingHRV slides a 300-sample window across the per-reading mean-RR
// series and computes an RMSSD for each full window.
func rollingHRV(rr []uint64) []uint64 {
	if len(rr) < rollingHRVWindow {
		return nil
	}
	out := make([]uint64, 0, len(rr)-rollingHRVWindow+1)
	for start := 0; start+rollingHRVWindow <= len(rr); start++ {
		window := rr[start : start+rollingHRVWindow]
		if v, ok := calculateRMSSD(window); ok {
			out = append(out, v)
		}
	}
	return out
}

// calculateRMSSD computes the root-mean-square of successive
// differences over window, truncating the final sqrt to uint64 exactly
// as the original's `.sqrt() as u64` cast does.
func calculateRMSSD(window []uint64) (uint64, bool) {
	if len(window) < 2 {
		return 0, false
	}
	var sumSq float64
	for i := 1; i < len(window); i++ {
		diff := float64(window[i]) - float64(window[i-1])
		sumSq += diff * diff
	}
	rmssd := sumSq / float64(len(window)-1)
	return uint64(math.Sqrt(rmssd)), true
}

// SleepScore computes the 0-100 sleep score from start/end: duration
// in seconds is integer-divided by the 8-hour ideal BEFORE the cast to
// float, so any sleep under 8 hours scores exactly 0 and there is no
// partial credit below the full-ideal mark — this integer-truncation
// behavior is deliberately preserved from the original, not a bug.
func SleepScore(start, end time.Time) float64 {
	durationSeconds := int64(end.Sub(start) / time.Second)
	idealSeconds := int64(idealSleepDuration / time.Second)
	score := float64(durationSeconds / idealSeconds)
	result := score * 100.0
	if result < 0 {
		return 0
	}
	if result > 100 {
		return 100
	}
	return result
}
