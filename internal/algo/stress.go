package algo

import (
	"math"
	"sort"
	"time"

	"github.com/vivek-dodia/openwhoop/internal/codec"
)

// minStressReadingPeriod is the minimum window size CalculateStress
// requires; the caller is expected to pass a 120-reading (or larger)
// slice, not rely on this package to window internally.
const minStressReadingPeriod = 120

// stressBinWidth is the histogram bin width (ms) Baevsky's Stress
// Index uses.
const stressBinWidth = 50

// StressScore is a computed Baevsky Stress Index value for the last
// timestamp in its input window.
type StressScore struct {
	Time  time.Time
	Score float64
}

// CalculateStress computes the Baevsky Stress Index over hr, which
// must already be a window of at least 120 readings (the function
// itself does not slide a window). It prefers real RR intervals
// flattened across the whole window when there are at least 120 of
// them, falling back to a BPM-derived synthetic RR series otherwise.
func CalculateStress(hr []codec.ParsedHistoryReading) (StressScore, bool) {
	if len(hr) < minStressReadingPeriod {
		return StressScore{}, false
	}

	lastTime := hr[len(hr)-1].Time

	var realRR []uint16
	for _, r := range hr {
		realRR = append(realRR, r.RR...)
	}

	var rr []uint16
	if len(realRR) >= minStressReadingPeriod {
		rr = realRR
	} else {
		rr = make([]uint16, len(hr))
		for i, r := range hr {
			rr[i] = uint16(math.Round(60.0 / float64(r.BPM) * 1000.0))
		}
	}

	return StressScore{Time: lastTime, Score: stressScore(rr)}, true
}

// stressScore implements the histogram-mode Baevsky SI formula: a
// 50ms-bin histogram of RR intervals, the modal bin's frequency and
// center, and the full variation range, combined per the standard
// SI = AMo / (2 x VR x Mo) formula (scaled by the unit conventions
// the original source uses — ms histogram, seconds range).
func stressScore(rr []uint16) float64 {
	count := len(rr)

	min, max := rr[0], rr[0]
	bins := map[uint16]uint16{}
	for _, v := range rr {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		bin := v / stressBinWidth
		bins[bin]++
	}

	// Iterate bins in ascending key order and keep the last
	// maximal-frequency bin seen, matching Rust's BTreeMap-iteration
	// Iterator::max_by tie-break (later/larger key wins ties).
	orderedBins := make([]uint16, 0, len(bins))
	for bin := range bins {
		orderedBins = append(orderedBins, bin)
	}
	sort.Slice(orderedBins, func(i, j int) bool { return orderedBins[i] < orderedBins[j] })

	var modeBin, modeFreq uint16
	for _, bin := range orderedBins {
		freq := bins[bin]
		if freq >= modeFreq {
			modeBin, modeFreq = bin, freq
		}
	}
	mode := modeBin*stressBinWidth + stressBinWidth/2

	vr := float64(max-min) / 1000.0

	// Near-zero variability means the histogram is maximally narrow and
	// tall: maximum sympathetic-dominance stress.
	if vr < 0.0001 {
		return 10.0
	}

	aMode := float64(modeFreq) / float64(count) * 100.0
	raw := aMode / (2.0 * vr * float64(mode) / 1000.0)
	return math.Min(math.Round(raw), 1000.0) / 100.0
}
