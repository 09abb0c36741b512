package algo

import (
	"math"
	"time"
)

// DurationMetric bundles a standard deviation, mean, and coefficient
// of variation (std/mean*100, already rounded to 2dp) for one tracked
// quantity (sleep duration, or a wall-clock timing point).
type DurationMetric struct {
	Std  time.Duration
	Mean time.Duration
	CV   float64
}

// ConsistencyScore is the 0-100 sleep-consistency scoring triad.
type ConsistencyScore struct {
	TotalScore   float64
	DurationScore float64
	TimingScore  float64
}

// SleepMetrics is the full consistency report across a set of sleep
// cycles: duration, start-time, end-time, and midpoint-time
// variability, plus the derived scores.
type SleepMetrics struct {
	Duration  DurationMetric
	StartTime DurationMetric
	EndTime   DurationMetric
	Midpoint  DurationMetric
	Score     ConsistencyScore
}

// CalculateSleepConsistency scores how consistent a set of sleep
// cycles' duration, start time, end time, and midpoint are, each as a
// coefficient-of-variation-derived 0-100 score, combined into one
// overall score. An empty input yields the zero SleepMetrics.
func CalculateSleepConsistency(cycles []SleepCycle) SleepMetrics {
	if len(cycles) == 0 {
		return SleepMetrics{}
	}

	durations := make([]time.Duration, len(cycles))
	starts := make([]time.Time, len(cycles))
	ends := make([]time.Time, len(cycles))
	midpoints := make([]time.Time, len(cycles))

	for i, c := range cycles {
		durations[i] = c.End.Sub(c.Start)
		starts[i] = c.Start
		ends[i] = c.End
		midpoints[i] = c.Start.Add(c.End.Sub(c.Start) / 2)
	}

	duration := durationMetric(durations)
	startTime := clockMetric(starts)
	endTime := clockMetric(ends)
	midpoint := clockMetric(midpoints)

	durationScore := roundFloat(math.Max(0, 100-duration.CV))

	timingScores := []float64{
		math.Max(0, 100-startTime.CV),
		math.Max(0, 100-endTime.CV),
		math.Max(0, 100-midpoint.CV),
	}
	timingScore := roundFloat(meanFloat(timingScores))

	totalScores := append(append([]float64{}, timingScores...), durationScore)
	overallScore := roundFloat(meanFloat(totalScores))

	return SleepMetrics{
		Duration:  duration,
		StartTime: startTime,
		EndTime:   endTime,
		Midpoint:  midpoint,
		Score: ConsistencyScore{
			TotalScore:    overallScore,
			DurationScore: durationScore,
			TimingScore:   timingScore,
		},
	}
}

func durationMetric(durations []time.Duration) DurationMetric {
	mean := meanDuration(durations)
	std := stdDevDuration(durations, mean)
	var cv float64
	if mean != 0 {
		cv = roundFloat(float64(std) / float64(mean) * 100)
	}
	return DurationMetric{Std: std, Mean: mean, CV: cv}
}

// clockMetric computes the mean/std/CV triad for a set of wall-clock
// timestamps, treating each as a time-of-day in the wrapped
// clockSeconds space (see meanClockTime/stdClockTime).
func clockMetric(times []time.Time) DurationMetric {
	mean := meanClockTime(times)
	std := stdClockTime(times, mean)
	var cv float64
	if mean != 0 {
		cv = roundFloat(float64(std) / float64(mean) * 100)
	}
	return DurationMetric{Std: std, Mean: mean, CV: cv}
}
