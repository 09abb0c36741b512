package algo

import "time"

// ExerciseMetrics summarizes a set of exercise activity periods:
// total and mean duration plus the duration's standard deviation, the
// same three-number rollup sleep consistency uses for its own duration
// metric.
type ExerciseMetrics struct {
	TotalDuration time.Duration
	Count         uint64
	MeanDuration  time.Duration
	DurationStd   time.Duration
}

// CalculateExerciseMetrics summarizes a set of exercise periods. The
// original source consumes a differently-shaped ActivityPeriod here
// (openwhoop_types::activities::ActivityPeriod, with From/To fields)
// than its own activity-segmentation ActivityPeriod; this package uses
// the one ActivityPeriod type for both, so this just takes the same
// type activity.go produces.
func CalculateExerciseMetrics(exercises []ActivityPeriod) ExerciseMetrics {
	if len(exercises) == 0 {
		return ExerciseMetrics{}
	}

	durations := make([]time.Duration, len(exercises))
	var total time.Duration
	for i, e := range exercises {
		d := e.End.Sub(e.Start)
		durations[i] = d
		total += d
	}

	mean := meanDuration(durations)
	std := stdDevDuration(durations, mean)

	return ExerciseMetrics{
		TotalDuration: total,
		Count:         uint64(len(exercises)),
		MeanDuration:  mean,
		DurationStd:   std,
	}
}
