package algo

import (
	"time"

	"github.com/vivek-dodia/openwhoop/internal/codec"
)

const (
	activityChangeThreshold = 15 * time.Minute
	minSleepDuration        = 60 * time.Minute
	// MaxSleepPause bounds how large a same-activity gap the sleep
	// cycle builder will still treat as one continuous sleep, exported
	// for internal/orchestrator's cross-gap sleep merging.
	MaxSleepPause = 60 * time.Minute
	maxPause      = 10 * time.Minute
)

// ActivityPeriod is one contiguous run of a single Activity value, the
// unit both activity segmentation and sleep-cycle/exercise-metrics
// code operate on. The original source keeps two separate
// ActivityPeriod types (one in openwhoop-algos with start/end/duration,
// one in openwhoop_types::activities with from/to) for its own
// module-boundary reasons; this package uses this single shape for
// both (the persisted row shape is the separate store.ActivityPeriod).
type ActivityPeriod struct {
	Activity codec.Activity
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// IsActive reports whether this period's activity is Active.
func (p ActivityPeriod) IsActive() bool {
	return p.Activity == codec.ActivityActive
}

type tempActivity struct {
	activity codec.Activity
	start    time.Time
	end      time.Time
}

// DetectActivityPeriods segments a chronologically-ordered slice of
// readings into activity periods: it smooths single-point spikes in
// place, splits on activity change or a >10min gap, then merges
// periods shorter than 15min into their neighbors.
func DetectActivityPeriods(history []codec.ParsedHistoryReading) []ActivityPeriod {
	smoothSpikes(history)
	changes := detectChanges(history)
	merged := filterMerge(changes)

	periods := make([]ActivityPeriod, 0, len(merged))
	for _, a := range merged {
		periods = append(periods, ActivityPeriod{
			Activity: a.activity,
			Start:    a.start,
			End:      a.end,
			Duration: a.end.Sub(a.start),
		})
	}
	return periods
}

// FindSleep destructively scans events (front to back, consuming each
// as it goes — mirroring the original's Vec::remove(0) draining scan)
// for the first Sleep period longer than 60 minutes.
func FindSleep(events *[]ActivityPeriod) (ActivityPeriod, bool) {
	for len(*events) > 0 {
		event := (*events)[0]
		*events = (*events)[1:]
		if event.Activity == codec.ActivitySleep && event.Duration > minSleepDuration {
			return event, true
		}
	}
	return ActivityPeriod{}, false
}

// smoothSpikes replaces a single reading's activity with its
// neighbors' shared value when both neighbors agree and it doesn't —
// a no-op for fewer than 3 readings. Mutates history's Activity fields
// in place, same as the original.
func smoothSpikes(history []codec.ParsedHistoryReading) {
	if len(history) < 3 {
		return
	}
	smoothed := make([]codec.Activity, len(history))
	for i, h := range history {
		smoothed[i] = h.Activity
	}
	for i := 1; i < len(history)-1; i++ {
		if history[i-1].Activity == history[i+1].Activity && history[i].Activity != history[i-1].Activity {
			smoothed[i] = history[i-1].Activity
		}
	}
	for i := range history {
		history[i].Activity = smoothed[i]
	}
}

// detectChanges walks the (already spike-smoothed) history and emits
// one tempActivity per run of the same activity, splitting early if
// the gap since the last reading exceeds maxPause even when the
// activity hasn't changed.
func detectChanges(history []codec.ParsedHistoryReading) []tempActivity {
	if len(history) == 0 {
		return nil
	}
	var periods []tempActivity

	current := history[0].Activity
	start := history[0].Time
	last := history[0].Time

	for _, h := range history[1:] {
		if h.Activity != current || h.Time.Sub(last) > maxPause {
			periods = append(periods, tempActivity{activity: current, start: start, end: last})
			current = h.Activity
			start = h.Time
		}
		last = h.Time
	}
	periods = append(periods, tempActivity{activity: current, start: start, end: last})
	return periods
}

// filterMerge absorbs any period shorter than 15 minutes into a
// neighbor: if both neighbors share an activity it merges into both at
// once, otherwise it merges forward (or backward, at the end of the
// slice), reproducing the original's index-juggling merge rules
// exactly.
func filterMerge(activities []tempActivity) []tempActivity {
	if len(activities) == 0 {
		return nil
	}

	var merged []tempActivity
	i := 0
	for i < len(activities) {
		current := activities[i]
		duration := current.end.Sub(current.start)

		if duration < activityChangeThreshold {
			switch {
			case i > 0 && i+1 < len(activities) && activities[i-1].activity == activities[i+1].activity && len(merged) > 0:
				prev := merged[len(merged)-1]
				merged = merged[:len(merged)-1]
				merged = append(merged, tempActivity{activity: prev.activity, start: prev.start, end: activities[i+1].end})
				i++ // skip the next one, it's absorbed
			case i+1 < len(activities):
				activities[i+1] = tempActivity{activity: activities[i+1].activity, start: current.start, end: activities[i+1].end}
			case len(merged) > 0:
				prev := merged[len(merged)-1]
				merged = merged[:len(merged)-1]
				merged = append(merged, tempActivity{activity: prev.activity, start: prev.start, end: current.end})
			}
		} else {
			merged = append(merged, current)
		}
		i++
	}
	return merged
}
