package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/vivek-dodia/openwhoop/internal/algo"
	"github.com/vivek-dodia/openwhoop/internal/codec"
)

// lookbackWindow bounds how far back CalculateStress/CalculateSpO2Scores/
// CalculateSkinTempScores look for readings still awaiting derivation when
// the store has never computed one before.
const lookbackWindow = 90 * 24 * time.Hour

// CalculateStress derives a Baevsky stress index for every full
// 120-reading window since the last-derived reading, writing one
// score per window onto the reading at the window's last timestamp
// (spec §4.7/§4.11). Returns the number of scores written.
func (o *Orchestrator) CalculateStress(ctx context.Context) (int, error) {
	from, err := o.resumePoint(ctx, o.store.LastStressTime)
	if err != nil {
		return 0, err
	}
	readings, err := o.store.SearchHistory(ctx, from, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "orchestrator: search history")
	}
	history := toParsed(readings)

	count := 0
	for i := 0; i+120 <= len(history); i++ {
		score, ok := algo.CalculateStress(history[i : i+120])
		if !ok {
			continue
		}
		if err := o.store.UpdateStressOnReading(ctx, score.Time.Unix(), score.Score); err != nil {
			return count, errors.Wrap(err, "orchestrator: update stress")
		}
		count++
	}
	return count, nil
}

// CalculateSpO2Scores derives SpO2 over every 30-reading sensor-data
// window since the last-derived reading.
func (o *Orchestrator) CalculateSpO2Scores(ctx context.Context) (int, error) {
	from, err := o.resumePoint(ctx, o.store.LastSpO2Time)
	if err != nil {
		return 0, err
	}
	rows, err := o.store.SearchSensorReadings(ctx, from, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "orchestrator: search sensor readings")
	}

	readings := make([]algo.SpO2Reading, 0, len(rows))
	times := make([]time.Time, 0, len(rows))
	for _, r := range rows {
		var sd codec.SensorData
		if len(r.SensorData) == 0 {
			continue
		}
		if err := json.Unmarshal(r.SensorData, &sd); err != nil {
			continue
		}
		t := time.Unix(r.UnixSeconds, 0)
		readings = append(readings, algo.SpO2Reading{Time: t, SpO2Red: sd.SpO2Red, SpO2IR: sd.SpO2IR})
		times = append(times, t)
	}

	count := 0
	for i := 0; i+30 <= len(readings); i++ {
		score, ok := algo.CalculateSpO2(readings[i : i+30])
		if !ok {
			continue
		}
		if err := o.store.UpdateSpO2OnReading(ctx, score.Time.Unix(), score.SpO2Percentage); err != nil {
			return count, errors.Wrap(err, "orchestrator: update spo2")
		}
		count++
	}
	return count, nil
}

// CalculateSkinTempScores derives a skin-temperature score for every
// sensor-bearing reading still missing one.
func (o *Orchestrator) CalculateSkinTempScores(ctx context.Context) (int, error) {
	from, err := o.resumePoint(ctx, o.store.LastSkinTempTime)
	if err != nil {
		return 0, err
	}
	rows, err := o.store.SearchTempReadings(ctx, from, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "orchestrator: search temp readings")
	}

	count := 0
	for _, r := range rows {
		if len(r.SensorData) == 0 {
			continue
		}
		var sd codec.SensorData
		if err := json.Unmarshal(r.SensorData, &sd); err != nil {
			continue
		}
		score, ok := algo.CalculateSkinTemp(time.Unix(r.UnixSeconds, 0), sd.SkinTempRaw)
		if !ok {
			continue
		}
		if err := o.store.UpdateSkinTempOnReading(ctx, score.Time.Unix(), score.TempCelsius); err != nil {
			return count, errors.Wrap(err, "orchestrator: update skin temp")
		}
		count++
	}
	return count, nil
}

// resumePoint returns the window start for an incremental derivation
// pass: the last-derived timestamp itself (the store's searches include
// it, so that reading is visited again), or lookbackWindow ago if
// nothing has been derived yet.
func (o *Orchestrator) resumePoint(ctx context.Context, lastTime func(context.Context) (int64, error)) (time.Time, error) {
	last, err := lastTime(ctx)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "orchestrator: last derived time")
	}
	if last == 0 {
		return time.Now().Add(-lookbackWindow), nil
	}
	return time.Unix(last, 0), nil
}

// SleepStats scores how consistent the stored sleep cycles ending in
// [from, to] are (spec §4.6).
func (o *Orchestrator) SleepStats(ctx context.Context, from, to time.Time) (algo.SleepMetrics, error) {
	rows, err := o.store.ListSleepCycles(ctx, from, to)
	if err != nil {
		return algo.SleepMetrics{}, errors.Wrap(err, "orchestrator: list sleep cycles")
	}
	cycles := make([]algo.SleepCycle, len(rows))
	for i, r := range rows {
		cycles[i] = algo.SleepCycle{
			Start: time.Unix(r.Start, 0),
			End:   time.Unix(r.End, 0),
			Score: r.Score,
		}
	}
	return algo.CalculateSleepConsistency(cycles), nil
}

// ExerciseStats segments readings in [from, to] and summarizes the
// Active periods (spec §4.4's Active classification stands in for the
// original's richer Running/Cycling/... taxonomy — see DESIGN.md).
func (o *Orchestrator) ExerciseStats(ctx context.Context, from, to time.Time) (algo.ExerciseMetrics, error) {
	readings, err := o.store.SearchHistory(ctx, from, to)
	if err != nil {
		return algo.ExerciseMetrics{}, errors.Wrap(err, "orchestrator: search history")
	}
	history := toParsed(readings)
	periods := algo.DetectActivityPeriods(history)

	var exercises []algo.ActivityPeriod
	for _, p := range periods {
		if p.IsActive() {
			exercises = append(exercises, p)
		}
	}
	return algo.CalculateExerciseMetrics(exercises), nil
}
