package orchestrator

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vivek-dodia/openwhoop/internal/algo"
	"github.com/vivek-dodia/openwhoop/internal/codec"
	"github.com/vivek-dodia/openwhoop/internal/store"
)

// napActivityCode marks an activity-period row as a reclassified short
// sleep (spec §4.5's "otherwise... the shorter one is reclassified as
// a Nap activity period"), distinct from the codec.Activity range
// (0-4) the rest of the activities table uses.
const napActivityCode = 100

// DetectEvents segments readings in [from, to] into activity periods
// (spec §4.4), finds at most one sleep period per pass — the
// destructive single scan §4.4/§4.5 describes, matched to one
// nightly download — scores and upserts it (merging across a short
// gap with the previously stored sleep, or reclassifying as a nap
// when it shares an end-date with a longer one), and upserts the
// remaining periods as activities.
func (o *Orchestrator) DetectEvents(ctx context.Context, from, to time.Time) error {
	readings, err := o.store.SearchHistory(ctx, from, to)
	if err != nil {
		return errors.Wrap(err, "orchestrator: search history")
	}
	history := toParsed(readings)

	periods := algo.DetectActivityPeriods(history)
	events := append([]algo.ActivityPeriod(nil), periods...)

	sleep, found := algo.FindSleep(&events)
	if !found {
		return o.insertActivityPeriods(ctx, periods, nil)
	}

	consumed, err := o.resolveSleep(ctx, sleep, history)
	if err != nil {
		return err
	}
	return o.insertActivityPeriods(ctx, periods, consumed)
}

// resolveSleep implements spec §4.5's merge-across-gap and
// nap-reclassification rules, returning the period (possibly with its
// start extended) that was actually stored, so the caller can exclude
// it from the activities upsert.
func (o *Orchestrator) resolveSleep(ctx context.Context, sleep algo.ActivityPeriod, history []codec.ParsedHistoryReading) (*algo.ActivityPeriod, error) {
	prev, err := o.store.LatestSleepCycle(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "orchestrator: latest sleep cycle")
	}

	if prev != nil {
		prevStart, prevEnd := time.Unix(prev.Start, 0), time.Unix(prev.End, 0)

		if sleep.Start.After(prevEnd) && sleep.Start.Sub(prevEnd) <= algo.MaxSleepPause {
			extended, err := o.store.SearchHistory(ctx, prevStart, sleep.End)
			if err != nil {
				return nil, errors.Wrap(err, "orchestrator: search history for merge")
			}
			sleep.Start = prevStart
			sleep.Duration = sleep.End.Sub(sleep.Start)
			history = toParsed(extended)
		} else if sameDate(prevEnd, sleep.End) {
			prevDuration := prevEnd.Sub(prevStart)
			if sleep.Duration < prevDuration {
				if err := o.store.InsertActivity(ctx, store.ActivityPeriod{
					Start:    sleep.Start.Unix(),
					End:      sleep.End.Unix(),
					Activity: napActivityCode,
				}); err != nil {
					return nil, errors.Wrap(err, "orchestrator: insert nap")
				}
				return &sleep, nil
			}
		}
	}

	cycle := algo.SleepCycleFromEvent(sleep, history)
	if err := o.store.InsertSleep(ctx, toStoreSleepCycle(cycle)); err != nil {
		return nil, errors.Wrap(err, "orchestrator: insert sleep")
	}
	return &sleep, nil
}

// insertActivityPeriods upserts every period except skip (the one
// already recorded as a sleep cycle or nap) as an activities row.
func (o *Orchestrator) insertActivityPeriods(ctx context.Context, periods []algo.ActivityPeriod, skip *algo.ActivityPeriod) error {
	rows := make([]store.ActivityPeriod, 0, len(periods))
	for _, p := range periods {
		// Matched on End only: a cross-gap merge (§4.5) extends the
		// stored sleep's Start backward while keeping its End, so the
		// original (un-extended) period in periods still shares an End
		// with whatever was actually persisted.
		if skip != nil && p.End.Equal(skip.End) {
			continue
		}
		rows = append(rows, store.ActivityPeriod{
			Start:    p.Start.Unix(),
			End:      p.End.Unix(),
			Activity: int64(p.Activity),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return o.store.InsertActivities(ctx, rows)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func toStoreSleepCycle(c algo.SleepCycle) store.SleepCycle {
	return store.SleepCycle{
		SleepID: c.ID.Unix(),
		Start:   c.Start.Unix(),
		End:     c.End.Unix(),
		MinBPM:  int(c.MinBPM),
		MaxBPM:  int(c.MaxBPM),
		AvgBPM:  float64(c.AvgBPM),
		HRV:     int64(c.AvgHRV),
		Score:   c.Score,
	}
}
