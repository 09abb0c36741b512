package orchestrator

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vivek-dodia/openwhoop/internal/codec"
)

// relativeOffsets is spec §6's closed set of relative alarm offsets.
var relativeOffsets = map[string]time.Duration{
	"1min":  1 * time.Minute,
	"5min":  5 * time.Minute,
	"10min": 10 * time.Minute,
	"15min": 15 * time.Minute,
	"30min": 30 * time.Minute,
	"hour":  1 * time.Hour,
}

// wallClockLayouts are tried in order when a spec isn't a relative
// offset or a full date-time, to recognize a bare time-of-day.
var wallClockLayouts = []string{"15:04", "15:04:05", "3:04PM", "3:04pm"}

// dateTimeLayouts are tried for an absolute date-time spec.
var dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04"}

// ParseAlarmSpec parses spec.md §6's alarm time grammar relative to
// now: a relative offset ("5min", "hour", ...), an absolute
// date-time, or a bare wall-clock time interpreted as its next
// occurrence in now's location.
func ParseAlarmSpec(now time.Time, spec string) (time.Time, error) {
	if d, ok := relativeOffsets[spec]; ok {
		return now.Add(d), nil
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, spec, now.Location()); err == nil {
			return t, nil
		}
	}

	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, spec, now.Location()); err == nil {
			next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
			if !next.After(now) {
				next = next.AddDate(0, 0, 1)
			}
			return next, nil
		}
	}

	return time.Time{}, errors.Errorf("orchestrator: unrecognized alarm time %q", spec)
}

// SetAlarm parses spec, connects to whoopID, and schedules the
// device's vibration alarm (spec §4.1/§6's SetAlarmTime command).
func (o *Orchestrator) SetAlarm(ctx context.Context, whoopID, spec string) error {
	when, err := ParseAlarmSpec(time.Now(), spec)
	if err != nil {
		return err
	}

	sess, err := o.dial(ctx, whoopID)
	if err != nil {
		return errors.Wrap(err, "orchestrator: dial")
	}
	defer func() { _ = sess.Close(ctx) }()

	return sess.SendCommand(ctx, codec.SetAlarmTime(uint32(when.Unix())))
}
