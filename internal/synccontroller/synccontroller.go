// Package synccontroller drives one historical-data download: it asks
// the device to drain its buffer, acknowledges each batch, and
// tolerates the idle stalls and mid-transfer disconnects real BLE
// links produce. Named synccontroller rather than sync to avoid
// shadowing the standard library package of that name in any file
// that needs both.
package synccontroller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vivek-dodia/openwhoop/internal/codec"
	"github.com/vivek-dodia/openwhoop/internal/session"
)

// idleTimeout is how long the controller waits for a notification
// before treating the link as stalled and attempting a reconnect
// (spec §4.3).
const idleTimeout = 10 * time.Second

// maxReconnectAttempts bounds how many times the controller will
// reconnect mid-transfer before giving up.
const maxReconnectAttempts = 5

// dedupKey identifies a reading by its wall-clock second and bpm, the
// pair the device can legitimately resend across a reconnect.
type dedupKey struct {
	unixSeconds int64
	bpm         uint8
}

// Result accumulates everything observed during one sync pass.
type Result struct {
	Readings    []codec.ParsedHistoryReading
	ConsoleLogs []codec.ConsoleLog
	Events      []codec.EventRecord
	Complete    bool
}

// Reconnector dials a fresh Session when the link drops mid-transfer.
// The orchestrator supplies this so the controller never imports
// internal/ble directly.
type Reconnector func(ctx context.Context) (*session.Session, error)

// Controller runs the history-download state machine over one
// Session, reconnecting as needed via reconnect.
type Controller struct {
	log       *logrus.Entry
	reconnect Reconnector

	lastSeen dedupKey
	haveLast bool
}

// New builds a Controller. reconnect may be nil if the caller never
// wants reconnect-on-stall behavior (e.g. in tests against a Fake
// peripheral that never disconnects).
func New(log *logrus.Entry, reconnect Reconnector) *Controller {
	return &Controller{log: log, reconnect: reconnect}
}

// Run drives sess until the device reports HistoryComplete, ctx is
// canceled, or cancel() returns true — checked once per loop
// iteration, matching the teacher's cooperative (no-goroutine-pool)
// select loop shape.
func (c *Controller) Run(ctx context.Context, sess *session.Session, cancel func() bool) (*Result, error) {
	result := &Result{}

	if err := sess.SendCommand(ctx, codec.SendHistoricalData()); err != nil {
		return result, err
	}

	attempts := 0
	for {
		if cancel != nil && cancel() {
			_ = sess.SendCommand(ctx, codec.ExitHighFreqSync())
			return result, nil
		}

		timer := time.NewTimer(idleTimeout)
		select {
		case rec, ok := <-sess.Records():
			timer.Stop()
			if !ok {
				return result, nil
			}
			done, err := c.handle(ctx, sess, rec, result)
			if err != nil {
				return result, err
			}
			if done {
				_ = sess.SendCommand(ctx, codec.ExitHighFreqSync())
				result.Complete = true
				return result, nil
			}

		case <-timer.C:
			c.log.Warn("synccontroller: idle timeout, attempting reconnect")
			if c.reconnect == nil {
				return result, nil
			}
			attempts++
			if attempts > maxReconnectAttempts {
				return result, nil
			}
			newSess, err := c.reconnect(ctx)
			if err != nil {
				c.log.WithError(err).Warn("synccontroller: reconnect failed")
				continue
			}
			sess = newSess
			if err := sess.SendCommand(ctx, codec.SendHistoricalData()); err != nil {
				return result, err
			}

		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		}
	}
}

// handle processes one decoded record, returning done=true once the
// device reports HistoryComplete.
func (c *Controller) handle(ctx context.Context, sess *session.Session, rec *codec.Record, result *Result) (bool, error) {
	switch rec.Kind {
	case codec.KindHistoryReading:
		parsed := rec.Reading.Parsed()
		key := dedupKey{unixSeconds: parsed.Time.Unix(), bpm: parsed.BPM}
		// Spec §4.3: only a run of consecutive identical readings is
		// collapsed, not every repeat across the whole session — the
		// device can legitimately report the same bpm again later.
		if !c.haveLast || key != c.lastSeen {
			result.Readings = append(result.Readings, parsed)
		}
		c.lastSeen = key
		c.haveLast = true
		return false, nil

	case codec.KindHistoryMetadata:
		switch rec.Metadata.Subtype {
		case codec.HistoryEnd:
			return false, sess.SendCommand(ctx, codec.HistoricalDataResult(rec.Metadata.Data))
		case codec.HistoryComplete:
			return true, nil
		case codec.HistoryStart:
			return false, nil
		}
		return false, nil

	case codec.KindConsoleLog:
		result.ConsoleLogs = append(result.ConsoleLogs, *rec.Console)
		return false, nil

	case codec.KindEvent:
		result.Events = append(result.Events, *rec.Ev)
		return false, nil

	default:
		return false, nil
	}
}
