// Package orchestrator composes the Device Session, Sync Controller,
// Storage Façade and Analytics packages into the CLI's use-cases
// (spec §2/§6): download-history, detect-events, calculate-stress,
// sleep-stats, exercise-stats, set-alarm, rerun, scan. It plays the
// role the teacher's cmd/*/main.go bodies play directly, lifted out
// into one testable, transport-agnostic type.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vivek-dodia/openwhoop/internal/ble"
	"github.com/vivek-dodia/openwhoop/internal/codec"
	"github.com/vivek-dodia/openwhoop/internal/session"
	"github.com/vivek-dodia/openwhoop/internal/store"
	"github.com/vivek-dodia/openwhoop/internal/synccontroller"
)

// Dialer connects and fully initializes a fresh Session against one
// whoop device address. It is the single seam the sync controller's
// reconnect-on-stall logic needs, and the only place BLE specifics
// enter the orchestrator.
type Dialer func(ctx context.Context, addr string) (*session.Session, error)

// Orchestrator holds the shared storage handle and the dial/scan
// seams, plus the strain calculator's subject-specific parameters
// (spec §4.8 requires a max/resting heart rate per wearer).
type Orchestrator struct {
	log   *logrus.Entry
	store *store.Store
	dial  Dialer
	scan  ble.Scanner

	MaxHR     uint8
	RestingHR uint8
}

// New builds an Orchestrator. MaxHR/RestingHR default to 190/60 and
// are expected to be overridden per-wearer by the caller.
func New(log *logrus.Entry, st *store.Store, dial Dialer, scanner ble.Scanner) *Orchestrator {
	return &Orchestrator{log: log, store: st, dial: dial, scan: scanner, MaxHR: 190, RestingHR: 60}
}

// Scan lists nearby devices advertising the service UUID (spec §6's
// `scan` subcommand).
func (o *Orchestrator) Scan(ctx context.Context) ([]ble.DeviceInfo, error) {
	return o.scan.Scan(ctx)
}

// DownloadHistory connects to whoopID, drives one sync pass, archives
// every decoded frame (for later `rerun`), and upserts every valid
// reading into storage. Console logs and events are returned in the
// Result but not persisted.
func (o *Orchestrator) DownloadHistory(ctx context.Context, whoopID string) (*synccontroller.Result, error) {
	sess, err := o.dial(ctx, whoopID)
	if err != nil {
		return nil, errors.Wrap(err, "orchestrator: dial")
	}
	o.archiveFrames(sess)

	reconnect := func(ctx context.Context) (*session.Session, error) {
		s, err := o.dial(ctx, whoopID)
		if err != nil {
			return nil, err
		}
		o.archiveFrames(s)
		return s, nil
	}
	ctrl := synccontroller.New(o.log, reconnect)

	result, err := ctrl.Run(ctx, sess, nil)
	if err != nil {
		return result, err
	}
	if err := o.persistReadings(ctx, result.Readings); err != nil {
		return result, err
	}
	return result, nil
}

// archiveFrames wires the raw-packet archive into sess, supporting the
// rerun use-case (spec §3/§6) without the sync controller needing to
// know about storage.
func (o *Orchestrator) archiveFrames(sess *session.Session) {
	sess.Archiver = func(char ble.Characteristic, frame []byte) {
		if err := o.store.InsertPacket(context.Background(), time.Now(), int(char), frame); err != nil {
			o.log.WithError(err).Warn("orchestrator: archive packet")
		}
	}
}

// persistReadings filters out invalid readings (bpm == 0, spec §3) and
// bulk-upserts the rest.
func (o *Orchestrator) persistReadings(ctx context.Context, readings []codec.ParsedHistoryReading) error {
	rows := make([]store.Reading, 0, len(readings))
	for _, r := range readings {
		row, ok, err := toStoreReading(r)
		if err != nil {
			return err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return o.store.InsertReadings(ctx, rows)
}

// toStoreReading converts one decoded reading to its persisted row
// shape, dropping invalid (bpm == 0) readings per spec §3.
func toStoreReading(r codec.ParsedHistoryReading) (store.Reading, bool, error) {
	if r.BPM == 0 {
		return store.Reading{}, false, nil
	}
	activity := int64(r.Activity)
	row := store.Reading{
		UnixSeconds: r.Time.Unix(),
		BPM:         r.BPM,
		RR:          r.RR,
		Activity:    &activity,
	}
	if r.Sensor != nil {
		data, err := json.Marshal(r.Sensor)
		if err != nil {
			return store.Reading{}, false, err
		}
		row.SensorData = data
	}
	if len(r.IMU) > 0 {
		data, err := json.Marshal(r.IMU)
		if err != nil {
			return store.Reading{}, false, err
		}
		row.IMUData = data
	}
	return row, true, nil
}

// toParsed converts stored reading rows back into the analytics
// packages' input shape; sensor/IMU blobs are intentionally left
// unparsed here since the stress/strain/activity calculators this
// package drives only ever need Time/BPM/RR/Activity.
func toParsed(rows []store.Reading) []codec.ParsedHistoryReading {
	out := make([]codec.ParsedHistoryReading, len(rows))
	for i, r := range rows {
		var act codec.Activity
		if r.Activity != nil {
			act = codec.Activity(*r.Activity)
		}
		out[i] = codec.ParsedHistoryReading{
			Time:     time.Unix(r.UnixSeconds, 0),
			BPM:      r.BPM,
			RR:       r.RR,
			Activity: act,
		}
	}
	return out
}
