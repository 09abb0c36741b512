// Package store is the storage façade: every other package that needs
// to read or write persisted readings, sleep cycles, or activities
// goes through here rather than touching SQL directly, the same
// separation the teacher draws between appdrivers (hardware access)
// and their registry (policy). Backed by modernc.org/sqlite, a
// pure-Go driver chosen because no example repo in the corpus pulls in
// any SQL library at all — see DESIGN.md.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Batch-size ceilings a single bulk insert call will chunk at; mirrors
// the device-side transfer batching this data originates from.
const (
	BatchSizeReadings   = 90
	BatchSizeSleepCycles = 80
	BatchSizeActivities  = 160
)

// Store wraps a *sql.DB with the operations the orchestrator needs.
type Store struct {
	db *sql.DB
}

// Open connects to a SQLite database at dsn (a file path, or ":memory:")
// and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "store: open")
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS readings (
	unix_seconds INTEGER PRIMARY KEY,
	bpm          INTEGER NOT NULL,
	rr_intervals TEXT NOT NULL DEFAULT '[]',
	activity     INTEGER,
	sensor_data  TEXT,
	imu_data     TEXT,
	stress       REAL,
	spo2         REAL,
	skin_temp    REAL
);

CREATE TABLE IF NOT EXISTS sleep_cycles (
	sleep_id INTEGER PRIMARY KEY,
	start    INTEGER NOT NULL,
	end      INTEGER NOT NULL,
	min_bpm  INTEGER NOT NULL,
	max_bpm  INTEGER NOT NULL,
	avg_bpm  REAL NOT NULL,
	hrv      INTEGER NOT NULL,
	score    REAL NOT NULL,
	nap      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS activities (
	start     INTEGER PRIMARY KEY,
	end       INTEGER NOT NULL,
	activity  INTEGER NOT NULL,
	period_id INTEGER REFERENCES sleep_cycles(sleep_id)
);

CREATE TABLE IF NOT EXISTS packets (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	received_at    INTEGER NOT NULL,
	characteristic INTEGER NOT NULL,
	raw            BLOB NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "store: migrate")
}

// Reading is the persisted row shape for one historical heart-rate
// sample plus whatever analytics have been derived from it so far.
type Reading struct {
	UnixSeconds int64
	BPM         uint8
	RR          []uint16
	// Activity is the narrowed activity code the caller supplies at
	// insert time, or nil if none was given; SearchHistory only returns
	// rows where it is set.
	Activity   *int64
	SensorData []byte // opaque JSON blob; internal/algo decodes it
	IMUData    []byte
	Stress     *float64
	SpO2       *float64
	SkinTemp   *float64
}

// InsertReading upserts a single reading. On conflict, only
// bpm/rr_intervals/activity/sensor_data/imu_data are overwritten —
// derived scalars (stress/spo2/skin_temp) are left untouched so a
// later analytics pass never loses work to a resynced raw reading.
func (s *Store) InsertReading(ctx context.Context, r Reading) error {
	return s.InsertReadings(ctx, []Reading{r})
}

// InsertReadings bulk-upserts readings, chunked at BatchSizeReadings.
func (s *Store) InsertReadings(ctx context.Context, readings []Reading) error {
	const stmt = `
INSERT INTO readings (unix_seconds, bpm, rr_intervals, activity, sensor_data, imu_data)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(unix_seconds) DO UPDATE SET
	bpm = excluded.bpm,
	rr_intervals = excluded.rr_intervals,
	activity = excluded.activity,
	sensor_data = excluded.sensor_data,
	imu_data = excluded.imu_data;
`
	return chunked(ctx, s, readings, BatchSizeReadings, func(tx *sql.Tx, batch []Reading) error {
		for _, r := range batch {
			rrJSON, err := json.Marshal(r.RR)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, stmt, r.UnixSeconds, r.BPM, string(rrJSON), nullInt64(r.Activity), nullBytes(r.SensorData), nullBytes(r.IMUData)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateActivity assigns the narrowed activity code to an
// already-persisted reading.
func (s *Store) UpdateActivity(ctx context.Context, unixSeconds int64, activity int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE readings SET activity = ? WHERE unix_seconds = ?;", activity, unixSeconds)
	return err
}

// SleepCycle is the persisted row shape for one detected sleep period.
type SleepCycle struct {
	SleepID int64 // the period's end-date, per spec §4.6
	Start   int64
	End     int64
	MinBPM  int
	MaxBPM  int
	AvgBPM  float64
	HRV     int64
	Score   float64
	Nap     bool
}

// InsertSleep upserts a single sleep cycle. On conflict, start/end/
// min/max/avg bpm/hrv are overwritten but score is NOT — it is set
// once, on first insert, matching the façade's create_sleep contract.
func (s *Store) InsertSleep(ctx context.Context, sc SleepCycle) error {
	return s.InsertSleepCycles(ctx, []SleepCycle{sc})
}

// InsertSleepCycles bulk-upserts sleep cycles, chunked at
// BatchSizeSleepCycles.
func (s *Store) InsertSleepCycles(ctx context.Context, cycles []SleepCycle) error {
	const stmt = `
INSERT INTO sleep_cycles (sleep_id, start, end, min_bpm, max_bpm, avg_bpm, hrv, score, nap)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sleep_id) DO UPDATE SET
	start = excluded.start,
	end = excluded.end,
	min_bpm = excluded.min_bpm,
	max_bpm = excluded.max_bpm,
	avg_bpm = excluded.avg_bpm,
	hrv = excluded.hrv,
	nap = excluded.nap;
`
	return chunked(ctx, s, cycles, BatchSizeSleepCycles, func(tx *sql.Tx, batch []SleepCycle) error {
		for _, c := range batch {
			if _, err := tx.ExecContext(ctx, stmt, c.SleepID, c.Start, c.End, c.MinBPM, c.MaxBPM, c.AvgBPM, c.HRV, c.Score, boolInt(c.Nap)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LatestSleepCycle returns the most recently-ended sleep cycle, or nil
// if none is stored yet — the basis for §4.5's cross-gap merge check.
func (s *Store) LatestSleepCycle(ctx context.Context) (*SleepCycle, error) {
	const q = `
SELECT sleep_id, start, end, min_bpm, max_bpm, avg_bpm, hrv, score, nap
FROM sleep_cycles ORDER BY end DESC LIMIT 1;
`
	var sc SleepCycle
	var nap int
	err := s.db.QueryRowContext(ctx, q).Scan(&sc.SleepID, &sc.Start, &sc.End, &sc.MinBPM, &sc.MaxBPM, &sc.AvgBPM, &sc.HRV, &sc.Score, &nap)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sc.Nap = nap != 0
	return &sc, nil
}

// ListSleepCycles returns every stored sleep cycle whose end falls in
// [from, to] (both ends inclusive), ordered by end ascending — the input sleep-stats and
// sleep-consistency use-cases need.
func (s *Store) ListSleepCycles(ctx context.Context, from, to time.Time) ([]SleepCycle, error) {
	const q = `
SELECT sleep_id, start, end, min_bpm, max_bpm, avg_bpm, hrv, score, nap
FROM sleep_cycles WHERE end BETWEEN ? AND ? ORDER BY end ASC;
`
	rows, err := s.db.QueryContext(ctx, q, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SleepCycle
	for rows.Next() {
		var sc SleepCycle
		var nap int
		if err := rows.Scan(&sc.SleepID, &sc.Start, &sc.End, &sc.MinBPM, &sc.MaxBPM, &sc.AvgBPM, &sc.HRV, &sc.Score, &nap); err != nil {
			return nil, err
		}
		sc.Nap = nap != 0
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ActivityPeriod is the persisted row shape for one segmented activity
// period (spec §4.5/§4.11). It is separate from internal/algo's
// in-memory ActivityPeriod, which the orchestrator converts into it.
type ActivityPeriod struct {
	Start    int64
	End      int64
	Activity int64
	PeriodID *int64 // FK to sleep_cycles.sleep_id when this period overlaps a sleep cycle
}

// InsertActivity upserts a single activity period.
func (s *Store) InsertActivity(ctx context.Context, a ActivityPeriod) error {
	return s.InsertActivities(ctx, []ActivityPeriod{a})
}

// InsertActivities bulk-upserts activity periods, chunked at
// BatchSizeActivities.
func (s *Store) InsertActivities(ctx context.Context, periods []ActivityPeriod) error {
	const stmt = `
INSERT INTO activities (start, end, activity, period_id)
VALUES (?, ?, ?, ?)
ON CONFLICT(start) DO UPDATE SET
	end = excluded.end,
	activity = excluded.activity,
	period_id = excluded.period_id;
`
	return chunked(ctx, s, periods, BatchSizeActivities, func(tx *sql.Tx, batch []ActivityPeriod) error {
		for _, a := range batch {
			if _, err := tx.ExecContext(ctx, stmt, a.Start, a.End, a.Activity, a.PeriodID); err != nil {
				return err
			}
		}
		return nil
	})
}

// SearchHistory returns readings with activity already assigned,
// ordered by time ascending.
func (s *Store) SearchHistory(ctx context.Context, from, to time.Time) ([]Reading, error) {
	const q = `
SELECT unix_seconds, bpm, rr_intervals, activity, sensor_data, imu_data, stress, spo2, skin_temp
FROM readings
WHERE activity IS NOT NULL AND unix_seconds BETWEEN ? AND ?
ORDER BY unix_seconds ASC;
`
	return s.queryReadings(ctx, q, from.Unix(), to.Unix())
}

// SearchSensorReadings returns readings that carry a DSP sensor block.
func (s *Store) SearchSensorReadings(ctx context.Context, from, to time.Time) ([]Reading, error) {
	const q = `
SELECT unix_seconds, bpm, rr_intervals, activity, sensor_data, imu_data, stress, spo2, skin_temp
FROM readings
WHERE sensor_data IS NOT NULL AND unix_seconds BETWEEN ? AND ?
ORDER BY unix_seconds ASC;
`
	return s.queryReadings(ctx, q, from.Unix(), to.Unix())
}

// SearchTempReadings returns sensor-bearing readings still awaiting a
// skin-temperature derivation.
func (s *Store) SearchTempReadings(ctx context.Context, from, to time.Time) ([]Reading, error) {
	const q = `
SELECT unix_seconds, bpm, rr_intervals, activity, sensor_data, imu_data, stress, spo2, skin_temp
FROM readings
WHERE skin_temp IS NULL AND sensor_data IS NOT NULL AND unix_seconds BETWEEN ? AND ?
ORDER BY unix_seconds ASC;
`
	return s.queryReadings(ctx, q, from.Unix(), to.Unix())
}

// LastStressTime returns the most recent unix-seconds timestamp that
// already has a stress score, or zero if none does.
func (s *Store) LastStressTime(ctx context.Context) (int64, error) {
	return s.lastTime(ctx, "stress")
}

// LastSpO2Time returns the most recent unix-seconds timestamp that
// already has an SpO2 score, or zero if none does.
func (s *Store) LastSpO2Time(ctx context.Context) (int64, error) {
	return s.lastTime(ctx, "spo2")
}

// LastSkinTempTime returns the most recent unix-seconds timestamp that
// already has a skin-temperature score, or zero if none does.
func (s *Store) LastSkinTempTime(ctx context.Context) (int64, error) {
	return s.lastTime(ctx, "skin_temp")
}

func (s *Store) lastTime(ctx context.Context, column string) (int64, error) {
	q := "SELECT COALESCE(MAX(unix_seconds), 0) FROM readings WHERE " + column + " IS NOT NULL;"
	var t int64
	err := s.db.QueryRowContext(ctx, q).Scan(&t)
	return t, err
}

// UpdateStressOnReading sets the stress score for one already-persisted
// reading.
func (s *Store) UpdateStressOnReading(ctx context.Context, unixSeconds int64, score float64) error {
	return s.updateColumn(ctx, "stress", unixSeconds, score)
}

// UpdateSpO2OnReading sets the SpO2 score for one already-persisted
// reading.
func (s *Store) UpdateSpO2OnReading(ctx context.Context, unixSeconds int64, score float64) error {
	return s.updateColumn(ctx, "spo2", unixSeconds, score)
}

// UpdateSkinTempOnReading sets the skin-temperature score for one
// already-persisted reading.
func (s *Store) UpdateSkinTempOnReading(ctx context.Context, unixSeconds int64, score float64) error {
	return s.updateColumn(ctx, "skin_temp", unixSeconds, score)
}

func (s *Store) updateColumn(ctx context.Context, column string, unixSeconds int64, score float64) error {
	q := "UPDATE readings SET " + column + " = ? WHERE unix_seconds = ?;"
	_, err := s.db.ExecContext(ctx, q, score, unixSeconds)
	return err
}

// InsertPacket archives one raw framed packet, supporting the rerun
// use-case (spec §6): analytics can be recomputed from the archive
// without re-downloading from the device.
func (s *Store) InsertPacket(ctx context.Context, receivedAt time.Time, characteristic int, raw []byte) error {
	const stmt = `INSERT INTO packets (received_at, characteristic, raw) VALUES (?, ?, ?);`
	_, err := s.db.ExecContext(ctx, stmt, receivedAt.Unix(), characteristic, raw)
	return err
}

// ArchivedPacket is one row from the raw packet archive.
type ArchivedPacket struct {
	ID             int64
	ReceivedAt     time.Time
	Characteristic int
	Raw            []byte
}

// FetchPackets pages through the raw packet archive in insertion order,
// starting after afterID (0 for the very first page).
func (s *Store) FetchPackets(ctx context.Context, afterID int64, limit int) ([]ArchivedPacket, error) {
	const q = `
SELECT id, received_at, characteristic, raw FROM packets
WHERE id > ? ORDER BY id ASC LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, q, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedPacket
	for rows.Next() {
		var p ArchivedPacket
		var receivedAt int64
		if err := rows.Scan(&p.ID, &receivedAt, &p.Characteristic, &p.Raw); err != nil {
			return nil, err
		}
		p.ReceivedAt = time.Unix(receivedAt, 0)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) queryReadings(ctx context.Context, q string, args ...any) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		var rrJSON string
		var activity sql.NullInt64
		var sensorData, imuData sql.NullString
		var stress, spo2, skinTemp sql.NullFloat64
		if err := rows.Scan(&r.UnixSeconds, &r.BPM, &rrJSON, &activity, &sensorData, &imuData, &stress, &spo2, &skinTemp); err != nil {
			return nil, err
		}
		if activity.Valid {
			v := activity.Int64
			r.Activity = &v
		}
		if err := json.Unmarshal([]byte(rrJSON), &r.RR); err != nil {
			return nil, err
		}
		if sensorData.Valid {
			r.SensorData = []byte(sensorData.String)
		}
		if imuData.Valid {
			r.IMUData = []byte(imuData.String)
		}
		if stress.Valid {
			v := stress.Float64
			r.Stress = &v
		}
		if spo2.Valid {
			v := spo2.Float64
			r.SpO2 = &v
		}
		if skinTemp.Valid {
			v := skinTemp.Float64
			r.SkinTemp = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// chunked runs fn against batch-sized slices of items inside one
// transaction per chunk.
func chunked[T any](ctx context.Context, s *Store, items []T, size int, fn func(tx *sql.Tx, batch []T) error) error {
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx, items[start:end]); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
