package store

import (
	"context"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertReadingUpsertPreservesDerivedScalars(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if err := s.InsertReading(ctx, Reading{UnixSeconds: 1000, BPM: 60, RR: []uint16{800}}); err != nil {
		t.Fatalf("InsertReading: %v", err)
	}
	if err := s.UpdateStressOnReading(ctx, 1000, 42.0); err != nil {
		t.Fatalf("UpdateStressOnReading: %v", err)
	}

	// A resynced raw reading at the same timestamp must not clobber the
	// stress score already derived for it.
	if err := s.InsertReading(ctx, Reading{UnixSeconds: 1000, BPM: 61, RR: []uint16{810}}); err != nil {
		t.Fatalf("InsertReading (re-sync): %v", err)
	}

	readings, err := s.SearchHistory(ctx, time.Unix(0, 0), time.Unix(10000, 0))
	if err != nil {
		t.Fatalf("SearchHistory: %v", err)
	}
	if len(readings) != 0 {
		t.Fatalf("expected 0 rows (activity not set yet), got %d", len(readings))
	}

	sensorReadings, err := s.SearchSensorReadings(ctx, time.Unix(0, 0), time.Unix(10000, 0))
	if err != nil {
		t.Fatalf("SearchSensorReadings: %v", err)
	}
	_ = sensorReadings

	var stress float64
	row := rawQueryRow(t, s, "SELECT stress FROM readings WHERE unix_seconds = 1000")
	if err := row.Scan(&stress); err != nil {
		t.Fatalf("scan stress: %v", err)
	}
	if stress != 42.0 {
		t.Fatalf("stress = %v, want 42.0 (must survive the re-sync upsert)", stress)
	}

	var bpm int
	row = rawQueryRow(t, s, "SELECT bpm FROM readings WHERE unix_seconds = 1000")
	if err := row.Scan(&bpm); err != nil {
		t.Fatalf("scan bpm: %v", err)
	}
	if bpm != 61 {
		t.Fatalf("bpm = %d, want 61 (the resynced value)", bpm)
	}
}

func TestInsertSleepUpsertDoesNotOverwriteScore(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	if err := s.InsertSleep(ctx, SleepCycle{SleepID: 500, Start: 100, End: 500, MinBPM: 40, MaxBPM: 90, AvgBPM: 55, HRV: 30, Score: 88.5}); err != nil {
		t.Fatalf("InsertSleep: %v", err)
	}
	if err := s.InsertSleep(ctx, SleepCycle{SleepID: 500, Start: 100, End: 500, MinBPM: 41, MaxBPM: 91, AvgBPM: 56, HRV: 31, Score: 0}); err != nil {
		t.Fatalf("InsertSleep (update): %v", err)
	}

	var score float64
	row := rawQueryRow(t, s, "SELECT score FROM sleep_cycles WHERE sleep_id = 500")
	if err := row.Scan(&score); err != nil {
		t.Fatalf("scan score: %v", err)
	}
	if score != 88.5 {
		t.Fatalf("score = %v, want 88.5 (score must not change on conflict)", score)
	}
}

func rawQueryRow(t *testing.T, s *Store, q string) interface{ Scan(...any) error } {
	t.Helper()
	return s.db.QueryRowContext(context.Background(), q)
}
