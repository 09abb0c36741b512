package algo

import (
	"testing"
	"time"

	"github.com/vivek-dodia/openwhoop/internal/codec"
)

func at(base time.Time, minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func makeReading(base time.Time, minutes int, bpm uint8, activity codec.Activity) codec.ParsedHistoryReading {
	return codec.ParsedHistoryReading{Time: at(base, minutes), BPM: bpm, Activity: activity}
}

func TestDetectActivityPeriodsSingleType(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var history []codec.ParsedHistoryReading
	for m := 0; m < 30; m++ {
		history = append(history, makeReading(base, m, 70, codec.ActivityActive))
	}
	periods := DetectActivityPeriods(history)
	if len(periods) != 1 {
		t.Fatalf("expected 1 period, got %d", len(periods))
	}
	if periods[0].Activity != codec.ActivityActive {
		t.Errorf("expected Active, got %v", periods[0].Activity)
	}
}

func TestDetectActivityPeriodsSplitsOnActivityChange(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var history []codec.ParsedHistoryReading
	for m := 0; m < 20; m++ {
		history = append(history, makeReading(base, m, 70, codec.ActivityActive))
	}
	for m := 20; m < 40; m++ {
		history = append(history, makeReading(base, m, 55, codec.ActivitySleep))
	}
	periods := DetectActivityPeriods(history)
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	if periods[0].Activity != codec.ActivityActive || periods[1].Activity != codec.ActivitySleep {
		t.Fatalf("unexpected activities: %v, %v", periods[0].Activity, periods[1].Activity)
	}
}

func TestSmoothSpikesRemovesSinglePointSpike(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []codec.ParsedHistoryReading{
		makeReading(base, 0, 70, codec.ActivitySleep),
		makeReading(base, 1, 70, codec.ActivityActive),
		makeReading(base, 2, 70, codec.ActivitySleep),
	}
	smoothSpikes(history)
	if history[1].Activity != codec.ActivitySleep {
		t.Fatalf("expected spike smoothed to Sleep, got %v", history[1].Activity)
	}
}

func TestFindSleepReturnsLongSleep(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []ActivityPeriod{
		{Activity: codec.ActivityActive, Start: base, End: at(base, 30), Duration: 30 * time.Minute},
		{Activity: codec.ActivitySleep, Start: at(base, 30), End: at(base, 300), Duration: 270 * time.Minute},
	}
	sleep, ok := FindSleep(&events)
	if !ok {
		t.Fatalf("expected to find a sleep period")
	}
	if sleep.Activity != codec.ActivitySleep {
		t.Fatalf("expected Sleep, got %v", sleep.Activity)
	}
}

func TestFindSleepIgnoresShortSleep(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []ActivityPeriod{
		{Activity: codec.ActivitySleep, Start: base, End: at(base, 30), Duration: 30 * time.Minute},
	}
	_, ok := FindSleep(&events)
	if ok {
		t.Fatalf("expected no sleep period under 60min to qualify")
	}
}

func TestSleepScoreBoundaries(t *testing.T) {
	start := time.Date(2025, 1, 1, 22, 0, 0, 0, time.UTC)

	if got := SleepScore(start, start.Add(8*time.Hour)); got != 100 {
		t.Errorf("8h sleep score = %v, want 100", got)
	}
	if got := SleepScore(start, start.Add(4*time.Hour)); got != 0 {
		t.Errorf("4h sleep score = %v, want 0 (integer truncation)", got)
	}
	if got := SleepScore(start, start.Add(24*time.Hour)); got != 100 {
		t.Errorf("24h sleep score = %v, want clamped 100", got)
	}
}

func TestCalculateStressConstantRRReturnsMax(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var hr []codec.ParsedHistoryReading
	for i := 0; i < 120; i++ {
		hr = append(hr, codec.ParsedHistoryReading{
			Time: at(base, i),
			BPM:  80,
			RR:   []uint16{750},
		})
	}
	score, ok := CalculateStress(hr)
	if !ok {
		t.Fatalf("expected a stress score")
	}
	if score.Score != 10.0 {
		t.Errorf("constant-RR stress = %v, want 10.0", score.Score)
	}
}

func TestCalculateStressTooFewReadings(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var hr []codec.ParsedHistoryReading
	for i := 0; i < 50; i++ {
		hr = append(hr, codec.ParsedHistoryReading{Time: at(base, i), BPM: 80})
	}
	if _, ok := CalculateStress(hr); ok {
		t.Fatalf("expected no stress score under 120 readings")
	}
}

func constantStrainReadings(base time.Time, bpm uint8, n int) []codec.ParsedHistoryReading {
	out := make([]codec.ParsedHistoryReading, n)
	for i := 0; i < n; i++ {
		out[i] = codec.ParsedHistoryReading{Time: base.Add(time.Duration(i) * time.Second), BPM: bpm}
	}
	return out
}

func TestStrainCappedAt21(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	calc := StrainCalculator{MaxHR: 190, RestingHR: 60}
	readings := constantStrainReadings(base, 190, 86400)
	score, ok := calc.Calculate(readings)
	if !ok {
		t.Fatalf("expected a strain score")
	}
	if float64(score) != 21.0 {
		t.Errorf("24h-at-max strain = %v, want 21.0", float64(score))
	}
}

func TestStrainRestingHRProducesZero(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	calc := StrainCalculator{MaxHR: 190, RestingHR: 60}
	readings := constantStrainReadings(base, 65, 600)
	score, ok := calc.Calculate(readings)
	if !ok {
		t.Fatalf("expected a strain score")
	}
	if float64(score) != 0.0 {
		t.Errorf("below-zone-1 strain = %v, want 0.0", float64(score))
	}
}

func TestStrainInvalidHRParams(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	readings := constantStrainReadings(base, 80, 600)
	if _, ok := (StrainCalculator{MaxHR: 60, RestingHR: 60}).Calculate(readings); ok {
		t.Fatalf("expected no strain when max_hr == resting_hr")
	}
}

func TestCalculateSpO2RatioOfOne(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var readings []SpO2Reading
	for i := 0; i < 30; i++ {
		readings = append(readings, SpO2Reading{
			Time:    base.Add(time.Duration(i) * time.Second),
			SpO2Red: uint16(1000 + (i%3)*10),
			SpO2IR:  uint16(2000 + (i%3)*20),
		})
	}
	score, ok := CalculateSpO2(readings)
	if !ok {
		t.Fatalf("expected an SpO2 score")
	}
	if diff := score.SpO2Percentage - 85.0; diff < -1.0 || diff > 1.0 {
		t.Errorf("spo2 = %v, want ~85.0", score.SpO2Percentage)
	}
}

func TestCalculateSpO2AllZerosRejected(t *testing.T) {
	var readings []SpO2Reading
	for i := 0; i < 30; i++ {
		readings = append(readings, SpO2Reading{Time: time.Now(), SpO2Red: 0, SpO2IR: 0})
	}
	if _, ok := CalculateSpO2(readings); ok {
		t.Fatalf("expected no SpO2 score for all-zero channels")
	}
}

func TestCalculateSkinTempKnownValues(t *testing.T) {
	now := time.Now()
	cases := []struct {
		raw  uint16
		want float64
	}{
		{850, 34.0},
		{900, 36.0},
		{700, 28.0},
		{100, 4.0},
	}
	for _, c := range cases {
		score, ok := CalculateSkinTemp(now, c.raw)
		if !ok {
			t.Fatalf("raw=%d: expected a score", c.raw)
		}
		if score.TempCelsius != c.want {
			t.Errorf("raw=%d: got %v, want %v", c.raw, score.TempCelsius, c.want)
		}
	}
}

func TestCalculateSkinTempBelowMinimumRejected(t *testing.T) {
	if _, ok := CalculateSkinTemp(time.Now(), 50); ok {
		t.Fatalf("expected no score below the minimum raw threshold")
	}
}

func TestCalculateSleepConsistencyEmptyIsZeroValue(t *testing.T) {
	metrics := CalculateSleepConsistency(nil)
	if metrics.Score != (ConsistencyScore{}) {
		t.Fatalf("expected zero-value ConsistencyScore, got %+v", metrics.Score)
	}
}

func TestMeanClockTimeWrapsEveningAverage(t *testing.T) {
	times := []time.Time{
		time.Date(2025, 1, 1, 22, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
	}
	mean := meanClockTime(times)
	want := 22*time.Hour + 30*time.Minute
	if mean != want {
		t.Errorf("mean clock time = %v, want %v", mean, want)
	}
}
