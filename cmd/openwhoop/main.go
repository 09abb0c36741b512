// Command openwhoop is the CLI front end for the openwhoop companion:
// download history from a paired device, segment it into activities
// and sleep cycles, derive stress/SpO2/skin-temperature scores, and
// schedule the device's vibration alarm (spec §6). It plays the role
// the teacher's cmd/smacprint and cmd/npioff mains play directly
// against a serial NPI link, generalized to kingpin subcommands over
// a BLE device and a SQLite store.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/vivek-dodia/openwhoop/internal/ble"
	"github.com/vivek-dodia/openwhoop/internal/logx"
	"github.com/vivek-dodia/openwhoop/internal/orchestrator"
	"github.com/vivek-dodia/openwhoop/internal/session"
	"github.com/vivek-dodia/openwhoop/internal/store"
)

var (
	app         = kingpin.New("openwhoop", "Unofficial host-side companion for a wrist-worn physiological sensor.")
	databaseURL = app.Flag("database-url", "SQLite DSN for the persistence layer.").Envar("DATABASE_URL").Required().String()
	bleIface    = app.Flag("ble-interface", "Bluetooth adapter name prefix; accepted but not used, the default adapter is always used.").Envar("BLE_INTERFACE").String()

	scanCmd = app.Command("scan", "List nearby devices advertising the service UUID.")

	downloadCmd     = app.Command("download-history", "Connect, sync history, and persist it.")
	downloadWhoopID = downloadCmd.Flag("whoop", "Device address to connect to.").Required().String()

	rerunCmd = app.Command("rerun", "Replay the raw packet archive through the current codec.")

	detectCmd  = app.Command("detect-events", "Segment stored history into activities and sleep cycles.")
	detectFrom = detectCmd.Flag("from", "Start of the range (RFC3339).").Required().String()
	detectTo   = detectCmd.Flag("to", "End of the range (RFC3339).").Required().String()

	sleepStatsCmd  = app.Command("sleep-stats", "Score sleep consistency over a range.")
	sleepStatsFrom = sleepStatsCmd.Flag("from", "Start of the range (RFC3339).").Required().String()
	sleepStatsTo   = sleepStatsCmd.Flag("to", "End of the range (RFC3339).").Required().String()

	exerciseStatsCmd  = app.Command("exercise-stats", "Summarize active periods over a range.")
	exerciseStatsFrom = exerciseStatsCmd.Flag("from", "Start of the range (RFC3339).").Required().String()
	exerciseStatsTo   = exerciseStatsCmd.Flag("to", "End of the range (RFC3339).").Required().String()

	stressCmd = app.Command("calculate-stress", "Derive stress, SpO2 and skin-temperature scores for new readings.")

	alarmCmd     = app.Command("set-alarm", "Schedule the device's vibration alarm.")
	alarmSpec    = alarmCmd.Arg("time-spec", "Relative offset, absolute date-time, or wall-clock time.").Required().String()
	alarmWhoopID = alarmCmd.Flag("whoop", "Device address to connect to.").Required().String()
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logx.New().WithField("component", "cmd")
	ctx := context.Background()

	st, err := store.Open(ctx, *databaseURL)
	if err != nil {
		fail(err)
	}
	defer func() { _ = st.Close() }()

	adapter, err := ble.NewAdapter(log, *bleIface)
	if err != nil {
		fail(err)
	}

	dial := func(ctx context.Context, addr string) (*session.Session, error) {
		sess := session.New(log, adapter)
		if err := sess.Connect(ctx, addr); err != nil {
			return nil, err
		}
		if err := sess.Initialize(ctx, time.Now()); err != nil {
			return nil, err
		}
		return sess, nil
	}

	orch := orchestrator.New(log, st, dial, adapter)

	switch cmd {
	case scanCmd.FullCommand():
		err = runScan(ctx, orch)
	case downloadCmd.FullCommand():
		err = runDownload(ctx, orch, *downloadWhoopID)
	case rerunCmd.FullCommand():
		err = runRerun(ctx, orch)
	case detectCmd.FullCommand():
		err = runDetectEvents(ctx, orch, *detectFrom, *detectTo)
	case sleepStatsCmd.FullCommand():
		err = runSleepStats(ctx, orch, *sleepStatsFrom, *sleepStatsTo)
	case exerciseStatsCmd.FullCommand():
		err = runExerciseStats(ctx, orch, *exerciseStatsFrom, *exerciseStatsTo)
	case stressCmd.FullCommand():
		err = runStress(ctx, orch)
	case alarmCmd.FullCommand():
		err = orch.SetAlarm(ctx, *alarmWhoopID, *alarmSpec)
	}
	if err != nil {
		fail(err)
	}
}

func runScan(ctx context.Context, orch *orchestrator.Orchestrator) error {
	devices, err := orch.Scan(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\n", d.Address, d.Name)
	}
	return nil
}

func runDownload(ctx context.Context, orch *orchestrator.Orchestrator, whoopID string) error {
	result, err := orch.DownloadHistory(ctx, whoopID)
	if err != nil {
		return err
	}
	fmt.Printf("synced %d readings\n", len(result.Readings))
	return nil
}

func runRerun(ctx context.Context, orch *orchestrator.Orchestrator) error {
	n, err := orch.Rerun(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("re-persisted %d readings\n", n)
	return nil
}

func runDetectEvents(ctx context.Context, orch *orchestrator.Orchestrator, from, to string) error {
	fromTime, toTime, err := parseRange(from, to)
	if err != nil {
		return err
	}
	return orch.DetectEvents(ctx, fromTime, toTime)
}

func runSleepStats(ctx context.Context, orch *orchestrator.Orchestrator, from, to string) error {
	fromTime, toTime, err := parseRange(from, to)
	if err != nil {
		return err
	}
	metrics, err := orch.SleepStats(ctx, fromTime, toTime)
	if err != nil {
		return err
	}
	fmt.Printf("%+v\n", metrics)
	return nil
}

func runExerciseStats(ctx context.Context, orch *orchestrator.Orchestrator, from, to string) error {
	fromTime, toTime, err := parseRange(from, to)
	if err != nil {
		return err
	}
	metrics, err := orch.ExerciseStats(ctx, fromTime, toTime)
	if err != nil {
		return err
	}
	fmt.Printf("%+v\n", metrics)
	return nil
}

func runStress(ctx context.Context, orch *orchestrator.Orchestrator) error {
	stress, err := orch.CalculateStress(ctx)
	if err != nil {
		return err
	}
	spo2, err := orch.CalculateSpO2Scores(ctx)
	if err != nil {
		return err
	}
	skinTemp, err := orch.CalculateSkinTempScores(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("stress=%d spo2=%d skin-temp=%d\n", stress, spo2, skinTemp)
	return nil
}

func parseRange(from, to string) (time.Time, time.Time, error) {
	fromTime, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	toTime, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return fromTime, toTime, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
