package orchestrator

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vivek-dodia/openwhoop/internal/codec"
	"github.com/vivek-dodia/openwhoop/internal/store"
)

// rerunPageSize bounds how many archived packets Rerun fetches per
// round trip to storage.
const rerunPageSize = 500

// Rerun replays every archived raw packet (spec §3's Raw Packet
// Archive) through the current codec, re-deriving and re-upserting
// readings without any network I/O — directly modeled on the
// original's decode-then-store split for handle_packet, minus the
// sync controller's ack/dedup bookkeeping, which a live device
// connection doesn't need here. Returns the number of readings
// re-persisted.
func (o *Orchestrator) Rerun(ctx context.Context) (int, error) {
	var afterID int64
	total := 0

	for {
		packets, err := o.store.FetchPackets(ctx, afterID, rerunPageSize)
		if err != nil {
			return total, errors.Wrap(err, "orchestrator: fetch packets")
		}
		if len(packets) == 0 {
			return total, nil
		}

		var rows []store.Reading
		for _, archived := range packets {
			afterID = archived.ID

			frame, _, err := codec.FromData(archived.Raw)
			if err != nil {
				o.log.WithError(err).Warn("orchestrator: rerun skipping malformed archived packet")
				continue
			}
			record, err := codec.FromPacket(frame)
			if err != nil {
				if err != codec.ErrUnimplemented {
					o.log.WithError(err).Warn("orchestrator: rerun skipping undecodable record")
				}
				continue
			}
			if record.Kind != codec.KindHistoryReading {
				continue
			}
			parsed := record.Reading.Parsed()
			row, ok, err := toStoreReading(parsed)
			if err != nil {
				return total, err
			}
			if ok {
				rows = append(rows, row)
			}
		}

		if len(rows) > 0 {
			if err := o.store.InsertReadings(ctx, rows); err != nil {
				return total, errors.Wrap(err, "orchestrator: insert readings")
			}
			total += len(rows)
		}

		if len(packets) < rerunPageSize {
			return total, nil
		}
	}
}
