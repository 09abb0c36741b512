// Package session implements the Device Session: the connection
// lifecycle and frame-reassembly state machine sitting directly on top
// of internal/ble, turning raw characteristic notifications into
// decoded internal/codec.Record values. It plays the role the
// teacher's LinkMgr plays over a serial FrameReceiver, generalized
// from one stream to four (data/command/events/memfault).
package session

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vivek-dodia/openwhoop/internal/ble"
	"github.com/vivek-dodia/openwhoop/internal/codec"
)

// ErrVersionTimeout is returned by GetVersion when the device does not
// answer within the timeout (spec §4.2).
var ErrVersionTimeout = errors.New("session: version info request timed out")

const versionTimeout = 5 * time.Second

// Session owns one connected device and the reassembly buffers for its
// four inbound characteristics.
type Session struct {
	log  *logrus.Entry
	peer ble.Peripheral

	buffers map[ble.Characteristic]*reassembler

	records  chan *codec.Record
	versions chan *codec.VersionInfo

	// Archiver, when set, receives the re-framed bytes of every
	// successfully decoded packet in arrival order, supporting the
	// rerun use-case's raw packet archive (spec §3/§6).
	Archiver func(char ble.Characteristic, frame []byte)
}

// New wraps a connected Peripheral. Connect/Initialize must be called
// before Records starts yielding anything.
func New(log *logrus.Entry, peer ble.Peripheral) *Session {
	return &Session{
		log:  log,
		peer: peer,
		buffers: map[ble.Characteristic]*reassembler{
			ble.CharCommandFromDevice: newReassembler(),
			ble.CharEvents:            newReassembler(),
			ble.CharData:              newReassembler(),
			ble.CharMemfault:          newReassembler(),
		},
		records:  make(chan *codec.Record, 64),
		versions: make(chan *codec.VersionInfo, 1),
	}
}

// Records yields every successfully decoded record in arrival order.
// Frames that fail framing checks are dropped, and records that fail
// to decode are logged and dropped, rather than surfaced, since one
// corrupt notification must not stall the whole stream.
func (s *Session) Records() <-chan *codec.Record {
	return s.records
}

// Connect dials the peripheral and performs the four-characteristic
// subscribe.
func (s *Session) Connect(ctx context.Context, addr string) error {
	if err := s.peer.Connect(ctx, addr); err != nil {
		return errors.Wrap(err, "session: connect")
	}
	if err := s.peer.Subscribe(ctx, s.onNotify); err != nil {
		return errors.Wrap(err, "session: subscribe")
	}
	return nil
}

// Initialize performs the handshake spec §4.2 requires on every fresh
// connection: hello, set-clock, get-name, enter-high-freq-sync — in
// that order, each a fire-and-forget write (the device does not ack
// these individually).
func (s *Session) Initialize(ctx context.Context, now time.Time) error {
	steps := []*codec.Packet{
		codec.HelloHarvard(),
		codec.SetClock(uint32(now.Unix())),
		codec.GetName(),
		codec.EnterHighFreqSync(),
	}
	for _, p := range steps {
		if err := s.SendCommand(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// SendCommand writes a single packet to the command-to-device
// characteristic.
func (s *Session) SendCommand(ctx context.Context, p *codec.Packet) error {
	return s.peer.Write(ctx, ble.CharCommandToDevice, p.Frame())
}

// Close exits high-frequency sync and disconnects.
func (s *Session) Close(ctx context.Context) error {
	_ = s.SendCommand(ctx, codec.ExitHighFreqSync())
	return s.peer.Disconnect()
}

// GetVersion requests firmware version info and waits up to 5s for the
// device to answer.
func (s *Session) GetVersion(ctx context.Context) (*codec.VersionInfo, error) {
	if err := s.SendCommand(ctx, codec.ReportVersionInfo()); err != nil {
		return nil, err
	}
	timer := time.NewTimer(versionTimeout)
	defer timer.Stop()
	select {
	case v := <-s.versions:
		return v, nil
	case <-timer.C:
		return nil, ErrVersionTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// onNotify is the ble.NotifyFunc handed to Subscribe: it feeds raw
// bytes into the characteristic's reassembler, extracts as many
// complete frames as are available, decodes each into a Record, and
// either publishes it on records or resolves a pending GetVersion.
func (s *Session) onNotify(char ble.Characteristic, data []byte) {
	buf, ok := s.buffers[char]
	if !ok {
		return
	}
	buf.feed(data)

	for {
		packet, ok := buf.next()
		if !ok {
			return
		}
		record, err := codec.FromPacket(packet)
		if err != nil {
			if err == codec.ErrUnimplemented {
				continue
			}
			s.log.WithError(err).Warn("session: dropping malformed record")
			continue
		}
		if s.Archiver != nil {
			s.Archiver(char, packet.Frame())
		}
		if record.Kind == codec.KindVersionInfo {
			select {
			case s.versions <- record.Version:
			default:
			}
			continue
		}
		if record.Kind == codec.KindUnknown {
			continue
		}
		select {
		case s.records <- record:
		default:
			s.log.Warn("session: record channel full, dropping record")
		}
	}
}
