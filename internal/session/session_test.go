package session

import (
	"context"
	"testing"
	"time"

	"github.com/vivek-dodia/openwhoop/internal/ble"
	"github.com/vivek-dodia/openwhoop/internal/codec"
	"github.com/vivek-dodia/openwhoop/internal/logx"
)

func TestInitializeSendsHandshakeInOrder(t *testing.T) {
	fake := ble.NewFake()
	s := New(logx.Discard(), fake)

	if err := s.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Initialize(context.Background(), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	wantCmds := []codec.CommandByte{
		CmdOf(codec.HelloHarvard()),
		CmdOf(codec.SetClock(1000)),
		CmdOf(codec.GetName()),
		CmdOf(codec.EnterHighFreqSync()),
	}
	if len(fake.Written) != len(wantCmds) {
		t.Fatalf("expected %d writes, got %d", len(wantCmds), len(fake.Written))
	}
	for i, w := range fake.Written {
		if w.Char != ble.CharCommandToDevice {
			t.Errorf("write %d: expected CharCommandToDevice, got %v", i, w.Char)
		}
		// Read the command byte straight from the frame (SOF, 2 length
		// bytes, CRC8, class, seq, cmd): EnterHighFreqSync has an empty
		// payload, which FromData rejects as below its 8-byte length floor.
		if len(w.Data) < 7 {
			t.Fatalf("write %d: frame too short: %d bytes", i, len(w.Data))
		}
		if codec.CommandByte(w.Data[6]) != wantCmds[i] {
			t.Errorf("write %d: cmd = %v, want %v", i, w.Data[6], wantCmds[i])
		}
	}
}

func CmdOf(p *codec.Packet) codec.CommandByte {
	return codec.CommandByte(p.Cmd)
}

func TestReassemblerSplitsNotificationAcrossWrites(t *testing.T) {
	fake := ble.NewFake()
	s := New(logx.Discard(), fake)
	if err := s.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	p := codec.NewPacket(codec.Event, 0, 1, []byte{0xAA, 0xBB, 0xCC, 0xDD})
	framed := p.Frame()

	fake.Notify(ble.CharEvents, framed[:5])
	select {
	case <-s.Records():
		t.Fatalf("expected no record before full frame arrives")
	default:
	}

	fake.Notify(ble.CharEvents, framed[5:])

	select {
	case rec := <-s.Records():
		if rec.Kind != codec.KindEvent {
			t.Fatalf("expected KindEvent, got %v", rec.Kind)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for reassembled record")
	}
}

func TestGetVersionTimesOut(t *testing.T) {
	fake := ble.NewFake()
	s := New(logx.Discard(), fake)
	if err := s.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.GetVersion(ctx)
	if err == nil {
		t.Fatalf("expected an error when device never answers")
	}
}
