package session

import "github.com/vivek-dodia/openwhoop/internal/codec"

// reassembler accumulates raw notification bytes for one characteristic
// and extracts complete frames by scanning for SOF and re-attempting
// codec.FromData as more bytes arrive — the byte-ring-buffer approach
// spec §9 calls for, rather than trusting "partial then one
// continuation" chunk boundaries. A stray non-SOF byte at the front
// (e.g. a link glitch) is skipped one byte at a time until framing
// resyncs, mirroring the teacher's FrameReceiver's resync-on-garbage
// behavior.
type reassembler struct {
	buf []byte
}

func newReassembler() *reassembler {
	return &reassembler{}
}

// feed appends newly arrived notification bytes.
func (r *reassembler) feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// next extracts one complete frame from the buffer, if available. It
// drops a leading garbage byte and retries when the front of the
// buffer isn't a valid frame start, and leaves the buffer untouched
// (waiting for more data) on a partial or too-short read.
func (r *reassembler) next() (*codec.Packet, bool) {
	for len(r.buf) > 0 {
		if r.buf[0] != codec.SOF {
			r.buf = r.buf[1:]
			continue
		}

		p, n, err := codec.FromData(r.buf)
		if err != nil {
			if err == codec.ErrPacketTooShort {
				return nil, false
			}
			// Frame didn't validate (length, header CRC8, payload
			// CRC32 or class byte); drop one byte and resync.
			r.buf = r.buf[1:]
			continue
		}
		if p.Partial {
			// Full header but payload still incomplete; wait for more
			// bytes and reparse from the same starting point next time.
			return nil, false
		}

		r.buf = r.buf[n:]
		return p, true
	}
	return nil, false
}
