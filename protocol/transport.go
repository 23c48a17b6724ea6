package protocol

import (
	"sync/atomic"

	"golang.org/x/exp/slog"
)

// Handler decodes and runs one command. It must consume exactly the
// command's arguments from *data so the next command in the frame can be
// decoded.
type Handler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link: it deframes host commands,
// acknowledges every frame and encodes responses into an OutputBuffer that
// the caller flushes to the wire.
type Transport struct {
	rx deframer

	// next is the sequence expected from the host. Acks and responses carry
	// it too.
	next atomic.Uint32

	out     OutputBuffer
	handler Handler
	logger  *slog.Logger

	onReset func()
	onFlush func()
}

// NewTransport returns a Transport that dispatches commands to handler and
// writes to out.
func NewTransport(out OutputBuffer, handler Handler, opts ...Option) *Transport {
	o := buildOptions(opts)
	t := &Transport{out: out, handler: handler, logger: o.logger}
	t.next.Store(SeqDest)
	t.rx.init(true)
	t.rx.onFrame = t.frame
	t.rx.onResync = t.ack
	t.rx.onDrop = func(reason string) {
		if t.logger != nil {
			t.logger.Debug("dropping input", slog.String("reason", reason))
		}
	}
	return t
}

// SetResetCallback registers fn to run when the host restarts its sequence.
func (t *Transport) SetResetCallback(fn func()) { t.onReset = fn }

// SetFlushCallback registers fn to run right after an ack is encoded, so the
// ack can be pushed out before any slow command runs.
func (t *Transport) SetFlushCallback(fn func()) { t.onFlush = fn }

// Receive processes all complete frames in in and pops what it consumed.
func (t *Transport) Receive(in InputBuffer) {
	data := in.Data()
	rest := t.rx.feed(data)
	in.Pop(len(data) - len(rest))
}

func (t *Transport) frame(seq uint8, payload []byte) {
	expected := uint8(t.next.Load())
	if seq == SeqDest && expected != SeqDest {
		// The host restarted.
		t.next.Store(SeqDest)
		expected = SeqDest
		if t.onReset != nil {
			t.onReset()
		}
	}
	if seq != expected {
		// Retransmission or gap: nak with the sequence still expected.
		t.ack()
		return
	}
	t.next.Store(uint32(NextSeq(seq)))
	t.ack()
	t.dispatch(payload)
}

func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.rx.synced.Store(false)
			if t.logger != nil {
				t.logger.Error("command panicked", slog.Any("panic", r))
			}
		}
	}()
	for len(payload) > 0 {
		id, err := Uint(&payload)
		if err != nil {
			t.rx.synced.Store(false)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(id), &payload); err != nil {
			// The rest of the frame cannot be decoded reliably.
			if t.logger != nil {
				t.logger.Warn("command failed", slog.Int("id", int(id)), slog.Any("err", err))
			}
			return
		}
	}
}

func (t *Transport) ack() {
	var frame [FrameMin]byte
	b := append(frame[:0], FrameMin, uint8(t.next.Load()))
	t.out.Output(appendTrailer(b))
	if t.onFlush != nil {
		t.onFlush()
	}
}

// EncodeFrame writes one frame whose payload is produced by body.
func (t *Transport) EncodeFrame(body func(out OutputBuffer)) {
	start := t.out.Position()
	t.out.Output([]byte{0, uint8(t.next.Load())})
	body(t.out)
	n := len(t.out.Since(start)) + TrailerSize
	t.out.Patch(start, uint8(n))
	crc := CRC16(t.out.Since(start))
	t.out.Output([]byte{byte(crc >> 8), byte(crc), SyncByte})
}

// SendCommand encodes a frame holding command id and its arguments.
func (t *Transport) SendCommand(id uint16, args func(out OutputBuffer)) {
	t.EncodeFrame(func(out OutputBuffer) {
		PutUint(out, uint32(id))
		if args != nil {
			args(out)
		}
	})
}

// Reset returns to the power-on state, as after a reconnect.
func (t *Transport) Reset() {
	t.rx.synced.Store(true)
	t.next.Store(SeqDest)
	if t.onReset != nil {
		t.onReset()
	}
}
