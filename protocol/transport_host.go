package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
)

var (
	ErrTimeout       = errors.New("protocol: timed out")
	ErrClosed        = errors.New("protocol: transport closed")
	ErrFrameTooLarge = errors.New("protocol: command does not fit in one frame")
)

// DefaultTimeout bounds the wait for an ack when SendCommand is used.
const DefaultTimeout = 2 * time.Second

// Message is a frame received from the firmware.
type Message struct {
	Sequence uint8
	Payload  []byte
}

// Command splits the message into its first command ID and the remaining
// argument bytes.
func (m *Message) Command() (uint16, []byte, error) {
	data := m.Payload
	id, err := Uint(&data)
	return uint16(id), data, err
}

// HostTransport is the host end of the link. A background goroutine reads
// the port and sorts incoming frames into acks and responses.
type HostTransport struct {
	port   io.ReadWriteCloser
	logger *slog.Logger

	seq atomic.Uint32

	writeMu sync.Mutex
	readMu  sync.Mutex
	rx      deframer
	in      *Ring

	acks      chan *Message
	responses chan *Message

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewHostTransport starts reading from port.
func NewHostTransport(port io.ReadWriteCloser, opts ...Option) *HostTransport {
	o := buildOptions(opts)
	t := &HostTransport{
		port:      port,
		logger:    o.logger,
		in:        NewRing(OutputMax),
		acks:      make(chan *Message, 1),
		responses: make(chan *Message, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	t.seq.Store(SeqDest)
	t.rx.init(false)
	t.rx.onFrame = t.frame
	t.rx.onDrop = func(reason string) {
		if t.logger != nil {
			t.logger.Debug("dropping input", slog.String("reason", reason))
		}
	}
	go t.readLoop()
	return t
}

// Sequence is the sequence the next command frame will carry.
func (t *HostTransport) Sequence() uint8 { return uint8(t.seq.Load()) }

// SendCommand sends one command and waits up to DefaultTimeout for its ack.
func (t *HostTransport) SendCommand(id uint16, args func(out OutputBuffer)) error {
	return t.SendCommandTimeout(id, args, DefaultTimeout)
}

// SendCommandTimeout sends one command and waits for the firmware to ack it
// with the following sequence.
func (t *HostTransport) SendCommandTimeout(id uint16, args func(out OutputBuffer), timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	seq := uint8(t.seq.Load())
	frame, err := buildFrame(seq, id, args)
	if err != nil {
		return err
	}
	// Forget acks nobody waited for, such as one sent on resync.
	select {
	case <-t.acks:
	default:
	}
	if t.logger != nil {
		t.logger.Debug("send", slog.Int("id", int(id)), slog.Int("seq", int(seq)))
	}
	if _, err := t.port.Write(frame); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	want := NextSeq(seq)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ack := <-t.acks:
		if ack.Sequence != want {
			return fmt.Errorf("protocol: ack sequence %#02x, want %#02x", ack.Sequence, want)
		}
		t.seq.Store(uint32(want))
		return nil
	case <-timer.C:
		return fmt.Errorf("protocol: ack for %#02x: %w", seq, ErrTimeout)
	case <-t.stop:
		return ErrClosed
	}
}

func buildFrame(seq uint8, id uint16, args func(out OutputBuffer)) ([]byte, error) {
	body := NewScratchOutput()
	body.Output([]byte{0, seq})
	PutUint(body, uint32(id))
	if args != nil {
		args(body)
	}
	n := body.Position() + TrailerSize
	if n > FrameMax {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	body.Patch(posLen, uint8(n))
	return appendTrailer(append([]byte(nil), body.Bytes()...)), nil
}

// ReceiveResponse returns the next response frame.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-t.responses:
		return m, nil
	case <-timer.C:
		return nil, fmt.Errorf("protocol: response: %w", ErrTimeout)
	case <-t.stop:
		return nil, ErrClosed
	}
}

func (t *HostTransport) readLoop() {
	defer close(t.done)
	buf := make([]byte, 256)
	for {
		select {
		case <-t.stop:
			return
		default:
		}
		n, err := t.port.Read(buf)
		if n > 0 {
			t.ingest(buf[:n])
		}
		switch {
		case err != nil && !errors.Is(err, io.EOF):
			time.Sleep(10 * time.Millisecond)
		case n == 0:
			// Serial read timeouts surface as EOF, but so does a port whose
			// peer is gone, which returns at once.
			time.Sleep(time.Millisecond)
		}
	}
}

func (t *HostTransport) ingest(p []byte) {
	t.readMu.Lock()
	defer t.readMu.Unlock()
	for len(p) > 0 {
		n := t.in.Write(p)
		p = p[n:]
		data := t.in.Data()
		rest := t.rx.feed(data)
		t.in.Pop(len(data) - len(rest))
		if n == 0 && t.in.Free() == 0 {
			// Nothing fits and nothing parses: the buffer holds junk.
			t.in.Reset()
			t.rx.synced.Store(false)
		}
	}
}

func (t *HostTransport) frame(seq uint8, payload []byte) {
	m := &Message{Sequence: seq, Payload: append([]byte(nil), payload...)}
	if len(payload) == 0 {
		select {
		case t.acks <- m:
		default:
		}
		return
	}
	select {
	case t.responses <- m:
	default:
		// Drop the oldest response to make room.
		select {
		case <-t.responses:
		default:
		}
		t.responses <- m
	}
}

// Reset forgets all buffered input and restarts the sequence, which the
// firmware treats as a host restart.
func (t *HostTransport) Reset() {
	t.readMu.Lock()
	t.in.Reset()
	t.rx.synced.Store(true)
	t.readMu.Unlock()
	t.seq.Store(SeqDest)
	for len(t.acks) > 0 {
		<-t.acks
	}
	for len(t.responses) > 0 {
		<-t.responses
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		// Closing first unblocks a Read without a timeout.
		err = t.port.Close()
		<-t.done
	})
	return err
}
