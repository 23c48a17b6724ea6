// Package spitest provides a simulated SPI register block for exercising the
// spi package and its adapters without hardware.
package spitest

import (
	"github.com/janschiefer/stm32f4xx-hal/spi"
	"golang.org/x/exp/constraints"
)

// EventKind classifies a register access.
type EventKind uint8

const (
	Poll EventKind = iota
	WriteData
	ReadData
	ClearModeFault
	ClearCRCError
	BidiOutput
	BidiInput
)

var eventNames = [...]string{
	Poll:           "poll",
	WriteData:      "write",
	ReadData:       "read",
	ClearModeFault: "clear-modf",
	ClearCRCError:  "clear-crcerr",
	BidiOutput:     "bidi-out",
	BidiInput:      "bidi-in",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is one register access. Value is the data register value for
// WriteData and ReadData events and the status for Poll events.
type Event struct {
	Kind  EventKind
	Value uint16
}

// Config describes how the simulated peripheral was initialised.
type Config struct {
	Frame16 bool // 16-bit data frame format (DFF)
	Bidi    bool // single line bidirectional mode (BIDIMODE)
	// Latency is the number of extra status polls a frame takes to shift.
	Latency int
}

// Peripheral is a simulated register block. A word written in full-duplex
// mode completes after Latency+1 polls and produces a received word: the next
// queued word if any, otherwise an echo of what was sent. In bidirectional
// input mode words arrive continuously from the queue (zero when empty).
type Peripheral struct {
	cfg Config

	events  []Event
	polls   int
	faults  map[int]spi.Status
	latched spi.Status

	inflight  bool
	txWord    uint16
	countdown int

	rxFull bool
	rxWord uint16
	rx     []uint16

	output bool
}

// New returns an idle peripheral with the transmit buffer empty.
func New(cfg Config) *Peripheral {
	return &Peripheral{cfg: cfg, faults: make(map[int]spi.Status)}
}

// Feed queues words to be received.
func (p *Peripheral) Feed(words ...uint16) {
	p.rx = append(p.rx, words...)
}

// FailAtPoll latches the fault bits in st on the n-th status poll, counted
// from 1 over the lifetime of the peripheral.
func (p *Peripheral) FailAtPoll(n int, st spi.Status) {
	p.faults[n] |= st
}

// Latch latches fault bits immediately.
func (p *Peripheral) Latch(st spi.Status) {
	p.latched |= st
}

// Events returns the register access log.
func (p *Peripheral) Events() []Event { return p.events }

// Polls returns the number of status register reads so far.
func (p *Peripheral) Polls() int { return p.polls }

// Sent returns every value written to the data register.
func (p *Peripheral) Sent() []uint16 { return p.values(WriteData) }

// Received returns every value read from the data register.
func (p *Peripheral) Received() []uint16 { return p.values(ReadData) }

// Count returns how many events of kind k were logged.
func (p *Peripheral) Count(k EventKind) int {
	n := 0
	for _, e := range p.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Trace returns the log without Poll events.
func (p *Peripheral) Trace() []Event {
	var out []Event
	for _, e := range p.events {
		if e.Kind != Poll {
			out = append(out, e)
		}
	}
	return out
}

func (p *Peripheral) values(k EventKind) []uint16 {
	var out []uint16
	for _, e := range p.events {
		if e.Kind == k {
			out = append(out, e.Value)
		}
	}
	return out
}

func (p *Peripheral) log(k EventKind, v uint16) {
	p.events = append(p.events, Event{Kind: k, Value: v})
}

func (p *Peripheral) listening() bool {
	return p.cfg.Bidi && !p.output
}

func (p *Peripheral) mask(v uint16) uint16 {
	if p.cfg.Frame16 {
		return v
	}
	return v & 0xff
}

func (p *Peripheral) nextRx(echo uint16) uint16 {
	if len(p.rx) > 0 {
		w := p.rx[0]
		p.rx = p.rx[1:]
		return p.mask(w)
	}
	return echo
}

func (p *Peripheral) deliver(w uint16) {
	if p.rxFull {
		p.latched |= spi.StatusOVR
		return
	}
	p.rxFull = true
	p.rxWord = w
}

func (p *Peripheral) step() {
	switch {
	case p.inflight:
		if p.countdown > 0 {
			p.countdown--
			return
		}
		p.inflight = false
		if !p.cfg.Bidi {
			p.deliver(p.nextRx(p.txWord))
		}
	case p.listening() && !p.rxFull:
		if p.countdown > 0 {
			p.countdown--
			return
		}
		p.deliver(p.nextRx(0))
		p.countdown = p.cfg.Latency
	}
}

// Status implements spi.Instance.
func (p *Peripheral) Status() spi.Status {
	p.polls++
	p.latched |= p.faults[p.polls]
	p.step()
	st := p.latched
	if !p.inflight {
		st |= spi.StatusTXE
	} else {
		st |= spi.StatusBSY
	}
	if p.rxFull {
		st |= spi.StatusRXNE
	}
	p.log(Poll, uint16(st))
	return st
}

// ReadData implements spi.Instance.
func (p *Peripheral) ReadData() uint16 {
	p.latched &^= spi.StatusOVR
	p.rxFull = false
	p.log(ReadData, p.rxWord)
	return p.rxWord
}

// WriteData implements spi.Instance.
func (p *Peripheral) WriteData(v uint16) {
	v = p.mask(v)
	p.log(WriteData, v)
	if p.listening() {
		return
	}
	p.inflight = true
	p.txWord = v
	p.countdown = p.cfg.Latency
}

// ClearModeFault implements spi.Instance.
func (p *Peripheral) ClearModeFault() {
	p.latched &^= spi.StatusMODF
	p.log(ClearModeFault, 0)
}

// ClearCRCError implements spi.Instance.
func (p *Peripheral) ClearCRCError() {
	p.latched &^= spi.StatusCRCERR
	p.log(ClearCRCError, 0)
}

// SetBidiOutput implements spi.Instance.
func (p *Peripheral) SetBidiOutput(out bool) {
	if out {
		p.log(BidiOutput, 0)
	} else {
		p.log(BidiInput, 0)
		if p.output {
			p.countdown = p.cfg.Latency
		}
	}
	p.output = out
}

// DataFrame16 implements spi.FrameConfig.
func (p *Peripheral) DataFrame16() bool { return p.cfg.Frame16 }

// BidiMode implements spi.FrameConfig.
func (p *Peripheral) BidiMode() bool { return p.cfg.Bidi }

// Values widens a word slice for comparison against Sent and Received.
func Values[W constraints.Unsigned](words ...W) []uint16 {
	out := make([]uint16, len(words))
	for i, w := range words {
		out[i] = uint16(w)
	}
	return out
}
