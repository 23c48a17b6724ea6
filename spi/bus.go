package spi

import "golang.org/x/exp/slog"

// Bus is an exclusively owned SPI peripheral driven by polling. W fixes the
// word width and L the wiring for the lifetime of the handle.
type Bus[W Word, L Wiring] struct {
	regs   Instance
	logger *slog.Logger
}

// Option configures optional Bus behaviour.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger attaches a logger. Aborted buffer operations are reported at
// debug level with the index of the word that failed.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New wraps an initialised peripheral. If regs implements FrameConfig, its
// data frame format and bidirectional mode must agree with W and L.
func New[W Word, L Wiring](regs Instance, opts ...Option) (*Bus[W, L], error) {
	if regs == nil {
		return nil, ErrNilInstance
	}
	if fc, ok := regs.(FrameConfig); ok {
		if fc.DataFrame16() != is16Bit[W]() {
			return nil, ErrFrameMismatch
		}
		if fc.BidiMode() != isHalfDuplex[L]() {
			return nil, ErrWiringMismatch
		}
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Bus[W, L]{regs: regs, logger: o.logger}, nil
}

// Instance returns the underlying peripheral.
func (b *Bus[W, L]) Instance() Instance { return b.regs }

// HalfDuplex reports whether the bus uses the single bidirectional line.
func (b *Bus[W, L]) HalfDuplex() bool { return isHalfDuplex[L]() }

// CheckSend starts shifting out w if the transmit buffer is empty. It
// returns ErrWouldBlock while TXE is clear. A latched fault is cleared and
// returned instead of sending.
func (b *Bus[W, L]) CheckSend(w W) error {
	sr := b.regs.Status()
	switch {
	case sr&StatusOVR != 0:
		// DR read followed by the SR read above clears OVR.
		b.regs.ReadData()
		return Overrun
	case sr&StatusMODF != 0:
		b.regs.ClearModeFault()
		return ModeFault
	case sr&StatusCRCERR != 0:
		b.regs.ClearCRCError()
		return Crc
	case sr&StatusTXE != 0:
		b.regs.WriteData(uint16(w))
		return nil
	}
	return ErrWouldBlock
}

// CheckRead returns the received word if RXNE is set, ErrWouldBlock
// otherwise. Faults are reported but left latched.
func (b *Bus[W, L]) CheckRead() (W, error) {
	sr := b.regs.Status()
	switch {
	case sr&StatusOVR != 0:
		return 0, Overrun
	case sr&StatusMODF != 0:
		return 0, ModeFault
	case sr&StatusCRCERR != 0:
		return 0, Crc
	case sr&StatusRXNE != 0:
		return W(b.regs.ReadData()), nil
	}
	return 0, ErrWouldBlock
}

// PollWrite is the non-blocking single word write: on a half-duplex bus it
// turns the line to output first.
func (b *Bus[W, L]) PollWrite(w W) error {
	b.bidiOutput()
	return b.CheckSend(w)
}

// PollRead is the non-blocking single word read: on a half-duplex bus it
// turns the line to input first.
func (b *Bus[W, L]) PollRead() (W, error) {
	b.bidiInput()
	return b.CheckRead()
}

// send spins on CheckSend.
func (b *Bus[W, L]) send(w W) error {
	for {
		if err := b.CheckSend(w); err != ErrWouldBlock {
			return err
		}
	}
}

// receive spins on CheckRead.
func (b *Bus[W, L]) receive() (W, error) {
	for {
		w, err := b.CheckRead()
		if err != ErrWouldBlock {
			return w, err
		}
	}
}

func (b *Bus[W, L]) bidiOutput() {
	if isHalfDuplex[L]() {
		b.regs.SetBidiOutput(true)
	}
}

func (b *Bus[W, L]) bidiInput() {
	if isHalfDuplex[L]() {
		b.regs.SetBidiOutput(false)
	}
}

func (b *Bus[W, L]) aborted(op string, index int, err error) error {
	if b.logger != nil {
		b.logger.Debug("spi: "+op+" aborted", slog.Int("word", index), slog.String("err", err.Error()))
	}
	return err
}

// Block spins on a non-blocking operation until it stops returning
// ErrWouldBlock. There is no timeout.
func Block(poll func() error) error {
	for {
		if err := poll(); err != ErrWouldBlock {
			return err
		}
	}
}

// BlockValue is Block for operations that produce a value.
func BlockValue[T any](poll func() (T, error)) (T, error) {
	for {
		v, err := poll()
		if err != ErrWouldBlock {
			return v, err
		}
	}
}
