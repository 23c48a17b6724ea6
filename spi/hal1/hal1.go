// Package hal1 exposes spi buses through the newer, bus-oriented HAL
// contract: blocking Read, Write, Transfer, TransferInPlace and Flush over
// word buffers, with a separate non-blocking Poller.
//
// Errors leaving this package implement Error so callers can classify them
// by ErrorKind; they still unwrap to the spi.Error that caused them.
package hal1

import "github.com/janschiefer/stm32f4xx-hal/spi"

// ErrorType is implemented by anything that can report its error kind.
type ErrorType interface {
	Kind() ErrorKind
}

// BusFlush waits until all pending writes have left the peripheral.
type BusFlush interface {
	Flush() error
}

// BusRead reads words, clocking out filler if the wiring requires it.
type BusRead[W spi.Word] interface {
	BusFlush
	Read(words []W) error
}

// BusWrite writes words, discarding anything received.
type BusWrite[W spi.Word] interface {
	BusFlush
	Write(words []W) error
}

// SpiBus is the full read/write contract of a full-duplex bus.
type SpiBus[W spi.Word] interface {
	BusRead[W]
	BusWrite[W]
	Transfer(read, write []W) error
	TransferInPlace(words []W) error
}

// FullDuplex is the non-blocking single word contract.
type FullDuplex[W spi.Word] interface {
	Read() (W, error)
	Write(w W) error
}

// Bus adapts a bus of either wiring.
type Bus[W spi.Word, L spi.Wiring] struct {
	bus *spi.Bus[W, L]
}

// New wraps bus.
func New[W spi.Word, L spi.Wiring](bus *spi.Bus[W, L]) *Bus[W, L] {
	return &Bus[W, L]{bus: bus}
}

// Read implements BusRead.
func (b *Bus[W, L]) Read(words []W) error { return wrap(b.bus.Read(words)) }

// Write implements BusWrite.
func (b *Bus[W, L]) Write(words []W) error { return wrap(b.bus.Write(words)) }

// Flush implements BusFlush. Every blocking operation returns only after its
// last word has been clocked, so there is never anything to flush.
func (b *Bus[W, L]) Flush() error { return nil }

// Poll returns the non-blocking view of the bus.
func (b *Bus[W, L]) Poll() *Poller[W, L] { return &Poller[W, L]{bus: b.bus} }

// Poller is the non-blocking view of a Bus. Its methods return
// spi.ErrWouldBlock unwrapped while the peripheral is busy.
type Poller[W spi.Word, L spi.Wiring] struct {
	bus *spi.Bus[W, L]
}

// Read implements FullDuplex.
func (p *Poller[W, L]) Read() (W, error) {
	w, err := p.bus.PollRead()
	return w, wrap(err)
}

// Write implements FullDuplex.
func (p *Poller[W, L]) Write(w W) error { return wrap(p.bus.PollWrite(w)) }

// FullDuplexBus adds the transfers that need both data lines.
type FullDuplexBus[W spi.Word] struct {
	*Bus[W, spi.FullDuplex]
}

// NewFullDuplex wraps a full-duplex bus.
func NewFullDuplex[W spi.Word](bus *spi.Bus[W, spi.FullDuplex]) *FullDuplexBus[W] {
	return &FullDuplexBus[W]{Bus: New(bus)}
}

// Transfer implements SpiBus. read and write must have the same length.
func (b *FullDuplexBus[W]) Transfer(read, write []W) error {
	return wrap(spi.Transfer(b.bus, read, write))
}

// TransferInPlace implements SpiBus.
func (b *FullDuplexBus[W]) TransferInPlace(words []W) error {
	return wrap(spi.TransferInPlace(b.bus, words))
}

var (
	_ BusRead[uint8]     = (*Bus[uint8, spi.HalfDuplex])(nil)
	_ BusWrite[uint16]   = (*Bus[uint16, spi.HalfDuplex])(nil)
	_ SpiBus[uint8]      = (*FullDuplexBus[uint8])(nil)
	_ SpiBus[uint16]     = (*FullDuplexBus[uint16])(nil)
	_ FullDuplex[uint16] = (*Poller[uint16, spi.FullDuplex])(nil)
)
