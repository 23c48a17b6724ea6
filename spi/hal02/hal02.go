// Package hal02 exposes spi buses through the older, word-oriented HAL
// contract: non-blocking Read/Send of single words plus blocking Write,
// WriteIter, Transfer and Exec.
package hal02

import (
	"iter"

	"github.com/janschiefer/stm32f4xx-hal/spi"
)

// FullDuplex is the non-blocking single word contract. Both methods return
// spi.ErrWouldBlock while the peripheral is busy.
type FullDuplex[W spi.Word] interface {
	Read() (W, error)
	Send(w W) error
}

// Write is the blocking buffer write contract.
type Write[W spi.Word] interface {
	Write(words []W) error
}

// WriteIter is the blocking write contract for lazily produced words.
type WriteIter[W spi.Word] interface {
	WriteIter(words iter.Seq[W]) error
}

// Transfer exchanges words in place and returns the received buffer.
type Transfer[W spi.Word] interface {
	Transfer(words []W) ([]W, error)
}

// Transactional runs a batch of operations in order.
type Transactional[W spi.Word] interface {
	Exec(ops []Operation[W]) error
}

// Device adapts a bus of either wiring.
type Device[W spi.Word, L spi.Wiring] struct {
	bus *spi.Bus[W, L]
}

// New wraps bus.
func New[W spi.Word, L spi.Wiring](bus *spi.Bus[W, L]) *Device[W, L] {
	return &Device[W, L]{bus: bus}
}

// Read implements FullDuplex.
func (d *Device[W, L]) Read() (W, error) { return d.bus.PollRead() }

// Send implements FullDuplex.
func (d *Device[W, L]) Send(w W) error { return d.bus.PollWrite(w) }

// Write implements Write.
func (d *Device[W, L]) Write(words []W) error { return d.bus.Write(words) }

// WriteIter implements WriteIter.
func (d *Device[W, L]) WriteIter(words iter.Seq[W]) error { return d.bus.WriteSeq(words) }

// FullDuplexDevice adds the operations that need both data lines.
type FullDuplexDevice[W spi.Word] struct {
	*Device[W, spi.FullDuplex]
}

// NewFullDuplex wraps a full-duplex bus.
func NewFullDuplex[W spi.Word](bus *spi.Bus[W, spi.FullDuplex]) *FullDuplexDevice[W] {
	return &FullDuplexDevice[W]{Device: New(bus)}
}

// Transfer implements Transfer.
func (d *FullDuplexDevice[W]) Transfer(words []W) ([]W, error) {
	if err := spi.TransferInPlace(d.bus, words); err != nil {
		return nil, err
	}
	return words, nil
}

// Exec implements Transactional.
func (d *FullDuplexDevice[W]) Exec(ops []Operation[W]) error {
	_, err := spi.Exec(d.bus, ops)
	return err
}

// Operation is a step of an Exec batch.
type Operation[W spi.Word] = spi.Operation[W]

// WriteOp sends words.
func WriteOp[W spi.Word](words []W) Operation[W] { return spi.WriteOp(words) }

// TransferOp exchanges words in place.
func TransferOp[W spi.Word](words []W) Operation[W] { return spi.TransferOp(words) }

var (
	_ FullDuplex[uint8]     = (*Device[uint8, spi.HalfDuplex])(nil)
	_ WriteIter[uint16]     = (*Device[uint16, spi.FullDuplex])(nil)
	_ Transfer[uint8]       = (*FullDuplexDevice[uint8])(nil)
	_ Transactional[uint16] = (*FullDuplexDevice[uint16])(nil)
)
