package hal1

import (
	"errors"

	"tinygo.org/x/drivers"
)

// ErrTxLength is returned by the drivers.SPI view when both buffers are
// given with different lengths.
var ErrTxLength = errors.New("spi: tx buffers differ in length")

// DriversSPI exposes an 8-bit full-duplex bus as a tinygo.org/x/drivers SPI
// so the device drivers of that module can run on it.
func DriversSPI(b *FullDuplexBus[uint8]) drivers.SPI {
	return driversSPI{b}
}

type driversSPI struct {
	b *FullDuplexBus[uint8]
}

// Tx sends w while receiving into r. A nil r only writes and a nil w only
// reads (sending zeros).
func (d driversSPI) Tx(w, r []byte) error {
	switch {
	case w == nil:
		return d.b.Read(r)
	case r == nil:
		return d.b.Write(w)
	case len(w) != len(r):
		return ErrTxLength
	}
	return d.b.Transfer(r, w)
}

// Transfer exchanges a single byte.
func (d driversSPI) Transfer(c byte) (byte, error) {
	buf := [1]byte{c}
	if err := d.b.TransferInPlace(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
