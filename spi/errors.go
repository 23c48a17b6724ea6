package spi

import "errors"

// Error is a fault latched by the peripheral. Faults are reported once and
// never retried by this package.
type Error uint8

const (
	// Overrun: a word was received before the previous one was read.
	Overrun Error = iota + 1
	// ModeFault: another master drove NSS low (multi-master conflict).
	ModeFault
	// Crc: the hardware CRC check of the last frame failed.
	Crc
)

func (e Error) Error() string {
	switch e {
	case Overrun:
		return "spi: overrun"
	case ModeFault:
		return "spi: mode fault"
	case Crc:
		return "spi: crc error"
	}
	return "spi: unknown error"
}

var (
	// ErrWouldBlock is returned by the non-blocking operations when the
	// peripheral is not ready yet. It is never returned by the blocking ones.
	ErrWouldBlock = errors.New("spi: would block")

	ErrNilInstance    = errors.New("spi: nil register block")
	ErrFrameMismatch  = errors.New("spi: word width does not match configured data frame format")
	ErrWiringMismatch = errors.New("spi: wiring does not match configured bidirectional mode")
)
