package hal1

import "github.com/janschiefer/stm32f4xx-hal/spi"

// Mode is the conventional SPI mode number: CPOL in bit 1, CPHA in bit 0.
type Mode uint8

const (
	Mode0 Mode = 0b00
	Mode1 Mode = 0b01
	Mode2 Mode = 0b10
	Mode3 Mode = 0b11
)

// Spi converts to the driver's mode. Bits above CPOL are ignored.
func (m Mode) Spi() spi.Mode {
	return spi.ModeFromNumber(uint8(m))
}

// FromSpi converts from the driver's mode.
func FromSpi(m spi.Mode) Mode {
	return Mode(m.Number())
}
