package spi

// Status is a snapshot of the SPI status register. The bit layout follows the
// STM32 SPI_SR register.
type Status uint32

const (
	StatusRXNE   Status = 1 << 0
	StatusTXE    Status = 1 << 1
	StatusCRCERR Status = 1 << 4
	StatusMODF   Status = 1 << 5
	StatusOVR    Status = 1 << 6
	StatusBSY    Status = 1 << 7
)

// Instance is an initialised SPI peripheral. Clocking, pin muxing, baud rate
// and frame format are configured before the Instance reaches this package.
type Instance interface {
	// Status reads the status register.
	Status() Status
	// ReadData reads the data register. On hardware this pops the received
	// word and is part of the OVR clear sequence.
	ReadData() uint16
	// WriteData loads the data register with the next word to shift out.
	WriteData(v uint16)
	// ClearModeFault performs the write to CR1 that clears MODF.
	ClearModeFault()
	// ClearCRCError clears the CRCERR flag.
	ClearCRCError()
	// SetBidiOutput sets BIDIOE: true drives the shared data line, false
	// listens on it. Only called on half-duplex buses.
	SetBidiOutput(out bool)
}

// FrameConfig is implemented by instances that can report how they were
// configured. New uses it to reject a Bus whose type parameters disagree
// with the hardware.
type FrameConfig interface {
	DataFrame16() bool
	BidiMode() bool
}
