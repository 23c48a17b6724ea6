package spi

// Word is the frame type of a bus. The width must match the data frame
// format the peripheral was configured with.
type Word interface {
	~uint8 | ~uint16
}

// Wiring selects full-duplex or bidirectional (half-duplex) operation.
type Wiring interface {
	FullDuplex | HalfDuplex
	halfDuplex() bool
}

// FullDuplex is the two data line (MOSI + MISO) wiring.
type FullDuplex struct{}

// HalfDuplex is the single bidirectional data line wiring (BIDIMODE set).
type HalfDuplex struct{}

func (FullDuplex) halfDuplex() bool { return false }
func (HalfDuplex) halfDuplex() bool { return true }

func isHalfDuplex[L Wiring]() bool {
	var l L
	return l.halfDuplex()
}

func is16Bit[W Word]() bool {
	return uint16(^W(0)) > 0xff
}
