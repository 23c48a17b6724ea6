package spi

// Polarity is the idle level of the clock line.
type Polarity uint8

const (
	IdleLow Polarity = iota
	IdleHigh
)

// Phase selects the clock transition on which data is captured.
type Phase uint8

const (
	CaptureOnFirstTransition Phase = iota
	CaptureOnSecondTransition
)

// Mode describes the clock timing of the bus.
type Mode struct {
	Polarity Polarity
	Phase    Phase
}

// Standard SPI modes, numbered CPOL<<1 | CPHA.
var (
	Mode0 = Mode{Polarity: IdleLow, Phase: CaptureOnFirstTransition}
	Mode1 = Mode{Polarity: IdleLow, Phase: CaptureOnSecondTransition}
	Mode2 = Mode{Polarity: IdleHigh, Phase: CaptureOnFirstTransition}
	Mode3 = Mode{Polarity: IdleHigh, Phase: CaptureOnSecondTransition}
)

// Number returns the conventional mode number 0-3.
func (m Mode) Number() uint8 {
	var n uint8
	if m.Polarity == IdleHigh {
		n |= 0b10
	}
	if m.Phase == CaptureOnSecondTransition {
		n |= 0b01
	}
	return n
}

// ModeFromNumber is the inverse of Mode.Number. Only the low two bits of n
// are used.
func ModeFromNumber(n uint8) Mode {
	m := Mode0
	if n&0b10 != 0 {
		m.Polarity = IdleHigh
	}
	if n&0b01 != 0 {
		m.Phase = CaptureOnSecondTransition
	}
	return m
}

func (m Mode) String() string {
	return "mode" + string(rune('0'+m.Number()))
}
