package hal02

import "github.com/janschiefer/stm32f4xx-hal/spi"

// Polarity is the clock idle level.
type Polarity uint8

const (
	IdleLow Polarity = iota
	IdleHigh
)

// Phase is the data capture edge.
type Phase uint8

const (
	CaptureOnFirstTransition Phase = iota
	CaptureOnSecondTransition
)

// Mode is the clock configuration in this contract's vocabulary.
type Mode struct {
	Polarity Polarity
	Phase    Phase
}

var (
	Mode0 = Mode{Polarity: IdleLow, Phase: CaptureOnFirstTransition}
	Mode1 = Mode{Polarity: IdleLow, Phase: CaptureOnSecondTransition}
	Mode2 = Mode{Polarity: IdleHigh, Phase: CaptureOnFirstTransition}
	Mode3 = Mode{Polarity: IdleHigh, Phase: CaptureOnSecondTransition}
)

// Spi converts to the driver's mode.
func (m Mode) Spi() spi.Mode {
	out := spi.Mode{Polarity: spi.IdleLow, Phase: spi.CaptureOnFirstTransition}
	if m.Polarity == IdleHigh {
		out.Polarity = spi.IdleHigh
	}
	if m.Phase == CaptureOnSecondTransition {
		out.Phase = spi.CaptureOnSecondTransition
	}
	return out
}

// FromSpi converts from the driver's mode.
func FromSpi(m spi.Mode) Mode {
	out := Mode0
	if m.Polarity == spi.IdleHigh {
		out.Polarity = IdleHigh
	}
	if m.Phase == spi.CaptureOnSecondTransition {
		out.Phase = CaptureOnSecondTransition
	}
	return out
}
