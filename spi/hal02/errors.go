package hal02

import (
	"errors"

	"github.com/janschiefer/stm32f4xx-hal/spi"
)

// ErrorKind is the coarse error vocabulary of this contract. It has no CRC
// kind, so CRC failures are reported as KindOther.
type ErrorKind uint8

const (
	KindOther ErrorKind = iota
	KindOverrun
	KindModeFault
)

func (k ErrorKind) String() string {
	switch k {
	case KindOverrun:
		return "overrun"
	case KindModeFault:
		return "mode fault"
	}
	return "other"
}

// KindOf classifies an error returned by a Device.
func KindOf(err error) ErrorKind {
	var e spi.Error
	if !errors.As(err, &e) {
		return KindOther
	}
	switch e {
	case spi.Overrun:
		return KindOverrun
	case spi.ModeFault:
		return KindModeFault
	}
	return KindOther
}
