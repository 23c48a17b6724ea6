package hal1

import "github.com/janschiefer/stm32f4xx-hal/spi"

// ErrorKind is the error vocabulary of this contract.
type ErrorKind uint8

const (
	KindOther ErrorKind = iota
	KindOverrun
	KindModeFault
	KindFrameFormat
	KindChipSelectFault
)

func (k ErrorKind) String() string {
	switch k {
	case KindOverrun:
		return "overrun"
	case KindModeFault:
		return "mode fault"
	case KindFrameFormat:
		return "frame format"
	case KindChipSelectFault:
		return "chip select fault"
	}
	return "other"
}

// Error is a bus fault annotated with its kind.
type Error struct {
	Err spi.Error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Kind maps the fault onto ErrorKind. There is no CRC kind; CRC failures are
// KindOther.
func (e *Error) Kind() ErrorKind {
	switch e.Err {
	case spi.Overrun:
		return KindOverrun
	case spi.ModeFault:
		return KindModeFault
	}
	return KindOther
}

// wrap annotates bus faults. Other errors, including spi.ErrWouldBlock, pass
// through untouched.
func wrap(err error) error {
	if e, ok := err.(spi.Error); ok {
		return &Error{Err: e}
	}
	return err
}
