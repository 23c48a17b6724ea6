package protocol

import "errors"

var (
	ErrInvalidVLQ = errors.New("protocol: invalid VLQ encoding")
	ErrShortData  = errors.New("protocol: data ends inside a value")
)

// PutInt writes v as a VLQ: big-endian groups of seven bits, continuation
// flagged by the high bit. The first group is sign-extended from bit 6, so
// values in [-32, 96) fit one byte.
func PutInt(out OutputBuffer, v int32) {
	var buf [5]byte
	n := 0
	for shift := 28; shift > 0; shift -= 7 {
		lo, hi := int32(-1)<<(shift-2), int32(3)<<(shift-2)
		if n > 0 || v < lo || v >= hi {
			buf[n] = byte(v>>shift)&0x7F | 0x80
			n++
		}
	}
	buf[n] = byte(v) & 0x7F
	out.Output(buf[:n+1])
}

// PutUint writes v as a VLQ. Values of 2^31 and above share the encoding of
// their int32 reinterpretation.
func PutUint(out OutputBuffer, v uint32) {
	PutInt(out, int32(v))
}

// PutBytes writes a length-prefixed byte string.
func PutBytes(out OutputBuffer, b []byte) {
	PutUint(out, uint32(len(b)))
	out.Output(b)
}

// PutString writes a length-prefixed string.
func PutString(out OutputBuffer, s string) {
	PutBytes(out, []byte(s))
}

// Int decodes one VLQ from the front of *data and advances past it.
func Int(data *[]byte) (int32, error) {
	b := *data
	if len(b) == 0 {
		return 0, ErrShortData
	}
	c := uint32(b[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for c&0x80 != 0 {
		if i == len(b) {
			return 0, ErrShortData
		}
		if i == 5 {
			return 0, ErrInvalidVLQ
		}
		c = uint32(b[i])
		v = v<<7 | c&0x7F
		i++
	}
	*data = b[i:]
	return int32(v), nil
}

// Uint decodes one VLQ as unsigned.
func Uint(data *[]byte) (uint32, error) {
	v, err := Int(data)
	return uint32(v), err
}

// Bytes decodes a length-prefixed byte string. The result aliases *data.
func Bytes(data *[]byte) ([]byte, error) {
	n, err := Uint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrShortData
	}
	b := (*data)[:n:n]
	*data = (*data)[n:]
	return b, nil
}

// String decodes a length-prefixed string.
func String(data *[]byte) (string, error) {
	b, err := Bytes(data)
	return string(b), err
}

// Args decodes a command's arguments in order. The first failure sticks:
// later calls return zero values and Err reports it.
type Args struct {
	data *[]byte
	err  error
}

// NewArgs decodes from *data, advancing it as arguments are consumed.
func NewArgs(data *[]byte) *Args {
	return &Args{data: data}
}

func (a *Args) Uint() uint32 {
	if a.err != nil {
		return 0
	}
	v, err := Uint(a.data)
	a.err = err
	return v
}

func (a *Args) Int() int32 {
	if a.err != nil {
		return 0
	}
	v, err := Int(a.data)
	a.err = err
	return v
}

func (a *Args) Bytes() []byte {
	if a.err != nil {
		return nil
	}
	v, err := Bytes(a.data)
	a.err = err
	return v
}

func (a *Args) Err() error { return a.err }
