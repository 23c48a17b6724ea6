// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. Any zlib reader accepts them, and the writer needs no
// compression tables, which keeps it small enough for a microcontroller.
package tinycompress

import (
	"hash"
	"hash/adler32"
	"io"
)

// BlockMax is the most data one stored block can carry.
const BlockMax = 0xFFFF

var header = [2]byte{0x78, 0x01}

// Writer is an io.WriteCloser that frames everything written to it as a
// zlib stream. Output is produced in BlockMax sized blocks; Close flushes the
// final block and the checksum.
type Writer struct {
	w       io.Writer
	buf     []byte
	sum     hash.Hash32
	started bool
	err     error
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, sum: adler32.New()}
}

func (z *Writer) Write(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	n := len(p)
	z.sum.Write(p)
	for len(p) > 0 {
		k := min(len(p), BlockMax-len(z.buf))
		z.buf = append(z.buf, p[:k]...)
		p = p[k:]
		if len(z.buf) == BlockMax {
			if err := z.block(false); err != nil {
				return n - len(p), err
			}
		}
	}
	return n, nil
}

// Close writes the final block and the Adler-32 trailer. It does not close
// the underlying writer.
func (z *Writer) Close() error {
	if z.err != nil {
		return z.err
	}
	if err := z.block(true); err != nil {
		return err
	}
	s := z.sum.Sum32()
	_, z.err = z.w.Write([]byte{byte(s >> 24), byte(s >> 16), byte(s >> 8), byte(s)})
	return z.err
}

func (z *Writer) block(final bool) error {
	if !z.started {
		if _, z.err = z.w.Write(header[:]); z.err != nil {
			return z.err
		}
		z.started = true
	}
	n := uint16(len(z.buf))
	var bfinal byte
	if final {
		bfinal = 1
	}
	hdr := [5]byte{bfinal, byte(n), byte(n >> 8), byte(^n), byte(^n >> 8)}
	if _, z.err = z.w.Write(hdr[:]); z.err != nil {
		return z.err
	}
	if _, z.err = z.w.Write(z.buf); z.err != nil {
		return z.err
	}
	z.buf = z.buf[:0]
	return nil
}
