package protocol

// InputBuffer is received data waiting to be deframed.
type InputBuffer interface {
	Data() []byte
	Pop(n int)
}

// OutputBuffer collects encoded data. Position and Patch let a frame writer
// fill in the length byte after the payload is known.
type OutputBuffer interface {
	Output(data []byte)
	Position() int
	Patch(pos int, b byte)
	Since(pos int) []byte
}

// SliceInput is an InputBuffer over a fixed slice.
type SliceInput struct {
	data []byte
}

func NewSliceInput(data []byte) *SliceInput {
	return &SliceInput{data: data}
}

func (s *SliceInput) Data() []byte { return s.data }

func (s *SliceInput) Pop(n int) {
	s.data = s.data[min(n, len(s.data)):]
}

// ScratchOutput is an OutputBuffer backed by a fixed array. Writes past the
// end are dropped.
type ScratchOutput struct {
	buf [OutputMax]byte
	n   int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.n += copy(s.buf[s.n:], data)
}

func (s *ScratchOutput) Position() int { return s.n }

func (s *ScratchOutput) Patch(pos int, b byte) {
	if pos < s.n {
		s.buf[pos] = b
	}
}

func (s *ScratchOutput) Since(pos int) []byte {
	if pos > s.n {
		return nil
	}
	return s.buf[pos:s.n]
}

// Bytes returns everything written since the last Reset.
func (s *ScratchOutput) Bytes() []byte { return s.buf[:s.n] }

func (s *ScratchOutput) Reset() { s.n = 0 }

// Ring is a fixed-capacity byte FIFO used between the serial driver and the
// deframer. One slot stays empty to tell full from empty.
type Ring struct {
	buf  []byte
	r, w int
	flat []byte
}

// NewRing returns a Ring that holds up to size-1 bytes.
func NewRing(size int) *Ring {
	return &Ring{buf: make([]byte, size)}
}

// Write stores as much of p as fits and reports how much that was.
func (f *Ring) Write(p []byte) int {
	n := 0
	for _, b := range p {
		next := (f.w + 1) % len(f.buf)
		if next == f.r {
			break
		}
		f.buf[f.w] = b
		f.w = next
		n++
	}
	return n
}

// Len is the number of buffered bytes.
func (f *Ring) Len() int {
	if f.w >= f.r {
		return f.w - f.r
	}
	return len(f.buf) - f.r + f.w
}

// Free is the number of bytes Write can still accept.
func (f *Ring) Free() int { return len(f.buf) - 1 - f.Len() }

// Data returns the buffered bytes as one slice. A wrapped buffer is
// flattened into a reused scratch slice, valid until the next call.
func (f *Ring) Data() []byte {
	if f.r <= f.w {
		return f.buf[f.r:f.w]
	}
	f.flat = append(append(f.flat[:0], f.buf[f.r:]...), f.buf[:f.w]...)
	return f.flat
}

// Pop discards n bytes from the front.
func (f *Ring) Pop(n int) {
	n = min(n, f.Len())
	f.r = (f.r + n) % len(f.buf)
}

func (f *Ring) Reset() { f.r, f.w = 0, 0 }
