package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInput(t *testing.T) {
	in := NewSliceInput([]byte{1, 2, 3})
	in.Pop(2)
	if !bytes.Equal(in.Data(), []byte{3}) {
		t.Errorf("after Pop(2): % x", in.Data())
	}
	in.Pop(10)
	if len(in.Data()) != 0 {
		t.Errorf("Pop past the end left % x", in.Data())
	}
}

func TestScratchOutputPatch(t *testing.T) {
	out := NewScratchOutput()
	out.Output([]byte{0, 1, 2})
	start := out.Position()
	out.Output([]byte{7, 8})
	out.Patch(0, 9)
	out.Patch(100, 9)

	if !bytes.Equal(out.Since(start), []byte{7, 8}) {
		t.Errorf("Since = % x", out.Since(start))
	}
	if !bytes.Equal(out.Bytes(), []byte{9, 1, 2, 7, 8}) {
		t.Errorf("Bytes = % x", out.Bytes())
	}
	if out.Since(10) != nil {
		t.Error("Since past the end should be nil")
	}
	out.Reset()
	if out.Position() != 0 {
		t.Errorf("Position after Reset = %d", out.Position())
	}
}

func TestScratchOutputDropsOverflow(t *testing.T) {
	out := NewScratchOutput()
	out.Output(make([]byte, OutputMax-1))
	out.Output([]byte{1, 2, 3})
	if out.Position() != OutputMax {
		t.Errorf("Position = %d, want %d", out.Position(), OutputMax)
	}
}

func TestRing(t *testing.T) {
	r := NewRing(8)
	if r.Free() != 7 {
		t.Fatalf("Free = %d, want 7", r.Free())
	}
	if n := r.Write([]byte{1, 2, 3, 4, 5, 6}); n != 6 {
		t.Fatalf("Write = %d", n)
	}
	r.Pop(5)
	// Wraps around the end of the backing array.
	if n := r.Write([]byte{7, 8, 9, 10, 11, 12, 13}); n != 6 {
		t.Errorf("Write into a wrapped ring = %d, want 6", n)
	}
	if r.Len() != 7 || r.Free() != 0 {
		t.Errorf("Len, Free = %d, %d", r.Len(), r.Free())
	}
	if !bytes.Equal(r.Data(), []byte{6, 7, 8, 9, 10, 11, 12}) {
		t.Errorf("Data = % x", r.Data())
	}
	r.Pop(3)
	if !bytes.Equal(r.Data(), []byte{9, 10, 11, 12}) {
		t.Errorf("Data after Pop = % x", r.Data())
	}
	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len after Reset = %d", r.Len())
	}
}
