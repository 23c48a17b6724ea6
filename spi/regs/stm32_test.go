package regs_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/janschiefer/stm32f4xx-hal/spi"
	"github.com/janschiefer/stm32f4xx-hal/spi/regs"
)

const cr1MSTR = 1 << 2

// register is an in-memory register that logs every write.
type register struct {
	v      uint32
	writes []uint32
}

func (r *register) Get() uint32           { return r.v }
func (r *register) Set(v uint32)          { r.v = v; r.writes = append(r.writes, v) }
func (r *register) SetBits(v uint32)      { r.Set(r.v | v) }
func (r *register) ClearBits(v uint32)    { r.Set(r.v &^ v) }
func (r *register) HasBits(v uint32) bool { return r.v&v != 0 }

func TestSTM32ModeFaultOnlyRewritesCR1(t *testing.T) {
	// MODF has already dropped SPE and MSTR.
	cr1 := &register{v: regs.CR1DFF}
	sr := &register{v: uint32(spi.StatusMODF | spi.StatusTXE)}
	dr := &register{}
	b, err := spi.New[uint16, spi.FullDuplex](regs.STM32{CR1: cr1, SR: sr, DR: dr})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := b.CheckSend(0x1234); !errors.Is(err, spi.ModeFault) {
		t.Fatalf("CheckSend: expected ModeFault, got %v", err)
	}
	if diff := cmp.Diff([]uint32{regs.CR1DFF}, cr1.writes); diff != "" {
		t.Errorf("CR1 writes mismatch (-want +got):\n%s", diff)
	}
	if cr1.v&(regs.CR1SPE|cr1MSTR) != 0 {
		t.Errorf("CR1 = %#x: SPE or MSTR turned back on", cr1.v)
	}
	if len(dr.writes) != 0 {
		t.Errorf("data register written after a mode fault: %v", dr.writes)
	}
}

func TestSTM32ClearCRCError(t *testing.T) {
	sr := &register{v: uint32(spi.StatusCRCERR | spi.StatusTXE)}
	r := regs.STM32{CR1: &register{}, SR: sr, DR: &register{}}
	r.ClearCRCError()
	if spi.Status(sr.v) != spi.StatusTXE {
		t.Errorf("SR = %#x, want only TXE left", sr.v)
	}
}

func TestSTM32EnableBidi(t *testing.T) {
	cr1 := &register{v: regs.CR1SPE | cr1MSTR}
	r := regs.STM32{CR1: cr1, SR: &register{}, DR: &register{}}
	if r.BidiMode() {
		t.Fatal("BidiMode() = true before EnableBidi")
	}

	r.EnableBidi()
	bidi := uint32(cr1MSTR | regs.CR1BIDIMODE | regs.CR1BIDIOE)
	want := []uint32{cr1MSTR, bidi, bidi | regs.CR1SPE}
	if diff := cmp.Diff(want, cr1.writes); diff != "" {
		t.Errorf("CR1 writes mismatch (-want +got):\n%s", diff)
	}
	if !r.BidiMode() || r.DataFrame16() {
		t.Errorf("BidiMode()=%v DataFrame16()=%v, want true false", r.BidiMode(), r.DataFrame16())
	}

	r.SetBidiOutput(false)
	if cr1.v&regs.CR1BIDIOE != 0 {
		t.Error("BIDIOE still set after SetBidiOutput(false)")
	}
	r.SetBidiOutput(true)
	if cr1.v&regs.CR1BIDIOE == 0 {
		t.Error("BIDIOE clear after SetBidiOutput(true)")
	}
}
