package regs_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/janschiefer/stm32f4xx-hal/spi"
	"github.com/janschiefer/stm32f4xx-hal/spi/regs"
)

const (
	fifoDepth = 4
	dataPin   = 1 << 15
)

// stateMachine simulates the SPI program: every word in TX is clocked out
// as soon as RX has room for the word clocked in. On a three wire bus with
// the data pin driving, the word read back is the one sent; otherwise it
// comes from device.
type stateMachine struct {
	bits    uint8
	duplex  bool
	pindirs uint32
	tx, rx  []uint32

	device []uint32 // words the device sends
	driven []uint32 // words shifted out with the data pin driving
}

func (s *stateMachine) step() {
	for len(s.tx) > 0 && len(s.rx) < fifoDepth {
		w := s.tx[0] >> (32 - s.bits)
		s.tx = s.tx[1:]
		driving := s.pindirs&dataPin != 0
		if driving {
			s.driven = append(s.driven, w)
		}
		in := w
		if s.duplex || !driving {
			in = 0
			if len(s.device) > 0 {
				in = s.device[0]
				s.device = s.device[1:]
			}
		}
		s.rx = append(s.rx, in)
	}
}

func (s *stateMachine) IsTxFIFOFull() bool {
	s.step()
	return len(s.tx) >= fifoDepth
}

func (s *stateMachine) IsRxFIFOEmpty() bool {
	s.step()
	return len(s.rx) == 0
}

func (s *stateMachine) TxPut(data uint32) {
	if len(s.tx) >= fifoDepth {
		panic("TX FIFO overflow")
	}
	s.tx = append(s.tx, data)
}

func (s *stateMachine) RxGet() uint32 {
	s.step()
	if len(s.rx) == 0 {
		panic("RX FIFO underflow")
	}
	v := s.rx[0]
	s.rx = s.rx[1:]
	return v
}

func (s *stateMachine) SetPindirsMasked(dirMask, pinMask uint32) {
	s.pindirs = s.pindirs&^pinMask | dirMask&pinMask
}

func newThreeWire(t *testing.T) (*spi.Bus[uint8, spi.HalfDuplex], *stateMachine) {
	t.Helper()
	sm := &stateMachine{bits: 8}
	b, err := spi.New[uint8, spi.HalfDuplex](regs.NewPIO(sm, dataPin, 8, true))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return b, sm
}

func TestPIOThreeWireReadClocksWithoutData(t *testing.T) {
	b, sm := newThreeWire(t)
	sm.device = []uint32{0xa1, 0xa2, 0xa3, 0xa4, 0xa5}

	got := make([]uint8, 5)
	if err := b.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([]uint8{0xa1, 0xa2, 0xa3, 0xa4, 0xa5}, got); diff != "" {
		t.Errorf("read mismatch (-want +got):\n%s", diff)
	}
	if len(sm.driven) != 0 {
		t.Errorf("data pin driven during a read: %v", sm.driven)
	}
}

func TestPIOThreeWireWriteDrainsEchoes(t *testing.T) {
	b, sm := newThreeWire(t)

	words := make([]uint8, 20)
	want := make([]uint32, len(words))
	for i := range words {
		words[i] = uint8(0x40 + i)
		want[i] = uint32(words[i])
	}
	if err := b.Write(words); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// The turnaround waits for the last words and drops their echoes.
	sm.device = []uint32{0x5a, 0xa5}
	got := make([]uint8, 2)
	if err := b.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(want, sm.driven); diff != "" {
		t.Errorf("driven words mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint8{0x5a, 0xa5}, got); diff != "" {
		t.Errorf("read after write mismatch (-want +got):\n%s", diff)
	}
}

func TestPIOFullDuplexTransfer(t *testing.T) {
	sm := &stateMachine{bits: 8, duplex: true, pindirs: dataPin, device: []uint32{0x10, 0x20, 0x30}}
	p := regs.NewPIO(sm, dataPin, 8, false)
	b, err := spi.New[uint8, spi.FullDuplex](p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.DataFrame16() || p.BidiMode() {
		t.Errorf("DataFrame16()=%v BidiMode()=%v, want false false", p.DataFrame16(), p.BidiMode())
	}

	read := make([]uint8, 3)
	if err := spi.Transfer(b, read, []uint8{1, 2, 3}); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if diff := cmp.Diff([]uint8{0x10, 0x20, 0x30}, read); diff != "" {
		t.Errorf("received mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{1, 2, 3}, sm.driven); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}
