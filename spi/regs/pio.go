package regs

import "github.com/janschiefer/stm32f4xx-hal/spi"

// StateMachine is the part of an RP2 PIO state machine the adapter drives.
// rp2pio.StateMachine from github.com/tinygo-org/pio implements it.
type StateMachine interface {
	IsTxFIFOFull() bool
	IsRxFIFOEmpty() bool
	TxPut(data uint32)
	RxGet() uint32
	SetPindirsMasked(dirMask, pinMask uint32)
}

// PIO presents a state machine running a one-bit-out, one-bit-in SPI
// program with autopull and autopush as an spi.Instance. TXE follows TX FIFO
// space and RXNE the RX FIFO level. Faults never latch.
//
// The program only clocks while it has TX data, and every clocked word is
// pushed to RX. On a three wire bus the adapter hides that: while driving,
// the words pushed back are discarded; while listening, a zero word is queued
// whenever RX is empty so the bus keeps clocking in one word at a time.
type PIO struct {
	sm       StateMachine
	dataMask uint32
	bits     uint8
	half     bool
	out      bool

	echoes   int // words sent while driving whose RX copy is still due
	clocking int // words queued while listening and not yet read
}

// NewPIO wraps sm. dataMask selects the data pin; on a three wire bus it is
// the only pin whose direction changes. bits is the autopull and autopush
// threshold. A three wire bus starts out listening.
func NewPIO(sm StateMachine, dataMask uint32, bits uint8, halfDuplex bool) *PIO {
	return &PIO{sm: sm, dataMask: dataMask, bits: bits, half: halfDuplex, out: !halfDuplex}
}

func (p *PIO) Status() spi.Status {
	var sr spi.Status
	if !p.sm.IsTxFIFOFull() {
		sr |= spi.StatusTXE
	}
	if !p.half {
		if !p.sm.IsRxFIFOEmpty() {
			sr |= spi.StatusRXNE
		}
		return sr
	}
	if p.out {
		p.drainEchoes(false)
		return sr
	}
	if !p.sm.IsRxFIFOEmpty() {
		return sr | spi.StatusRXNE
	}
	if p.clocking == 0 {
		p.sm.TxPut(0)
		p.clocking++
	}
	return sr
}

func (p *PIO) ReadData() uint16 {
	v := uint16(p.sm.RxGet())
	if p.half && !p.out && p.clocking > 0 {
		p.clocking--
	}
	return v
}

// WriteData left-aligns v since the output shift register shifts MSB first.
func (p *PIO) WriteData(v uint16) {
	p.sm.TxPut(uint32(v) << (32 - p.bits))
	if p.half && p.out {
		p.echoes++
	}
}

func (p *PIO) ClearModeFault() {}

func (p *PIO) ClearCRCError() {}

// SetBidiOutput turns the data pin around. Words still shifting finish in
// the old direction first and their received copies are dropped.
func (p *PIO) SetBidiOutput(out bool) {
	if !p.half || out == p.out {
		return
	}
	if p.out {
		p.drainEchoes(true)
	} else {
		for p.clocking > 0 {
			if !p.sm.IsRxFIFOEmpty() {
				p.sm.RxGet()
				p.clocking--
			}
		}
	}
	var dir uint32
	if out {
		dir = p.dataMask
	}
	p.sm.SetPindirsMasked(dir, p.dataMask)
	p.out = out
}

func (p *PIO) drainEchoes(wait bool) {
	for p.echoes > 0 {
		if p.sm.IsRxFIFOEmpty() {
			if !wait {
				return
			}
			continue
		}
		p.sm.RxGet()
		p.echoes--
	}
}

func (p *PIO) DataFrame16() bool { return p.bits == 16 }

func (p *PIO) BidiMode() bool { return p.half }

var (
	_ spi.Instance    = (*PIO)(nil)
	_ spi.FrameConfig = (*PIO)(nil)
)
