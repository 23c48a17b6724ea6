// Package regs adapts concrete SPI hardware to spi.Instance: the STM32 SPI
// register block and an RP2 PIO state machine running an SPI program. Both
// take their registers through small interfaces so the adapters build and
// test on the host.
package regs

import "github.com/janschiefer/stm32f4xx-hal/spi"

// Register is a 32-bit memory-mapped register. TinyGo's
// *volatile.Register32 implements it.
type Register interface {
	Get() uint32
	Set(value uint32)
	SetBits(value uint32)
	ClearBits(value uint32)
	HasBits(value uint32) bool
}

// CR1 bits.
const (
	CR1SPE      = 1 << 6
	CR1DFF      = 1 << 11
	CR1BIDIOE   = 1 << 14
	CR1BIDIMODE = 1 << 15
)

// STM32 is the register block of one STM32 SPI peripheral, configured by
// machine.SPI before it is wrapped.
type STM32 struct {
	CR1, SR, DR Register
}

func (r STM32) Status() spi.Status { return spi.Status(r.SR.Get()) }

func (r STM32) ReadData() uint16 { return uint16(r.DR.Get()) }

func (r STM32) WriteData(v uint16) { r.DR.Set(uint32(v)) }

// ClearModeFault completes the MODF clear sequence with a CR1 write. The SR
// read that starts it already happened in the caller. SPE and MSTR stay as
// the fault left them; re-enabling the master is up to the caller.
func (r STM32) ClearModeFault() { r.CR1.Set(r.CR1.Get()) }

func (r STM32) ClearCRCError() { r.SR.ClearBits(uint32(spi.StatusCRCERR)) }

func (r STM32) SetBidiOutput(out bool) {
	if out {
		r.CR1.SetBits(CR1BIDIOE)
	} else {
		r.CR1.ClearBits(CR1BIDIOE)
	}
}

func (r STM32) DataFrame16() bool { return r.CR1.HasBits(CR1DFF) }

func (r STM32) BidiMode() bool { return r.CR1.HasBits(CR1BIDIMODE) }

// EnableBidi switches a configured peripheral to the single data line,
// driving it. CR1 may only change while SPE is clear, and a master in
// receive mode starts clocking as soon as SPE is set.
func (r STM32) EnableBidi() {
	r.CR1.ClearBits(CR1SPE)
	r.CR1.SetBits(CR1BIDIMODE | CR1BIDIOE)
	r.CR1.SetBits(CR1SPE)
}

var (
	_ spi.Instance    = STM32{}
	_ spi.FrameConfig = STM32{}
)
