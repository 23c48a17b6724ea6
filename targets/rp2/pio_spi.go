//go:build rp2040 || rp2350

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"github.com/janschiefer/stm32f4xx-hal/spi/regs"
)

// buildSPIProgram assembles a CPHA=0 shifter: one bit out on the falling
// edge of SCK, one bit in on the rising edge. Autopull and autopush move
// whole words between the FIFOs and the shift registers.
func buildSPIProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 1}
	return []uint16{
		// .wrap_target
		asm.Out(rp2pio.OutDestPins, 1).Side(0).Delay(1).Encode(), // 0: out pins, 1 side 0 [1]
		asm.In(rp2pio.InSrcPins, 1).Side(1).Delay(1).Encode(),    // 1: in pins, 1 side 1 [1]
		// .wrap
	}
}

// pioPins describes the pins of one PIO bus. On a three wire bus SDI and
// SDO are the same pin.
type pioPins struct {
	sck, sdo, sdi machine.Pin
}

func (p pioPins) halfDuplex() bool { return p.sdo == p.sdi }

var spiProgramOffset = map[*rp2pio.PIO]uint8{}

// startPIO loads the SPI program into the state machine's block (once per
// block) and starts the state machine at freq Hz of SCK.
func startPIO(sm rp2pio.StateMachine, pins pioPins, bits uint8, freq uint32) (*regs.PIO, error) {
	sm.TryClaim()
	block := sm.PIO()

	offset, ok := spiProgramOffset[block]
	program := buildSPIProgram()
	if !ok {
		var err error
		offset, err = block.AddProgram(program, -1)
		if err != nil {
			return nil, err
		}
		spiProgramOffset[block] = offset
	}

	// Two instructions of two cycles each per bit.
	whole, frac, err := rp2pio.ClkDivFromFrequency(freq*4, machine.CPUFrequency())
	if err != nil {
		return nil, err
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetSidesetParams(1, false, false)
	cfg.SetSidesetPins(pins.sck)
	cfg.SetOutPins(pins.sdo, 1)
	cfg.SetInPins(pins.sdi)
	cfg.SetOutShift(false, true, uint16(bits))
	cfg.SetInShift(false, true, uint16(bits))
	cfg.SetClkDivIntFrac(whole, frac)

	pinCfg := machine.PinConfig{Mode: block.PinMode()}
	pins.sck.Configure(pinCfg)
	pins.sdo.Configure(pinCfg)
	if !pins.halfDuplex() {
		pins.sdi.Configure(pinCfg)
	}
	block.SetInputSyncBypassMasked(1<<pins.sdi, 1<<pins.sdi)

	sm.Init(offset, cfg)

	outMask := uint32(1<<pins.sck | 1<<pins.sdo)
	sm.SetPinsMasked(0, outMask)
	if pins.halfDuplex() {
		// Listen until the first write.
		sm.SetPindirsMasked(1<<pins.sck, outMask)
	} else {
		sm.SetPindirsMasked(outMask, outMask|1<<pins.sdi)
	}
	sm.SetEnabled(true)
	return regs.NewPIO(sm, 1<<pins.sdo, bits, pins.halfDuplex()), nil
}
