//go:build stm32f4

// Command stm32f4 is the SPI bridge firmware for STM32F4 boards. It drives
// the SPI peripherals by polling and talks to the host over the board's
// default serial port.
package main

import (
	"device/stm32"
	"machine"
	"time"

	"github.com/janschiefer/stm32f4xx-hal/core"
	"github.com/janschiefer/stm32f4xx-hal/protocol"
	"github.com/janschiefer/stm32f4xx-hal/spi"
	"github.com/janschiefer/stm32f4xx-hal/spi/hal1"
	"github.com/janschiefer/stm32f4xx-hal/spi/regs"
)

var (
	inputBuffer  *protocol.Ring
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	bridge       *core.Bridge

	msgerrors uint32
)

type busConfig struct {
	name       string
	spi        *machine.SPI
	cfg        machine.SPIConfig
	halfDuplex bool
}

var buses = []busConfig{
	{name: "spi1", spi: machine.SPI1, cfg: machine.SPIConfig{
		SCK: machine.SPI1_SCK_PIN, SDO: machine.SPI1_SDO_PIN, SDI: machine.SPI1_SDI_PIN,
		Frequency: 1_000_000,
	}},
	// MOSI only; the slave answers on the same line.
	{name: "spi2", spi: &machine.SPI{Bus: stm32.SPI2, AltFuncSelector: machine.AF5_SPI1_SPI2}, halfDuplex: true, cfg: machine.SPIConfig{
		SCK: machine.PB13, SDO: machine.PB15, SDI: machine.NoPin,
		Frequency: 1_000_000,
	}},
}

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 250000})

	bridge = core.NewBridge(core.WithMCU("stm32f4"))
	registerBuses()

	inputBuffer = protocol.NewRing(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, bridge.Handle)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	transport.SetFlushCallback(writeSerial)
	bridge.SetResponder(transport)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			readSerial()
			if inputBuffer.Len() > 0 {
				transport.Receive(inputBuffer)
			}
			writeSerial()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

func registerBuses() {
	for _, b := range buses {
		if err := b.spi.Configure(b.cfg); err != nil {
			msgerrors++
			continue
		}
		hw := b.spi.Bus
		r := regs.STM32{CR1: &hw.CR1, SR: &hw.SR, DR: &hw.DR}
		if b.halfDuplex {
			r.EnableBidi()
			bus, err := spi.New[uint8, spi.HalfDuplex](r)
			if err != nil {
				msgerrors++
				continue
			}
			bridge.RegisterSPIBus(b.name, hal1.New(bus))
			continue
		}
		bus, err := spi.New[uint8, spi.FullDuplex](r)
		if err != nil {
			msgerrors++
			continue
		}
		bridge.RegisterSPIBus(b.name, hal1.NewFullDuplex(bus))
	}
}

// readSerial moves whatever the UART has buffered into the input ring.
func readSerial() {
	var b [1]byte
	for machine.Serial.Buffered() > 0 && inputBuffer.Free() > 0 {
		c, err := machine.Serial.ReadByte()
		if err != nil {
			msgerrors++
			return
		}
		b[0] = c
		inputBuffer.Write(b[:])
	}
}

func writeSerial() {
	if out := outputBuffer.Bytes(); len(out) > 0 {
		if _, err := machine.Serial.Write(out); err != nil {
			msgerrors++
		}
		outputBuffer.Reset()
	}
}
