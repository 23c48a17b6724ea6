//go:build rp2040 || rp2350

// Command rp2 is the SPI bridge firmware for RP2040 and RP2350 boards. It
// exposes PIO driven SPI buses to the host over USB CDC.
package main

import (
	"machine"
	"time"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"github.com/janschiefer/stm32f4xx-hal/core"
	"github.com/janschiefer/stm32f4xx-hal/protocol"
	"github.com/janschiefer/stm32f4xx-hal/spi"
	"github.com/janschiefer/stm32f4xx-hal/spi/hal1"
)

const busFrequency = 1_000_000

var (
	inputBuffer  *protocol.Ring
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	bridge       *core.Bridge

	msgerrors                uint32
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

type pioBus struct {
	name string
	sm   rp2pio.StateMachine
	pins pioPins
}

var pioBuses = []pioBus{
	{name: "pio0a", sm: rp2pio.PIO0.StateMachine(0), pins: pioPins{sck: machine.GPIO2, sdo: machine.GPIO3, sdi: machine.GPIO4}},
	{name: "pio0b", sm: rp2pio.PIO0.StateMachine(1), pins: pioPins{sck: machine.GPIO10, sdo: machine.GPIO11, sdi: machine.GPIO12}},
	// Three wire bus sharing GPIO15 for both directions.
	{name: "pio1a", sm: rp2pio.PIO1.StateMachine(0), pins: pioPins{sck: machine.GPIO14, sdo: machine.GPIO15, sdi: machine.GPIO15}},
}

func main() {
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}
	InitUSB()

	bridge = core.NewBridge(core.WithMCU(mcuName))
	registerBuses()

	inputBuffer = protocol.NewRing(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, bridge.Handle)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	// Acks must reach the host before any response.
	transport.SetFlushCallback(writeUSB)
	bridge.SetResponder(transport)

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			if inputBuffer.Len() > 0 {
				transport.Receive(inputBuffer)
			}
			writeUSB()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// registerBuses starts a state machine per bus and hands the buses to the
// bridge. A bus that fails to start is skipped.
func registerBuses() {
	for _, b := range pioBuses {
		r, err := startPIO(b.sm, b.pins, 8, busFrequency)
		if err != nil {
			msgerrors++
			continue
		}
		if b.pins.halfDuplex() {
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

// usbReaderLoop moves bytes from USB into the input ring.
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	var b [1]byte
	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(time.Millisecond)
				continue
			}

			// Reconnected: start from a clean slate.
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				consecutiveWriteFailures = 0
			}

			b[0] = data
			if inputBuffer.Write(b[:]) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB drains the output buffer. After repeated failures the host is
// assumed gone and pending output is discarded.
func writeUSB() {
	result := outputBuffer.Bytes()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
