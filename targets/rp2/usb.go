//go:build rp2040 || rp2350

package main

import "machine"

// InitUSB configures USB CDC. On RP2 chips machine.Serial is the USB port.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// USBAvailable returns the number of bytes waiting to be read.
func USBAvailable() int {
	return machine.Serial.Buffered()
}

// USBRead reads a single byte.
func USBRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// USBWriteBytes writes data, possibly partially.
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
