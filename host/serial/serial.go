// Package serial opens the host end of the bridge link.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is an open serial connection.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config describes the port to open.
type Config struct {
	// Device is the OS path, e.g. /dev/ttyACM0 or COM3.
	Device string `yaml:"device"`

	// Baud is ignored by USB CDC devices but required by UARTs.
	Baud int `yaml:"baud"`

	// ReadTimeout bounds each Read so the reader can notice Close.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DefaultBaud matches the firmware UART configuration.
const DefaultBaud = 250000

// DefaultConfig returns the configuration used when only a device is known.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}

var ErrNoDevice = errors.New("serial: no device given")

type nativePort struct {
	*serial.Port
}

// Open opens the port described by cfg.
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, ErrNoDevice
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return nativePort{p}, nil
}
