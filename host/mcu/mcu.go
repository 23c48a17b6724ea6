// Package mcu is the host client of the SPI bridge firmware.
package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/exp/slog"

	"github.com/janschiefer/stm32f4xx-hal/host/serial"
	"github.com/janschiefer/stm32f4xx-hal/protocol"
	"github.com/janschiefer/stm32f4xx-hal/spi"
)

// Bootstrap IDs every firmware assigns before the dictionary is known.
const (
	identifyResponseID = 0
	identifyID         = 1
)

const identifyChunk = 40

var (
	ErrNotConnected  = errors.New("mcu: not connected")
	ErrNoDictionary  = errors.New("mcu: dictionary not loaded")
	ErrUnknownBus    = errors.New("mcu: unknown bus")
	ErrUnsupported   = errors.New("mcu: operation not supported by the bus wiring")
	ErrUnexpectedMsg = errors.New("mcu: unexpected response")
)

// Dictionary is the firmware's self-description.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// Command returns the ID of the command whose signature starts with name.
func (d *Dictionary) Command(name string) (uint16, bool) {
	return lookup(d.Commands, name)
}

// Response returns the ID of the response whose signature starts with name.
func (d *Dictionary) Response(name string) (uint16, bool) {
	return lookup(d.Responses, name)
}

func lookup(m map[string]int, name string) (uint16, bool) {
	for sig, id := range m {
		if sig == name || len(sig) > len(name) && sig[:len(name)] == name && sig[len(name)] == ' ' {
			return uint16(id), true
		}
	}
	return 0, false
}

// BusInfo describes one SPI bus of the firmware.
type BusInfo struct {
	Index      uint8
	Name       string
	FullDuplex bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger logs every exchange at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds each wait for an ack or a response.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client issues bridge commands over a serial link.
type Client struct {
	transport *protocol.HostTransport
	dict      *Dictionary
	raw       []byte
	logger    *slog.Logger
	timeout   time.Duration
}

// New returns an unconnected client.
func New(opts ...Option) *Client {
	c := &Client{timeout: protocol.DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the serial port described by cfg.
func (c *Client) Connect(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	c.Attach(port)
	return nil
}

// Attach uses an already open port.
func (c *Client) Attach(port io.ReadWriteCloser) {
	var opts []protocol.Option
	if c.logger != nil {
		opts = append(opts, protocol.WithLogger(c.logger))
	}
	c.transport = protocol.NewHostTransport(port, opts...)
}

// Close closes the link.
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.transport = nil
	return err
}

// Dictionary returns the dictionary loaded by RetrieveDictionary.
func (c *Client) Dictionary() *Dictionary { return c.dict }

// RawDictionary returns the decompressed dictionary text.
func (c *Client) RawDictionary() []byte { return c.raw }

// RetrieveDictionary downloads, decompresses and parses the dictionary.
func (c *Client) RetrieveDictionary() error {
	if c.transport == nil {
		return ErrNotConnected
	}
	var compressed []byte
	for {
		chunk, err := c.identify(uint32(len(compressed)))
		if err != nil {
			return fmt.Errorf("mcu: identify at %d: %w", len(compressed), err)
		}
		compressed = append(compressed, chunk...)
		if len(chunk) < identifyChunk {
			break
		}
	}
	c.debug("dictionary downloaded", slog.Int("bytes", len(compressed)))

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("mcu: dictionary: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("mcu: dictionary: %w", err)
	}
	var d Dictionary
	if err := json.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("mcu: dictionary: %w", err)
	}
	c.raw, c.dict = raw, &d
	return nil
}

func (c *Client) identify(offset uint32) ([]byte, error) {
	err := c.transport.SendCommandTimeout(identifyID, func(out protocol.OutputBuffer) {
		protocol.PutUint(out, offset)
		protocol.PutUint(out, identifyChunk)
	}, c.timeout)
	if err != nil {
		return nil, err
	}
	args, err := c.await(identifyResponseID)
	if err != nil {
		return nil, err
	}
	a := protocol.NewArgs(&args)
	got := a.Uint()
	data := a.Bytes()
	if err := a.Err(); err != nil {
		return nil, err
	}
	if got != offset {
		return nil, fmt.Errorf("%w: offset %d, want %d", ErrUnexpectedMsg, got, offset)
	}
	return data, nil
}

// await returns the arguments of the next response, which must be id.
func (c *Client) await(id uint16) ([]byte, error) {
	m, err := c.transport.ReceiveResponse(c.timeout)
	if err != nil {
		return nil, err
	}
	got, args, err := m.Command()
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, fmt.Errorf("%w: id %d, want %d", ErrUnexpectedMsg, got, id)
	}
	return args, nil
}

func (c *Client) debug(msg string, attrs ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, attrs...)
	}
}

// call sends command name and waits for the response named reply.
func (c *Client) call(name, reply string, args func(out protocol.OutputBuffer)) ([]byte, error) {
	if c.transport == nil {
		return nil, ErrNotConnected
	}
	if c.dict == nil {
		return nil, ErrNoDictionary
	}
	id, ok := c.dict.Command(name)
	if !ok {
		return nil, fmt.Errorf("mcu: firmware has no %s command", name)
	}
	rid, ok := c.dict.Response(reply)
	if !ok {
		return nil, fmt.Errorf("mcu: firmware has no %s response", reply)
	}
	c.debug("call", slog.String("cmd", name))
	if err := c.transport.SendCommandTimeout(id, args, c.timeout); err != nil {
		return nil, err
	}
	return c.await(rid)
}

// statusError maps a bridge status code back to an error. Fault codes
// become the matching spi.Error.
func statusError(status uint32) error {
	switch status {
	case 0:
		return nil
	case uint32(spi.Overrun), uint32(spi.ModeFault), uint32(spi.Crc):
		return spi.Error(status)
	case 0xFE:
		return ErrUnsupported
	case 0xFF:
		return ErrUnknownBus
	}
	return fmt.Errorf("%w: status %d", ErrUnexpectedMsg, status)
}

// busReply decodes "bus=%c status=%c" and, with data, "response=%*s".
func busReply(args []byte, bus uint8, data bool) ([]byte, error) {
	a := protocol.NewArgs(&args)
	got := a.Uint()
	status := a.Uint()
	var rx []byte
	if data {
		rx = a.Bytes()
	}
	if err := a.Err(); err != nil {
		return nil, err
	}
	if got != uint32(bus) {
		return nil, fmt.Errorf("%w: bus %d, want %d", ErrUnexpectedMsg, got, bus)
	}
	if err := statusError(status); err != nil {
		return nil, fmt.Errorf("mcu: bus %d: %w", bus, err)
	}
	return rx, nil
}

// Transfer clocks data out on a full-duplex bus and returns what was clocked
// in.
func (c *Client) Transfer(bus uint8, data []byte) ([]byte, error) {
	args, err := c.call("spi_transfer", "spi_transfer_response", func(out protocol.OutputBuffer) {
		protocol.PutUint(out, uint32(bus))
		protocol.PutBytes(out, data)
	})
	if err != nil {
		return nil, err
	}
	return busReply(args, bus, true)
}

// Send writes data, discarding anything received.
func (c *Client) Send(bus uint8, data []byte) error {
	args, err := c.call("spi_send", "spi_send_response", func(out protocol.OutputBuffer) {
		protocol.PutUint(out, uint32(bus))
		protocol.PutBytes(out, data)
	})
	if err != nil {
		return err
	}
	_, err = busReply(args, bus, false)
	return err
}

// Read reads n bytes. The firmware caps n at its SPI_MAX_READ constant.
func (c *Client) Read(bus uint8, n int) ([]byte, error) {
	args, err := c.call("spi_read", "spi_read_response", func(out protocol.OutputBuffer) {
		protocol.PutUint(out, uint32(bus))
		protocol.PutUint(out, uint32(n))
	})
	if err != nil {
		return nil, err
	}
	return busReply(args, bus, true)
}

// ListBuses asks the firmware for its buses. Names come from the spi_bus
// enumeration of the dictionary.
func (c *Client) ListBuses() ([]BusInfo, error) {
	if c.dict == nil {
		return nil, ErrNoDictionary
	}
	count, err := strconv.Atoi(c.dict.Config["SPI_BUS_COUNT"])
	if err != nil {
		return nil, fmt.Errorf("mcu: SPI_BUS_COUNT: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	names := make(map[int]string)
	for name, idx := range c.dict.Enumerations["spi_bus"] {
		names[idx] = name
	}

	args, err := c.call("spi_list", "spi_bus_info", nil)
	if err != nil {
		return nil, err
	}
	info, _ := c.dict.Response("spi_bus_info")
	buses := make([]BusInfo, 0, count)
	for {
		a := protocol.NewArgs(&args)
		idx := a.Uint()
		duplex := a.Uint()
		if err := a.Err(); err != nil {
			return nil, err
		}
		buses = append(buses, BusInfo{Index: uint8(idx), Name: names[int(idx)], FullDuplex: duplex != 0})
		if len(buses) == count {
			return buses, nil
		}
		if args, err = c.await(info); err != nil {
			return nil, err
		}
	}
}

// BusIndex resolves a bus given by name or by number.
func (c *Client) BusIndex(s string) (uint8, error) {
	if c.dict != nil {
		if idx, ok := c.dict.Enumerations["spi_bus"][s]; ok {
			return uint8(idx), nil
		}
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBus, s)
	}
	return uint8(n), nil
}
