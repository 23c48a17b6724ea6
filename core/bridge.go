// Package core is the firmware side of the SPI bridge: a registry of
// commands the host can invoke, the dictionary describing them, and the
// commands that drive the registered SPI buses.
package core

import (
	"golang.org/x/exp/slog"

	"github.com/janschiefer/stm32f4xx-hal/protocol"
)

// Version is reported in the dictionary.
const Version = "spi-bridge-0.1.0"

// Responder sends a response frame to the host. *protocol.Transport
// implements it.
type Responder interface {
	SendCommand(id uint16, args func(out protocol.OutputBuffer))
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger logs command failures and bus faults.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithMCU names the chip in the dictionary.
func WithMCU(name string) Option {
	return func(b *Bridge) { b.dict.SetConstant("MCU", name) }
}

// Bridge owns the command registry and the buses commands operate on.
type Bridge struct {
	reg    *CommandRegistry
	dict   *Dictionary
	out    Responder
	logger *slog.Logger
	buses  []*busEntry

	identifyResponse uint16
	transferResponse uint16
	sendResponse     uint16
	readResponse     uint16
	busInfo          uint16
}

// NewBridge registers the identify and SPI commands. identify_response and
// identify take IDs 0 and 1, which hosts rely on to bootstrap.
func NewBridge(opts ...Option) *Bridge {
	reg := NewCommandRegistry()
	b := &Bridge{reg: reg, dict: NewDictionary(reg, Version)}

	b.identifyResponse = reg.RegisterResponse("identify_response", "offset=%u data=%*s")
	reg.Register("identify", "offset=%u count=%c", b.handleIdentify)
	b.registerSPI()

	b.dict.SetConstant("SPI_BUS_COUNT", 0)
	b.dict.SetConstant("SPI_MAX_READ", MaxReadCount)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetResponder directs responses to r. Until it is called responses are
// dropped.
func (b *Bridge) SetResponder(r Responder) { b.out = r }

func (b *Bridge) Registry() *CommandRegistry { return b.reg }

func (b *Bridge) Dictionary() *Dictionary { return b.dict }

// Handle dispatches one command. It has the shape of a protocol.Handler.
func (b *Bridge) Handle(id uint16, data *[]byte) error {
	err := b.reg.Dispatch(id, data)
	if err != nil && b.logger != nil {
		b.logger.Warn("dispatch failed", slog.Int("id", int(id)), slog.Any("err", err))
	}
	return err
}

func (b *Bridge) respond(id uint16, args func(out protocol.OutputBuffer)) {
	if b.out != nil {
		b.out.SendCommand(id, args)
	}
}

// MaxIdentifyCount bounds one identify chunk so its response fits a frame.
const MaxIdentifyCount = 40

// identify offset=%u count=%c
func (b *Bridge) handleIdentify(data *[]byte) error {
	args := protocol.NewArgs(data)
	offset := args.Uint()
	count := args.Uint()
	if err := args.Err(); err != nil {
		return err
	}
	chunk, err := b.dict.Chunk(offset, int(min(count, MaxIdentifyCount)))
	if err != nil {
		return err
	}
	b.respond(b.identifyResponse, func(out protocol.OutputBuffer) {
		protocol.PutUint(out, offset)
		protocol.PutBytes(out, chunk)
	})
	return nil
}
