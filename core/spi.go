package core

import (
	"errors"

	"golang.org/x/exp/slog"

	"github.com/janschiefer/stm32f4xx-hal/protocol"
	"github.com/janschiefer/stm32f4xx-hal/spi"
)

// Status codes carried by SPI responses. Codes 1 to 3 are the values of
// spi.Overrun, spi.ModeFault and spi.Crc.
const (
	StatusOK          uint8 = 0
	StatusOverrun           = uint8(spi.Overrun)
	StatusModeFault         = uint8(spi.ModeFault)
	StatusCrc               = uint8(spi.Crc)
	StatusUnsupported uint8 = 0xFE
	StatusUnknownBus  uint8 = 0xFF
)

// MaxReadCount bounds spi_read so the response fits one frame.
const MaxReadCount = 48

// SPIBus is a byte bus of either wiring.
type SPIBus interface {
	Write(words []byte) error
	Read(words []byte) error
}

// SPITransferBus is a full-duplex byte bus. Buses implementing it accept
// spi_transfer.
type SPITransferBus interface {
	SPIBus
	Transfer(read, write []byte) error
}

type busEntry struct {
	name string
	bus  SPIBus
	xfer SPITransferBus
}

// StatusOf maps a bus error to its status code. Errors that are not bus
// faults report StatusUnsupported.
func StatusOf(err error) uint8 {
	if err == nil {
		return StatusOK
	}
	var fault spi.Error
	if errors.As(err, &fault) {
		return uint8(fault)
	}
	return StatusUnsupported
}

func (b *Bridge) registerSPI() {
	r := b.reg
	r.Register("spi_transfer", "bus=%c data=%*s", b.handleTransfer)
	r.Register("spi_send", "bus=%c data=%*s", b.handleSend)
	r.Register("spi_read", "bus=%c count=%c", b.handleRead)
	r.Register("spi_list", "", b.handleList)
	b.transferResponse = r.RegisterResponse("spi_transfer_response", "bus=%c status=%c response=%*s")
	b.sendResponse = r.RegisterResponse("spi_send_response", "bus=%c status=%c")
	b.readResponse = r.RegisterResponse("spi_read_response", "bus=%c status=%c response=%*s")
	b.busInfo = r.RegisterResponse("spi_bus_info", "bus=%c duplex=%c")
}

// RegisterSPIBus makes bus addressable by the returned index and publishes
// name in the spi_bus enumeration.
func (b *Bridge) RegisterSPIBus(name string, bus SPIBus) uint8 {
	idx := uint8(len(b.buses))
	e := &busEntry{name: name, bus: bus}
	e.xfer, _ = bus.(SPITransferBus)
	b.buses = append(b.buses, e)
	b.dict.SetEnumValue("spi_bus", name, int(idx))
	b.dict.SetConstant("SPI_BUS_COUNT", len(b.buses))
	return idx
}

func (b *Bridge) lookup(idx uint32) *busEntry {
	if idx >= uint32(len(b.buses)) {
		return nil
	}
	return b.buses[idx]
}

func (b *Bridge) fault(op string, idx uint32, err error) {
	if err != nil && b.logger != nil {
		b.logger.Debug("spi fault", slog.String("op", op), slog.Int("bus", int(idx)), slog.Any("err", err))
	}
}

// spi_transfer bus=%c data=%*s
func (b *Bridge) handleTransfer(data *[]byte) error {
	args := protocol.NewArgs(data)
	idx := args.Uint()
	tx := args.Bytes()
	if err := args.Err(); err != nil {
		return err
	}
	var (
		status uint8
		rx     []byte
	)
	switch e := b.lookup(idx); {
	case e == nil:
		status = StatusUnknownBus
	case e.xfer == nil:
		status = StatusUnsupported
	default:
		rx = make([]byte, len(tx))
		err := e.xfer.Transfer(rx, tx)
		b.fault("transfer", idx, err)
		if status = StatusOf(err); status != StatusOK {
			rx = nil
		}
	}
	b.respond(b.transferResponse, func(out protocol.OutputBuffer) {
		protocol.PutUint(out, idx)
		protocol.PutUint(out, uint32(status))
		protocol.PutBytes(out, rx)
	})
	return nil
}

// spi_send bus=%c data=%*s
func (b *Bridge) handleSend(data *[]byte) error {
	args := protocol.NewArgs(data)
	idx := args.Uint()
	tx := args.Bytes()
	if err := args.Err(); err != nil {
		return err
	}
	status := StatusUnknownBus
	if e := b.lookup(idx); e != nil {
		err := e.bus.Write(tx)
		b.fault("send", idx, err)
		status = StatusOf(err)
	}
	b.respond(b.sendResponse, func(out protocol.OutputBuffer) {
		protocol.PutUint(out, idx)
		protocol.PutUint(out, uint32(status))
	})
	return nil
}

// spi_read bus=%c count=%c
func (b *Bridge) handleRead(data *[]byte) error {
	args := protocol.NewArgs(data)
	idx := args.Uint()
	count := args.Uint()
	if err := args.Err(); err != nil {
		return err
	}
	status := StatusUnknownBus
	var rx []byte
	if e := b.lookup(idx); e != nil {
		rx = make([]byte, min(count, MaxReadCount))
		err := e.bus.Read(rx)
		b.fault("read", idx, err)
		if status = StatusOf(err); status != StatusOK {
			rx = nil
		}
	}
	b.respond(b.readResponse, func(out protocol.OutputBuffer) {
		protocol.PutUint(out, idx)
		protocol.PutUint(out, uint32(status))
		protocol.PutBytes(out, rx)
	})
	return nil
}

// spi_list
func (b *Bridge) handleList(*[]byte) error {
	for i, e := range b.buses {
		duplex := uint32(0)
		if e.xfer != nil {
			duplex = 1
		}
		b.respond(b.busInfo, func(out protocol.OutputBuffer) {
			protocol.PutUint(out, uint32(i))
			protocol.PutUint(out, duplex)
		})
	}
	return nil
}
