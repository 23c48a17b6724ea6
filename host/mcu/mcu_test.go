package mcu

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/janschiefer/stm32f4xx-hal/core"
	"github.com/janschiefer/stm32f4xx-hal/protocol"
	"github.com/janschiefer/stm32f4xx-hal/spi"
	"github.com/janschiefer/stm32f4xx-hal/spi/hal1"
	"github.com/janschiefer/stm32f4xx-hal/spi/spitest"
)

// board is an in-memory firmware: writes go through the firmware transport
// and bridge, replies come back through a pipe.
type board struct {
	mu   sync.Mutex
	fw   *protocol.Transport
	out  *protocol.ScratchOutput
	pr   *io.PipeReader
	pw   *io.PipeWriter
	full *spitest.Peripheral
	half *spitest.Peripheral
}

func newBoard(t *testing.T) *board {
	t.Helper()
	b := &board{
		out:  protocol.NewScratchOutput(),
		full: spitest.New(spitest.Config{Latency: 2}),
		half: spitest.New(spitest.Config{Bidi: true}),
	}
	b.pr, b.pw = io.Pipe()

	full, err := spi.New[uint8, spi.FullDuplex](b.full)
	if err != nil {
		t.Fatal(err)
	}
	half, err := spi.New[uint8, spi.HalfDuplex](b.half)
	if err != nil {
		t.Fatal(err)
	}
	bridge := core.NewBridge(core.WithMCU("sim"))
	bridge.RegisterSPIBus("spi1", hal1.NewFullDuplex(full))
	bridge.RegisterSPIBus("spi2", hal1.New(half))
	b.fw = protocol.NewTransport(b.out, bridge.Handle)
	bridge.SetResponder(b.fw)
	return b
}

func (b *board) Read(p []byte) (int, error) { return b.pr.Read(p) }

func (b *board) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fw.Receive(protocol.NewSliceInput(p))
	reply := append([]byte(nil), b.out.Bytes()...)
	b.out.Reset()
	if _, err := b.pw.Write(reply); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (b *board) Close() error {
	b.pw.Close()
	return b.pr.Close()
}

func connect(t *testing.T) (*Client, *board) {
	t.Helper()
	b := newBoard(t)
	c := New(WithTimeout(time.Second))
	c.Attach(b)
	t.Cleanup(func() { c.Close() })
	if err := c.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary: %v", err)
	}
	return c, b
}

func TestRetrieveDictionary(t *testing.T) {
	c, _ := connect(t)
	d := c.Dictionary()

	if d.Version != core.Version || d.Config["MCU"] != "sim" {
		t.Errorf("version %q, config %v", d.Version, d.Config)
	}
	if id, ok := d.Command("identify"); !ok || id != identifyID {
		t.Errorf("identify = %d, %v", id, ok)
	}
	if id, ok := d.Response("identify_response"); !ok || id != identifyResponseID {
		t.Errorf("identify_response = %d, %v", id, ok)
	}
	if _, ok := d.Command("spi"); ok {
		t.Error("a prefix of a command name matched")
	}
	if len(c.RawDictionary()) == 0 || c.RawDictionary()[0] != '{' {
		t.Errorf("raw dictionary %q", c.RawDictionary())
	}
}

func TestTransfer(t *testing.T) {
	c, b := connect(t)
	b.full.Feed(0x9F, 0xEF, 0x40)

	rx, err := c.Transfer(0, []byte{0x9F, 0, 0})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if diff := cmp.Diff([]byte{0x9F, 0xEF, 0x40}, rx); diff != "" {
		t.Errorf("rx mismatch (-want +got):\n%s", diff)
	}
}

func TestSendAndRead(t *testing.T) {
	c, b := connect(t)
	b.half.Feed(0x11, 0x22)

	if err := c.Send(1, []byte{0x0A}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rx, err := c.Read(1, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([]byte{0x11, 0x22}, rx); diff != "" {
		t.Errorf("rx mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint16{0x0A}, b.half.Sent()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusErrors(t *testing.T) {
	c, b := connect(t)

	if _, err := c.Transfer(1, []byte{1}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("transfer on half-duplex: %v", err)
	}
	if err := c.Send(9, []byte{1}); !errors.Is(err, ErrUnknownBus) {
		t.Errorf("send on unknown bus: %v", err)
	}
	b.full.Latch(spi.StatusMODF)
	if _, err := c.Transfer(0, []byte{1}); !errors.Is(err, spi.ModeFault) {
		t.Errorf("mode fault: %v", err)
	}
	// The fault was cleared when it was reported.
	if _, err := c.Transfer(0, []byte{1}); err != nil {
		t.Errorf("after fault: %v", err)
	}
}

func TestListBuses(t *testing.T) {
	c, _ := connect(t)
	buses, err := c.ListBuses()
	if err != nil {
		t.Fatalf("ListBuses: %v", err)
	}
	want := []BusInfo{
		{Index: 0, Name: "spi1", FullDuplex: true},
		{Index: 1, Name: "spi2", FullDuplex: false},
	}
	if diff := cmp.Diff(want, buses); diff != "" {
		t.Errorf("bus list mismatch (-want +got):\n%s", diff)
	}
}

func TestBusIndex(t *testing.T) {
	c, _ := connect(t)
	tests := []struct {
		in   string
		want uint8
		err  error
	}{
		{"spi2", 1, nil},
		{"0", 0, nil},
		{"0x01", 1, nil},
		{"spi9", 0, ErrUnknownBus},
	}
	for _, tc := range tests {
		got, err := c.BusIndex(tc.in)
		if !errors.Is(err, tc.err) || got != tc.want {
			t.Errorf("BusIndex(%q) = %d, %v", tc.in, got, err)
		}
	}
}

func TestNotConnected(t *testing.T) {
	c := New()
	if err := c.RetrieveDictionary(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("RetrieveDictionary: %v", err)
	}
	if err := c.Send(0, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send: %v", err)
	}
	if _, err := c.ListBuses(); !errors.Is(err, ErrNoDictionary) {
		t.Errorf("ListBuses: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status uint32
		want   error
	}{
		{0, nil},
		{1, spi.Overrun},
		{2, spi.ModeFault},
		{3, spi.Crc},
		{0xFE, ErrUnsupported},
		{0xFF, ErrUnknownBus},
		{7, ErrUnexpectedMsg},
	}
	for _, tc := range tests {
		if err := statusError(tc.status); !errors.Is(err, tc.want) {
			t.Errorf("statusError(%d) = %v, want %v", tc.status, err, tc.want)
		}
	}
}
