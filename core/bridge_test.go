package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/janschiefer/stm32f4xx-hal/protocol"
	"github.com/janschiefer/stm32f4xx-hal/spi"
	"github.com/janschiefer/stm32f4xx-hal/spi/hal1"
	"github.com/janschiefer/stm32f4xx-hal/spi/spitest"
)

// sink records response payloads instead of framing them.
type sink struct {
	frames [][]byte
}

func (s *sink) SendCommand(id uint16, args func(out protocol.OutputBuffer)) {
	out := protocol.NewScratchOutput()
	protocol.PutUint(out, uint32(id))
	if args != nil {
		args(out)
	}
	s.frames = append(s.frames, append([]byte(nil), out.Bytes()...))
}

type response struct {
	Name string
	Ints []uint32
	Data []byte
}

// decode splits a response into its name, nInts integers and an optional
// trailing byte string.
func (s *sink) decode(t *testing.T, b *Bridge, i, nInts int, withData bool) response {
	t.Helper()
	if i >= len(s.frames) {
		t.Fatalf("only %d responses", len(s.frames))
	}
	data := s.frames[i]
	args := protocol.NewArgs(&data)
	id := args.Uint()
	cmd, ok := b.Registry().Command(uint16(id))
	if !ok {
		t.Fatalf("response id %d not registered", id)
	}
	r := response{Name: cmd.Name}
	for j := 0; j < nInts; j++ {
		r.Ints = append(r.Ints, args.Uint())
	}
	if withData {
		r.Data = append([]byte{}, args.Bytes()...)
	}
	if args.Err() != nil || len(data) != 0 {
		t.Fatalf("response %d: err %v, %d bytes left", i, args.Err(), len(data))
	}
	return r
}

func encode(vals ...any) []byte {
	out := protocol.NewScratchOutput()
	for _, v := range vals {
		switch v := v.(type) {
		case int:
			protocol.PutUint(out, uint32(v))
		case []byte:
			protocol.PutBytes(out, v)
		}
	}
	return append([]byte(nil), out.Bytes()...)
}

type fixture struct {
	bridge *Bridge
	out    *sink
	full   *spitest.Peripheral
	half   *spitest.Peripheral
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		out:  &sink{},
		full: spitest.New(spitest.Config{Latency: 1}),
		half: spitest.New(spitest.Config{Bidi: true}),
	}
	full, err := spi.New[uint8, spi.FullDuplex](f.full)
	if err != nil {
		t.Fatal(err)
	}
	half, err := spi.New[uint8, spi.HalfDuplex](f.half)
	if err != nil {
		t.Fatal(err)
	}
	f.bridge = NewBridge(WithMCU("test"))
	f.bridge.SetResponder(f.out)
	f.bridge.RegisterSPIBus("spi1", hal1.NewFullDuplex(full))
	f.bridge.RegisterSPIBus("spi3", hal1.New(half))
	return f
}

func (f *fixture) run(t *testing.T, name string, args ...any) {
	t.Helper()
	cmd, ok := f.bridge.Registry().CommandByName(name)
	if !ok {
		t.Fatalf("%s not registered", name)
	}
	data := encode(args...)
	if err := f.bridge.Handle(cmd.ID, &data); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if len(data) != 0 {
		t.Errorf("%s left %d argument bytes", name, len(data))
	}
}

func TestBootstrapIDs(t *testing.T) {
	reg := NewBridge().Registry()
	for name, want := range map[string]uint16{"identify_response": 0, "identify": 1} {
		if c, ok := reg.CommandByName(name); !ok || c.ID != want {
			t.Errorf("%s has id %v, want %d", name, c, want)
		}
	}
}

func TestIdentify(t *testing.T) {
	f := newFixture(t)

	var raw []byte
	for i := 0; ; i++ {
		f.run(t, "identify", len(raw), MaxIdentifyCount+20)
		r := f.out.decode(t, f.bridge, i, 1, true)
		if r.Ints[0] != uint32(len(raw)) {
			t.Fatalf("chunk %d echoed offset %d", i, r.Ints[0])
		}
		if len(r.Data) > MaxIdentifyCount {
			t.Fatalf("chunk of %d bytes exceeds the cap", len(r.Data))
		}
		if len(r.Data) == 0 {
			break
		}
		raw = append(raw, r.Data...)
	}

	d := decodeDictionary(t, raw)
	if d.Config["SPI_BUS_COUNT"] != "2" || d.Config["MCU"] != "test" {
		t.Errorf("config %v", d.Config)
	}
	if diff := cmp.Diff(map[string]int{"spi1": 0, "spi3": 1}, d.Enumerations["spi_bus"]); diff != "" {
		t.Errorf("spi_bus enumeration (-want +got):\n%s", diff)
	}
	for _, sig := range []string{
		"spi_transfer bus=%c data=%*s",
		"spi_send bus=%c data=%*s",
		"spi_read bus=%c count=%c",
		"spi_list",
	} {
		if _, ok := d.Commands[sig]; !ok {
			t.Errorf("command %q missing", sig)
		}
	}
	if _, ok := d.Responses["spi_transfer_response bus=%c status=%c response=%*s"]; !ok {
		t.Errorf("responses %v", d.Responses)
	}
}

func TestSPITransfer(t *testing.T) {
	f := newFixture(t)
	f.full.Feed(0xA1, 0xA2, 0xA3)

	f.run(t, "spi_transfer", 0, []byte{1, 2, 3})

	got := f.out.decode(t, f.bridge, 0, 2, true)
	want := response{Name: "spi_transfer_response", Ints: []uint32{0, 0}, Data: []byte{0xA1, 0xA2, 0xA3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint16{1, 2, 3}, f.full.Sent()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestSPITransferRejectsHalfDuplex(t *testing.T) {
	f := newFixture(t)
	f.run(t, "spi_transfer", 1, []byte{1})

	got := f.out.decode(t, f.bridge, 0, 2, true)
	want := response{Name: "spi_transfer_response", Ints: []uint32{1, uint32(StatusUnsupported)}, Data: []byte{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if len(f.half.Events()) != 0 {
		t.Errorf("half-duplex bus was touched: %v", f.half.Events())
	}
}

func TestSPIUnknownBus(t *testing.T) {
	f := newFixture(t)
	f.run(t, "spi_transfer", 7, []byte{1})
	f.run(t, "spi_send", 7, []byte{1})
	f.run(t, "spi_read", 7, 2)

	unknown := uint32(StatusUnknownBus)
	if r := f.out.decode(t, f.bridge, 0, 2, true); r.Ints[1] != unknown {
		t.Errorf("transfer status %d", r.Ints[1])
	}
	if r := f.out.decode(t, f.bridge, 1, 2, false); r.Ints[1] != unknown {
		t.Errorf("send status %d", r.Ints[1])
	}
	if r := f.out.decode(t, f.bridge, 2, 2, true); r.Ints[1] != unknown {
		t.Errorf("read status %d", r.Ints[1])
	}
}

func TestSPISendHalfDuplex(t *testing.T) {
	f := newFixture(t)
	f.run(t, "spi_send", 1, []byte{0x10, 0x20})

	got := f.out.decode(t, f.bridge, 0, 2, false)
	if diff := cmp.Diff(response{Name: "spi_send_response", Ints: []uint32{1, 0}}, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint16{0x10, 0x20}, f.half.Sent()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
	if f.half.Count(spitest.ReadData) != 0 {
		t.Error("half-duplex send read the data register")
	}
}

func TestSPIReadCapped(t *testing.T) {
	f := newFixture(t)
	f.run(t, "spi_read", 1, 200)

	got := f.out.decode(t, f.bridge, 0, 2, true)
	if got.Ints[1] != 0 || len(got.Data) != MaxReadCount {
		t.Errorf("status %d, %d bytes", got.Ints[1], len(got.Data))
	}
}

func TestSPIFaultStatus(t *testing.T) {
	f := newFixture(t)
	f.full.Latch(spi.StatusOVR)

	f.run(t, "spi_transfer", 0, []byte{1, 2})

	got := f.out.decode(t, f.bridge, 0, 2, true)
	want := response{Name: "spi_transfer_response", Ints: []uint32{0, uint32(StatusOverrun)}, Data: []byte{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestSPIList(t *testing.T) {
	f := newFixture(t)
	f.run(t, "spi_list")

	var got []response
	for i := 0; i < 2; i++ {
		got = append(got, f.out.decode(t, f.bridge, i, 2, false))
	}
	want := []response{
		{Name: "spi_bus_info", Ints: []uint32{0, 1}},
		{Name: "spi_bus_info", Ints: []uint32{1, 0}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bus list mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedArguments(t *testing.T) {
	f := newFixture(t)
	cmd, _ := f.bridge.Registry().CommandByName("spi_send")
	data := []byte{0x00, 0x05, 0x01}
	if err := f.bridge.Handle(cmd.ID, &data); err != protocol.ErrShortData {
		t.Errorf("expected ErrShortData, got %v", err)
	}
	if len(f.out.frames) != 0 {
		t.Error("a response was sent for a malformed command")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want uint8
	}{
		{nil, StatusOK},
		{spi.Overrun, StatusOverrun},
		{&hal1.Error{Err: spi.ModeFault}, StatusModeFault},
		{&hal1.Error{Err: spi.Crc}, StatusCrc},
		{spi.ErrWouldBlock, StatusUnsupported},
	}
	for _, tc := range tests {
		if got := StatusOf(tc.err); got != tc.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
