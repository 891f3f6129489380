package spi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usbarmory/h1secure/irq"
)

func newTestDevice() (*Device, *FakeHost) {
	host := &FakeHost{}
	forwarder := NewForwarder(host, 256)
	mailbox := NewMailbox(256, FakeAttestServer{})

	cfg := Config{
		VirtualBase:   0,
		VirtualSize:   1 << 24,
		PhysicalBase:  0,
		MailboxOffset: 0xf00000,
		MailboxSize:   256,
	}

	return NewDevice(cfg, mailbox, forwarder), host
}

// Scenario 5 (spec.md §8): mailbox Manticore roundtrip.
func TestMailboxManticoreRoundtrip(t *testing.T) {
	d, _ := newTestDevice()

	request := []byte("attest-me")
	payload := make([]byte, 3+len(request))
	payload[0] = byte(ContentManticore)
	binary.BigEndian.PutUint16(payload[1:3], uint16(len(request)))
	copy(payload[3:], request)

	require.NoError(t, d.HandleCommand(WriteEnable, 0, nil))
	require.True(t, d.WriteEnabled())

	addr := d.cfg.VirtualBase + d.cfg.MailboxOffset
	require.NoError(t, d.HandleCommand(PageProgram, addr, payload))

	require.False(t, d.Busy())
	require.False(t, d.WriteEnabled())

	out := d.mailbox.TakeOutbound()
	require.Equal(t, byte(ContentManticore), out[0])

	gotLen := binary.BigEndian.Uint16(out[1:3])
	require.Equal(t, uint16(len(request)), gotLen)

	reply := out[3:]
	for i := range request {
		require.Equal(t, request[len(request)-1-i], reply[i])
	}
}

func TestMailboxCryptoSelfTest(t *testing.T) {
	d, _ := newTestDevice()
	accel := &FakeAccelerator{}
	d.mailbox.SetAccelerator(accel)

	request := []byte{0x42, 0x01, 0x02, 0x03}
	payload := make([]byte, 3+len(request))
	payload[0] = byte(ContentCryptoSelfTest)
	binary.BigEndian.PutUint16(payload[1:3], uint16(len(request)))
	copy(payload[3:], request)

	require.NoError(t, d.HandleCommand(WriteEnable, 0, nil))
	addr := d.cfg.VirtualBase + d.cfg.MailboxOffset
	require.NoError(t, d.HandleCommand(PageProgram, addr, payload))

	out := d.mailbox.TakeOutbound()
	require.Equal(t, byte(ContentCryptoSelfTest), out[0])
	reply := out[3:]
	require.Equal(t, []byte{0x43, 0x40, 0x41}, reply)
}

func TestMailboxCryptoSelfTestFault(t *testing.T) {
	d, _ := newTestDevice()
	accel := &FakeAccelerator{Faulted: true}
	d.mailbox.SetAccelerator(accel)

	request := []byte{0x42, 0x01}
	payload := make([]byte, 3+len(request))
	payload[0] = byte(ContentCryptoSelfTest)
	binary.BigEndian.PutUint16(payload[1:3], uint16(len(request)))
	copy(payload[3:], request)

	require.NoError(t, d.HandleCommand(WriteEnable, 0, nil))
	addr := d.cfg.VirtualBase + d.cfg.MailboxOffset
	require.Error(t, d.HandleCommand(PageProgram, addr, payload))
}

// Scenario 6 (spec.md §8): passthrough with WriteEnable gating.
func TestPassthroughRequiresWriteEnable(t *testing.T) {
	d, host := newTestDevice()

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	addr := uint32(0x1000)

	require.NoError(t, d.HandleCommand(PageProgram, addr, payload))
	require.Empty(t, host.Transactions, "no WriteEnable was issued, nothing should forward")

	require.NoError(t, d.HandleCommand(WriteEnable, 0, nil))
	require.NoError(t, d.HandleCommand(PageProgram, addr, payload))

	require.Len(t, host.Transactions, 2)
	require.Equal(t, WriteEnable, host.Transactions[0].Opcode)
	require.Equal(t, PageProgram, host.Transactions[1].Opcode)
	require.Equal(t, addr, host.Transactions[1].Addr)
	require.Equal(t, payload, host.Transactions[1].Data)
}

// The fixed 4-byte-address rule table of spec.md §6.2.
func TestFourByteReadRuleTable(t *testing.T) {
	var f Filter
	f.InstallFourByteReadRules()

	cases := []struct {
		opcode Opcode
		want   Opcode
	}{
		{0x03, NormalRead},
		{0x07, NormalRead},
		{0x08, FastRead},
		{0x0b, FastRead},
		{0x0c, FastRead4B},
		{0x0f, FastRead4B},
		{0x10, NormalRead},
		{0x1f, NormalRead},
		{0x20, FastReadDualOutput},
		{0x3f, FastReadDualOutput},
		{0x40, NormalRead},
		{0x7f, NormalRead},
		{0x80, NormalRead},
		{0xff, NormalRead},
	}

	for _, c := range cases {
		got, ok := f.Evaluate(c.opcode)
		require.True(t, ok, "opcode %#x should match a rule", c.opcode)
		require.Equal(t, c.want, got, "opcode %#x", c.opcode)
	}
}

func TestServiceReadJedecID(t *testing.T) {
	d, _ := newTestDevice()

	require.NoError(t, d.HandleCommand(ReadJedecID, 0, nil))
	got, err := d.ServiceRead(ReadJedecID, 0, len(JedecID))
	require.NoError(t, err)
	require.Equal(t, JedecID[:], got)
}

func TestServiceReadSFDP(t *testing.T) {
	d, _ := newTestDevice()

	require.NoError(t, d.HandleCommand(ReadSFDP, 0, nil))
	got, err := d.ServiceRead(ReadSFDP, 0, SFDPTableSize)
	require.NoError(t, err)
	require.Equal(t, []byte{'S', 'F', 'D', 'P'}, got[:4])

	// A nonzero offset returns the table starting from that byte.
	tail, err := d.ServiceRead(ReadSFDP, 4, SFDPTableSize-4)
	require.NoError(t, err)
	require.Equal(t, got[4:], tail)
}

func TestServiceReadStatus(t *testing.T) {
	d, _ := newTestDevice()

	require.NoError(t, d.HandleCommand(WriteEnable, 0, nil))
	got, err := d.ServiceRead(ReadStatus, 0, 1)
	require.NoError(t, err)
	require.Equal(t, byte(1<<1), got[0], "WEL set, WIP clear")
}

func TestServiceReadMailbox(t *testing.T) {
	d, _ := newTestDevice()

	// Content type 0 is an unrecognized, no-op message type: Write still
	// deposits the raw bytes into mailbox RAM before parsing the header.
	payload := []byte{0x00, 0x00, 0x00}

	require.NoError(t, d.HandleCommand(WriteEnable, 0, nil))
	addr := d.cfg.VirtualBase + d.cfg.MailboxOffset
	require.NoError(t, d.HandleCommand(PageProgram, addr, payload))

	got, err := d.ServiceRead(NormalRead, addr, len(payload))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestServiceReadFlash(t *testing.T) {
	d, host := newTestDevice()
	host.ReadData = []byte{0x11, 0x22, 0x33, 0x44}

	got, err := d.ServiceRead(NormalRead, d.cfg.VirtualBase, len(host.ReadData))
	require.NoError(t, err)
	require.Equal(t, host.ReadData, got)
}

// spec.md §4.5: the BUSY bit is set by a busy opcode and cleared only by
// firmware, never automatically by the address-mode switch itself.
func TestBusyOpcodeSetsAndWaitsForFirmwareClear(t *testing.T) {
	d, _ := newTestDevice()

	require.NoError(t, d.HandleCommand(Enter4ByteAddressMode, 0, nil))
	require.True(t, d.Busy())

	d.ClearBusy()
	require.False(t, d.Busy())
}

func TestRegisterInterruptDrainsCommandFIFO(t *testing.T) {
	d, host := newTestDevice()

	fifo := NewCommandFIFO(64)
	rec := fifo.Deposit(0, []byte{byte(PageProgram), 0x00, 0x00, 0x10, 0x00, 0xaa, 0xbb})

	router := irq.NewRouter()
	src := &FakeCommandSource{}
	d.RegisterInterrupt(router, 5, fifo, src)

	router.Handle(5)
	require.Empty(t, host.Transactions, "no command was ready, nothing should dispatch")

	require.NoError(t, d.HandleCommand(WriteEnable, 0, nil))
	src.Record, src.Ready = rec, true
	router.Handle(5)

	require.Len(t, host.Transactions, 2)
	require.Equal(t, PageProgram, host.Transactions[1].Opcode)
	require.Equal(t, uint32(0x001000), host.Transactions[1].Addr)
	require.Equal(t, []byte{0xaa, 0xbb}, host.Transactions[1].Data)
}

func TestCommandFIFOWrapAround(t *testing.T) {
	fifo := NewCommandFIFO(8)

	rec := fifo.Deposit(6, []byte{0x02, 0xaa, 0xbb, 0xcc})
	require.True(t, rec.Wrapped)

	opcode, addr, payload, err := ParseCommand(fifo, rec, ThreeByteAddress)
	require.NoError(t, err)
	require.Equal(t, PageProgram, opcode)
	require.Equal(t, uint32(0xaabbcc), addr)
	require.Empty(t, payload)
}
