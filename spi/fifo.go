package spi

import "github.com/usbarmory/h1secure/status"

// CommandRecord is the tuple spec.md §3 names: the ring-buffer read pointer
// before and after the command's bytes were deposited by hardware, plus
// whether the span wrapped around the end of the ring.
type CommandRecord struct {
	StartPtr int
	EndPtr   int
	Wrapped  bool
}

// CommandFIFO is the ring buffer hardware populates with raw command bytes
// (opcode, address, payload) on every host command; firmware drains it using
// the recorded read/write pointers, including the wrap case, per spec.md
// §4.5's command dispatch section. Grounded on
// original_source/kernel/h1/src/spi_device.rs's cmd_addr_fifo register pair
// (rx fifo read/write pointer with wraparound via the MSB).
type CommandFIFO struct {
	buf []byte
}

// NewCommandFIFO returns a ring buffer of the given byte capacity.
func NewCommandFIFO(size int) *CommandFIFO {
	return &CommandFIFO{buf: make([]byte, size)}
}

// Deposit writes data into the ring starting at offset start (mod len(buf)),
// returning the CommandRecord hardware would have produced.
func (f *CommandFIFO) Deposit(start int, data []byte) CommandRecord {
	n := len(f.buf)
	rec := CommandRecord{StartPtr: start % n}

	for i, b := range data {
		f.buf[(start+i)%n] = b
	}

	end := (start + len(data)) % n
	rec.EndPtr = end
	rec.Wrapped = start%n+len(data) > n

	return rec
}

// Read extracts the bytes described by rec, handling the wrap case.
func (f *CommandFIFO) Read(rec CommandRecord) []byte {
	n := len(f.buf)
	if !rec.Wrapped {
		return append([]byte(nil), f.buf[rec.StartPtr:rec.EndPtr]...)
	}

	out := make([]byte, 0, n)
	out = append(out, f.buf[rec.StartPtr:]...)
	out = append(out, f.buf[:rec.EndPtr]...)
	return out
}

// ParseCommand decodes a command's opcode, address, and payload out of rec,
// using mode to determine the address width (3 or 4 bytes).
func ParseCommand(f *CommandFIFO, rec CommandRecord, mode AddressMode) (opcode Opcode, addr uint32, payload []byte, err error) {
	raw := f.Read(rec)

	addrLen := mode.bytes()
	if len(raw) < 1+addrLen {
		return 0, 0, nil, status.New(status.InvalidArgument, "spi.ParseCommand: short command")
	}

	opcode = Opcode(raw[0])

	for i := 0; i < addrLen; i++ {
		addr = addr<<8 | uint32(raw[1+i])
	}

	payload = raw[1+addrLen:]

	return opcode, addr, payload, nil
}
