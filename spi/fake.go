package spi

import "github.com/usbarmory/h1secure/crypto"

// Transaction records one call to FakeHost.Transact, for test assertions.
type Transaction struct {
	Opcode Opcode
	Addr   uint32
	Data   []byte
}

// FakeHost is a Host double recording every transaction issued against it,
// used by this package's own tests the way flash.FakeHardware backs the
// flash package's tests.
type FakeHost struct {
	Transactions []Transaction
	// ReadData backs Read: tests seed a downstream flash image here.
	ReadData []byte
	busy     bool
}

func (h *FakeHost) Transact(opcode Opcode, addr uint32, data []byte) error {
	h.Transactions = append(h.Transactions, Transaction{
		Opcode: opcode,
		Addr:   addr,
		Data:   append([]byte(nil), data...),
	})
	return nil
}

func (h *FakeHost) Read(addr uint32, length int) ([]byte, error) {
	out := make([]byte, length)
	if int(addr) < len(h.ReadData) {
		end := int(addr) + length
		if end > len(h.ReadData) {
			end = len(h.ReadData)
		}
		copy(out, h.ReadData[addr:end])
	}
	return out, nil
}

func (h *FakeHost) Busy() bool { return h.busy }

// FakeCommandSource is a CommandSource double driven directly by tests,
// standing in for the tamago&&arm command-FIFO ready-pointer decode.
type FakeCommandSource struct {
	Record CommandRecord
	Ready  bool
}

func (s *FakeCommandSource) NextCommand() (CommandRecord, bool) {
	return s.Record, s.Ready
}

// FakeAttestServer is an attest.Server double that echoes the request back
// reversed, just distinctive enough for round-trip assertions.
type FakeAttestServer struct{}

func (FakeAttestServer) Handle(request []byte) ([]byte, error) {
	out := make([]byte, len(request))
	for i, b := range request {
		out[len(request)-1-i] = b
	}
	return out, nil
}

// FakeAccelerator is a crypto.Accelerator double: Compute xors the input
// with the op's first byte, Fault is toggled directly by tests.
type FakeAccelerator struct {
	Faulted bool
}

func (f *FakeAccelerator) Compute(op string, in, out []byte) (int, error) {
	if f.Faulted {
		return 0, crypto.FaultError(op)
	}
	var key byte
	if len(op) > 0 {
		key = op[0]
	}
	n := copy(out, in)
	for i := 0; i < n; i++ {
		out[i] ^= key
	}
	return n, nil
}

func (f *FakeAccelerator) Fault() bool { return f.Faulted }
