package spi

// Host is the downstream SPI flash bus spec.md §4.6 forwards commands over.
// Grounded on original_source/kernel/h1/src/spi_host.rs's
// start_transaction/read_data primitives, narrowed to the single
// opcode+address+data transaction shape the forwarder needs.
type Host interface {
	// Transact issues one opcode with the given address and data
	// (write direction; data is nil for opcodes with no payload) on the
	// downstream bus.
	Transact(opcode Opcode, addr uint32, data []byte) error

	// Read returns length bytes read from the downstream bus starting at
	// addr, servicing the read-family opcodes forwarded transparently to
	// flash.
	Read(addr uint32, length int) ([]byte, error)

	// Busy reports the downstream flash's BUSY status bit.
	Busy() bool
}

// opcodeWaitsBusy names opcodes whose completion should be confirmed by
// polling the downstream BUSY bit before returning, per spec.md §4.6.
func opcodeWaitsBusy(op Opcode) bool {
	switch op {
	case PageProgram, SectorErase4K, BlockErase32K, BlockErase64K, ChipErase, ChipEraseAlt:
		return true
	default:
		return false
	}
}

// Forwarder issues filtered commands against a Host, chunking long writes
// and preceding every chunk-sized transaction with an explicit WriteEnable,
// per spec.md §4.6.
type Forwarder struct {
	host      Host
	chunkSize int
}

// NewForwarder returns a Forwarder that splits writes into chunkSize-byte
// transactions against host.
func NewForwarder(host Host, chunkSize int) *Forwarder {
	if chunkSize <= 0 {
		chunkSize = 256
	}
	return &Forwarder{host: host, chunkSize: chunkSize}
}

// Forward issues opcode at addr with data on the downstream bus. Opcodes
// with a payload longer than the forwarder's chunk size are split into
// sequential transactions, each preceded by its own WriteEnable; opcodes
// with no payload (erases) are issued once.
func (f *Forwarder) Forward(opcode Opcode, addr uint32, data []byte) error {
	if len(data) == 0 {
		if err := f.host.Transact(WriteEnable, 0, nil); err != nil {
			return err
		}
		if err := f.host.Transact(opcode, addr, nil); err != nil {
			return err
		}
		return f.pollIfNeeded(opcode)
	}

	for offset := 0; offset < len(data); offset += f.chunkSize {
		end := offset + f.chunkSize
		if end > len(data) {
			end = len(data)
		}

		if err := f.host.Transact(WriteEnable, 0, nil); err != nil {
			return err
		}
		if err := f.host.Transact(opcode, addr+uint32(offset), data[offset:end]); err != nil {
			return err
		}
		if err := f.pollIfNeeded(opcode); err != nil {
			return err
		}
	}

	return nil
}

// Read issues a downstream read for a read-family opcode that missed the
// mailbox carve-out, per spec.md §4.5's address remapper.
func (f *Forwarder) Read(addr uint32, length int) ([]byte, error) {
	return f.host.Read(addr, length)
}

func (f *Forwarder) pollIfNeeded(opcode Opcode) error {
	if !opcodeWaitsBusy(opcode) {
		return nil
	}
	for f.host.Busy() {
	}
	return nil
}
