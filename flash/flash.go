// Package flash implements the flash storage engine of spec.md §4.2-4.3: a
// smart-programming hardware trait, a retry-and-timeout programmer built on
// it, and a single-producer multiplexer serializing multiple flash users
// over the one programmer.
//
// Grounded on original_source/h1b/src/hil/flash/h1b_hw.rs (hardware trait
// shape: read, set_transaction, set_write_data, trigger, read_error) and
// original_source/kernel/h1/src/hil/flash/driver.rs (bank resolution,
// smart-program parameters, multi-chunk continuation), restructured the way
// the teacher shapes a small stateless hardware-facing type paired with a
// separate state-machine driver (soc/nxp/usb: endpoint.go's buildDTD/set/
// enable alongside device.go's interrupt-driven orchestration).
package flash

import "github.com/usbarmory/h1secure/status"

// Geometry constants from spec.md §3 ("Flash bank layout").
const (
	BanksPerDevice  = 2
	PagesPerBank    = 128
	WordsPerPage    = 512
	WordsPerBank    = PagesPerBank * WordsPerPage // 65536
	MaxWriteWords   = 32
	ErasedWordValue = 0xFFFFFFFF
)

// Bank identifies one of the two flash macros.
type Bank int

const (
	Bank0 Bank = iota
	Bank1
)

// Hardware is the narrow trait the programmer drives, grounded on h1b_hw.rs:
// a word read, transaction-parameter setup, write-data staging, a trigger,
// and an error-status query. Implementations must not block.
type Hardware interface {
	// Read returns the current content of word, globally addressed
	// across both banks.
	Read(word int) uint32

	// SetTransaction configures the pending operation's bank-relative
	// word offset and size (size-1 encoded the way the register does:
	// size is in words, minimum 1).
	SetTransaction(bank Bank, offset int, size int)

	// SetWriteData stages the words to be written by the next trigger.
	// Unused for erase.
	SetWriteData(data []uint32)

	// Trigger starts one pulse of the given opcode against the
	// previously configured transaction.
	Trigger(opcode uint32)

	// ReadError reports whether the most recently triggered pulse ended
	// in the hardware error state.
	ReadError() bool

	// Busy reports whether the flash macro is still mid-operation; a
	// caller must not believe a pulse is complete while this is true.
	Busy() bool
}

// Opcodes passed to Hardware.Trigger, grounded on driver.rs's
// ERASE_OPCODE/WRITE_OPCODE constants.
const (
	EraseOpcode = 0x31415927
	WriteOpcode = 0x27182818
)

// bankFromWord maps a global word address to its bank, per spec.md §4.2
// ("Bank resolution").
func bankFromWord(word int) (Bank, int, error) {
	switch {
	case word < 0:
		return 0, 0, status.New(status.InvalidArgument, "flash: negative address")
	case word < WordsPerBank:
		return Bank0, word, nil
	case word < 2*WordsPerBank:
		return Bank1, word - WordsPerBank, nil
	default:
		return 0, 0, status.New(status.InvalidArgument, "flash: address out of range")
	}
}
