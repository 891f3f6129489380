package flash

// FakeHardware is an in-memory Hardware used by this package's own tests and
// by higher layers (nvcounter) that need a flash to test against, grounded
// on original_source/userspace/flash_test/src/driver.rs and
// userspace/nvcounter_test/src/fake_flash.rs: a plain word array, each
// Trigger flips affected words according to the ordinary flash physics
// (erase sets all-ones, write can only clear bits), plus hooks to inject a
// configurable number of error responses before a pulse reports success.
type FakeHardware struct {
	words [2 * WordsPerBank]uint32

	// ErrorsRemaining pulses report the hardware error bit before
	// succeeding. A negative value injects errors forever (used to
	// exercise retry exhaustion).
	ErrorsRemaining int

	// BusyForever, when true, makes every pulse time out instead of
	// completing.
	BusyForever bool

	bank      Bank
	offset    int
	size      int
	writeData []uint32
	lastError bool
}

// NewFakeHardware returns flash initialized to the erased (all-ones) state.
func NewFakeHardware() *FakeHardware {
	hw := &FakeHardware{}
	for i := range hw.words {
		hw.words[i] = ErasedWordValue
	}
	return hw
}

func (hw *FakeHardware) wordIndex(bank Bank, offset int) int {
	base := 0
	if bank == Bank1 {
		base = WordsPerBank
	}
	return base + offset
}

func (hw *FakeHardware) Read(word int) uint32 {
	return hw.words[word]
}

func (hw *FakeHardware) SetTransaction(bank Bank, offset int, size int) {
	hw.bank = bank
	hw.offset = offset
	hw.size = size
}

func (hw *FakeHardware) SetWriteData(data []uint32) {
	hw.writeData = append([]uint32(nil), data...)
}

func (hw *FakeHardware) Trigger(opcode uint32) {
	if hw.BusyForever {
		hw.lastError = false
		return
	}

	if hw.ErrorsRemaining != 0 {
		if hw.ErrorsRemaining > 0 {
			hw.ErrorsRemaining--
		}
		hw.lastError = true
		return
	}

	hw.lastError = false

	base := hw.wordIndex(hw.bank, hw.offset)

	switch opcode {
	case EraseOpcode:
		pageStart := (hw.offset / WordsPerPage) * WordsPerPage
		pageBase := hw.wordIndex(hw.bank, pageStart)
		for i := 0; i < WordsPerPage; i++ {
			hw.words[pageBase+i] = ErasedWordValue
		}
	case WriteOpcode:
		for i, v := range hw.writeData {
			hw.words[base+i] &= v
		}
	}
}

func (hw *FakeHardware) ReadError() bool {
	return hw.lastError
}

func (hw *FakeHardware) Busy() bool {
	return hw.BusyForever
}
