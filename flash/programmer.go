package flash

import (
	"time"

	"github.com/usbarmory/h1secure/console"
	"github.com/usbarmory/h1secure/status"
	"github.com/usbarmory/h1secure/timer"
)

var log = console.New("flash")

// Client receives the outcome of an erase or write, grounded on driver.rs's
// Client::erase_done/write_done. The write buffer loaned to Write is always
// returned, matching spec.md §7's buffer-return guarantee.
type Client interface {
	EraseDone(code status.Code)
	WriteDone(data []uint32, code status.Code)
}

// smartProgram is the retry/timeout state machine spec.md §4.2 describes.
// One exists per erase or per write chunk: start creates it for the chunk's
// first pulse and finish drops it when that chunk ends, so a multi-chunk
// write gets a fresh attempt budget for each chunk.
type smartProgram struct {
	opcode            uint32
	bank              Bank
	attemptsRemaining int
	finalPulseNeeded  bool
	finalPulsePending bool
	timeout           time.Duration
}

// Programmer executes one erase or one write (transparently chunked at 32
// words) against Hardware, retrying on programmer-indicated error until
// success, attempt-budget exhaustion, or a per-pulse timeout.
type Programmer struct {
	hw    Hardware
	alarm *timer.Alarm

	client Client

	sp *smartProgram

	// write continuation state (original_source driver.rs AlarmClient::alarm)
	writeData   []uint32
	writePos    int
	writeBank   Bank
	writeTarget int // bank-relative word offset of the whole write
}

// NewProgrammer returns a Programmer driving hw, using src as its alarm's
// tick source.
func NewProgrammer(hw Hardware, src timer.Source) *Programmer {
	return &Programmer{
		hw:    hw,
		alarm: timer.NewAlarm(src),
	}
}

// SetClient registers the client that receives erase/write outcomes.
func (p *Programmer) SetClient(c Client) {
	p.client = c
}

// ProgramInProgress reports whether an erase or write is currently running.
func (p *Programmer) ProgramInProgress() bool {
	return p.sp != nil
}

// Read returns the current content of a flash word. Reads are always
// permitted and bypass the smart-programming state machine entirely,
// per spec.md §4.2 ("Operation exclusion").
func (p *Programmer) Read(word int) (uint32, error) {
	if word < 0 || word >= 2*WordsPerBank {
		return 0, status.New(status.InvalidArgument, "flash.Read")
	}
	return p.hw.Read(word), nil
}

// Erase starts erasing the page containing word address page*WordsPerPage.
// It returns immediately; the outcome arrives via Client.EraseDone.
func (p *Programmer) Erase(page int) error {
	if p.ProgramInProgress() {
		return status.New(status.Busy, "flash.Erase")
	}

	target := page * WordsPerPage

	bank, offset, err := bankFromWord(target)
	if err != nil {
		return status.Wrap(status.InvalidArgument, "flash.Erase", err)
	}

	p.start(EraseOpcode, bank, offset, 1, 45, false, 3_353_267*time.Nanosecond)

	return nil
}

// Write starts writing data (at most MaxWriteWords per hardware
// transaction; longer buffers are chunked transparently) starting at word
// address target. It returns immediately; the outcome arrives via
// Client.WriteDone, which always receives the full, original data slice.
func (p *Programmer) Write(target int, data []uint32) error {
	if p.ProgramInProgress() {
		return status.New(status.Busy, "flash.Write")
	}

	if len(data) == 0 {
		return status.New(status.InvalidArgument, "flash.Write")
	}

	bank, offset, err := bankFromWord(target)
	if err != nil {
		return status.Wrap(status.InvalidArgument, "flash.Write", err)
	}

	if offset+len(data) > WordsPerBank {
		return status.New(status.InvalidArgument, "flash.Write")
	}

	p.writeData = data
	p.writePos = 0
	p.writeBank = bank
	p.writeTarget = offset

	p.startNextChunk()

	return nil
}

func (p *Programmer) startNextChunk() {
	chunkLen := len(p.writeData) - p.writePos
	if chunkLen > MaxWriteWords {
		chunkLen = MaxWriteWords
	}

	chunk := p.writeData[p.writePos : p.writePos+chunkLen]
	p.hw.SetWriteData(chunk)

	timeout := time.Duration(48_734+3_734*chunkLen) * time.Nanosecond
	p.start(WriteOpcode, p.writeBank, p.writeTarget+p.writePos, chunkLen, 8, true, timeout)
}

// start begins the smart-programming sequence for one chunk.
func (p *Programmer) start(opcode uint32, bank Bank, bankTarget, size int, maxAttempts int, finalPulseNeeded bool, timeout time.Duration) {
	p.hw.SetTransaction(bank, bankTarget, size)

	p.sp = &smartProgram{
		opcode:            opcode,
		bank:              bank,
		attemptsRemaining: maxAttempts,
		finalPulseNeeded:  finalPulseNeeded,
		timeout:           timeout,
	}

	p.pulse()
}

func (p *Programmer) pulse() {
	p.hw.Trigger(p.sp.opcode)
	p.alarm.Schedule(p.sp.timeout, p.onAlarm)
}

// onAlarm is the pulse-completion callback spec.md §4.2 specifies.
func (p *Programmer) onAlarm() {
	sp := p.sp
	if sp == nil {
		return
	}

	if p.hw.Busy() {
		// No completion at all within the timeout window.
		p.finish(status.Timeout)
		return
	}

	errored := p.hw.ReadError()

	switch {
	case !errored && sp.finalPulseNeeded && !sp.finalPulsePending:
		sp.finalPulsePending = true
		p.pulse()

	case !errored:
		p.finish(status.OK)

	case errored && sp.attemptsRemaining > 0:
		sp.attemptsRemaining--
		p.pulse()

	default: // errored && attemptsRemaining == 0
		p.finish(status.HardwareFault)
	}
}

// finish delivers the outcome of the in-flight chunk, continuing to the next
// write chunk on success, exactly as driver.rs's AlarmClient::alarm does.
func (p *Programmer) finish(code status.Code) {
	opcode := p.sp.opcode
	p.sp = nil

	if code != status.OK {
		log.Printf("pulse opcode %#x ended with %s", opcode, code)
	}

	if opcode != WriteOpcode {
		if p.client != nil {
			p.client.EraseDone(code)
		}
		return
	}

	subwriteEnd := p.writePos + minInt(MaxWriteWords, len(p.writeData)-p.writePos)
	fullwriteEnd := len(p.writeData)

	if subwriteEnd >= fullwriteEnd || code != status.OK {
		data := p.writeData
		p.writeData = nil
		if p.client != nil {
			p.client.WriteDone(data, code)
		}
		return
	}

	p.writePos = subwriteEnd
	p.startNextChunk()
}

// PollAlarm drives the programmer's pulse timeout; see timer.Alarm.Poll.
func (p *Programmer) PollAlarm() {
	p.alarm.Poll()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
