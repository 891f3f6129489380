// Package nvcounter implements the non-volatile monotonic counter of
// spec.md §4.4: two adjacent flash pages, each counting the number of 4-bit
// nibbles written to zero starting from an erased page, combined into one
// strictly-increasing value with a crash-safe rollover between pages.
//
// Grounded step-for-step on
// original_source/kernel/h1/src/nvcounter/capsule.rs (task states, rollover
// step order and its exact erase_done/write_done continuation logic,
// reproduced in the comment block there) and
// original_source/userspace/nvcounter_test/src/fake_flash.rs (the fake
// hardware semantics this package's own tests build on via flash.FakeHardware).
package nvcounter

import (
	"github.com/usbarmory/h1secure/flash"
	"github.com/usbarmory/h1secure/status"
)

const nibblesPerWord = 8

// CountsPerLowPage is how many increments one page supports before rollover:
// exactly the number of 4-bit nibbles a flash page holds.
const CountsPerLowPage = flash.WordsPerPage * nibblesPerWord

type task int

const (
	taskNone task = iota
	taskInitialize
	taskIncrement
)

// Client is notified when a Counter operation durably lands in flash.
// ReadAndIncrement itself returns the pre-increment value synchronously
// (spec.md §4.4); IncrementDone only confirms that value is now persisted.
type Client interface {
	InitializeDone(code status.Code)
	IncrementDone(code status.Code)
}

// Counter is the NV counter of spec.md §4.4, built on one flash.User.
type Counter struct {
	user *flash.User
	high int
	low  int

	client Client
	task   task
}

// New registers a Counter with mux, using the two given flash page numbers
// as the high and low pages.
func New(mux *flash.Mux, highPage, lowPage int) *Counter {
	c := &Counter{high: highPage, low: lowPage}
	c.user = mux.NewUser(c)
	return c
}

// SetClient registers the durability-confirmation client.
func (c *Counter) SetClient(client Client) {
	c.client = client
}

// Idle reports whether no Initialize/ReadAndIncrement call is outstanding.
func (c *Counter) Idle() bool {
	return c.task == taskNone
}

// Value reads the counter's current committed value without mutating
// anything.
func (c *Counter) Value() uint32 {
	return counterValue(c.readCount(c.high), c.readCount(c.low))
}

// Initialize erases both pages, leaving the counter at zero. Concurrent
// calls while another operation is outstanding return Busy.
func (c *Counter) Initialize() error {
	if c.task != taskNone {
		return status.New(status.Busy, "nvcounter.Initialize")
	}

	c.task = taskInitialize

	if err := c.user.Erase(c.low); err != nil {
		c.task = taskNone
		return err
	}

	return nil
}

// ReadAndIncrement returns the counter's pre-increment value and begins
// committing the increment to flash. Client.IncrementDone later confirms
// durability. Concurrent calls return Busy.
func (c *Counter) ReadAndIncrement() (uint32, error) {
	if c.task != taskNone {
		return 0, status.New(status.Busy, "nvcounter.ReadAndIncrement")
	}

	high := c.readCount(c.high)
	low := c.readCount(c.low)
	value := counterValue(high, low)

	if err := c.advance(high, low); err != nil {
		return 0, err
	}

	c.task = taskIncrement

	return value, nil
}

// advance issues the one flash operation that makes progress toward
// completing the pending increment, or toward finishing a rollover left
// unfinished by a previous call -- the three-step rollover procedure of
// spec.md §4.4, plus the ordinary single-step increment.
func (c *Counter) advance(high, low int) error {
	switch {
	case high%2 == 1 && low == 0:
		// Rollover step 3: write high even. May be needed whether or
		// not a previous call already started it; re-targeting the
		// same nibble position is idempotent.
		return c.writeNibble(c.high, high)
	case high%2 == 1:
		// Rollover step 2: erase low.
		return c.user.Erase(c.low)
	case low >= CountsPerLowPage:
		// Rollover step 1: write high odd.
		return c.writeNibble(c.high, high)
	default:
		// Ordinary increment: write low.
		return c.writeNibble(c.low, low)
	}
}

// EraseDone implements flash.UserClient.
func (c *Counter) EraseDone(code status.Code) {
	if code != status.OK {
		c.finishTask(code)
		return
	}

	if c.task == taskInitialize {
		if c.pageEmpty(c.high) {
			c.finishTask(status.OK)
			return
		}
		if err := c.user.Erase(c.high); err != nil {
			c.finishTask(status.Of(err))
		}
		return
	}

	// The low page just finished erasing: that is always rollover step
	// 2, whether issued directly by ReadAndIncrement or left running in
	// the background by a previous call's rollover step 1. Continue into
	// step 3.
	if err := c.writeNibble(c.high, c.readCount(c.high)); err != nil {
		c.finishTask(status.Of(err))
	}
}

// WriteDone implements flash.UserClient.
func (c *Counter) WriteDone(_ []uint32, code status.Code) {
	if code != status.OK {
		if c.task == taskIncrement {
			c.finishTask(code)
		}
		return
	}

	if c.task != taskIncrement {
		// A background rollover write landed with nobody waiting on
		// it; nothing further to do until the next call observes the
		// new state.
		return
	}

	if c.pageEmpty(c.low) {
		// This write just finished rollover step 3 (high now even,
		// low freshly erased): the increment this task represents
		// still needs to land, now that low has room again.
		if err := c.writeNibble(c.low, c.readCount(c.low)); err != nil {
			c.finishTask(status.Of(err))
		}
		return
	}

	// Step Incr1 or rollover step 1 just finished.
	if c.pageFull(c.low) && c.readCount(c.high)%2 == 1 {
		// Rollover step 1 just finished: kick off step 2 in the
		// background. The client does not wait for it -- spec.md
		// §4.4 allows the rollover to continue opportunistically
		// after this call's own completion is reported.
		c.user.Erase(c.low)
	}

	c.finishTask(status.OK)
}

func (c *Counter) finishTask(code status.Code) {
	t := c.task
	c.task = taskNone

	if c.client == nil {
		return
	}

	switch t {
	case taskInitialize:
		c.client.InitializeDone(code)
	case taskIncrement:
		c.client.IncrementDone(code)
	}
}

func (c *Counter) pageEmpty(page int) bool {
	return c.readCount(page) == 0
}

func (c *Counter) pageFull(page int) bool {
	return c.readCount(page) >= CountsPerLowPage
}

// readCount scans a page's words and counts how many nibbles have been
// written to zero.
func (c *Counter) readCount(page int) int {
	base := page * flash.WordsPerPage

	count := 0
	for i := 0; i < flash.WordsPerPage; i++ {
		w, _ := c.user.Read(base + i)
		for shift := 0; shift < 32; shift += 4 {
			if (w>>shift)&0xF == 0 {
				count++
			}
		}
	}

	return count
}

// writeNibble clears the nibble at position count within page (0-indexed
// from the start of the page), leaving every other bit at its erased value.
func (c *Counter) writeNibble(page, count int) error {
	if count >= CountsPerLowPage {
		return status.New(status.InsufficientBuffer, "nvcounter: page full")
	}

	wordOffset := count / nibblesPerWord
	nibbleShift := uint(count%nibblesPerWord) * 4

	value := uint32(0xFFFFFFFF) &^ (uint32(0xF) << nibbleShift)
	target := page*flash.WordsPerPage + wordOffset

	return c.user.Write(target, []uint32{value})
}

// counterValue combines the two page counts per spec.md §4.4. An odd high
// count marks a rollover in progress: the value is then the one the
// completed rollover yields, whatever state the low page is in, so the
// counter never repeats or goes backwards mid-rollover.
func counterValue(high, low int) uint32 {
	if high%2 == 1 {
		return uint32(((high + 1) / 2) * (CountsPerLowPage + 1))
	}
	return uint32((high/2)*(CountsPerLowPage+1) + low)
}
