package usb

import "github.com/usbarmory/h1secure/irq"

// All-endpoint interrupt bits this controller's bottom half checks on entry,
// grounded on original_source/kernel/h1/src/usb/mod.rs's handle_interrupt
// reading device_all_ep_interrupt (AllEndpointInterrupt::OUT0/IN0/OUT1/IN1).
const (
	epIntOUT0 = 1 << 0
	epIntIN0  = 1 << 1
	epIntOUT1 = 1 << 2
	epIntIN1  = 1 << 3
)

// InterruptSource supplies the raw state Controller's bottom half needs each
// time its registered line fires: which endpoints have a pending interrupt,
// the EP0 classification bits plus setup packet, and any freshly arrived EP1
// OUT frame.
type InterruptSource interface {
	AllEndpointInterrupts() uint32
	EP0Status() (xferCompleted, setupPhaseDone, statusPhaseReceived, setupReady bool, setup SetupPacket)
	EP1OutData() []byte
}

// RegisterInterrupt installs this controller's bottom half against router at
// line, per spec.md §2's leaf dependency graph: "USB device controller:
// consumes the register primitive and the interrupt router."
func (c *Controller) RegisterInterrupt(router *irq.Router, line int, src InterruptSource) {
	router.Register(line, func() { c.serviceInterrupt(src) })
}

// serviceInterrupt is the registered bottom half: it reads which endpoints
// have pending interrupts and routes EP0 setup handling or EP1 frame
// completion accordingly.
func (c *Controller) serviceInterrupt(src InterruptSource) {
	pending := src.AllEndpointInterrupts()

	if pending&(epIntOUT0|epIntIN0) != 0 {
		c.HandleInterrupt(src.EP0Status())
	}

	if pending&epIntOUT1 != 0 {
		c.OnEP1OutComplete(src.EP1OutData())
	}

	if pending&epIntIN1 != 0 {
		c.OnEP1InComplete()
	}
}
