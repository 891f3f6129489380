package usb

import (
	"github.com/usbarmory/h1secure/callback"
	"github.com/usbarmory/h1secure/status"
)

// Hardware is the narrow register-level contract Controller drives during
// initialization and interrupt handling. The concrete tamago&&arm
// implementation lives in usb/hw.go; Controller itself never touches
// registers directly, so it is host-testable via a fake.
type Hardware interface {
	SetPHY(selector int)
	Reset()
	UnmaskInterrupts()
	ReleaseSoftDisconnect()
	SetAddress(addr uint8)
	Stall(in, out bool)
}

// HIDClient receives EP1 frame events, per spec.md §4.1.
type HIDClient interface {
	FrameReceived(frame []byte)
	FrameTransmitted()
}

// Controller implements the USB device controller of spec.md §4.1.
type Controller struct {
	hw Hardware

	device  DeviceDescriptor
	strings StringTable
	config  []byte

	address            uint8
	pendingAddress     uint8
	addressPending     bool
	configurationValue uint8

	ep0Out *Ring
	ep0In  *Ring
	ep1Out *Ring
	ep1In  *Ring

	hid HIDClient

	// enumerated fires once, the first time SetConfiguration is
	// processed, handing the host back to whatever process is waiting
	// for enumeration to complete rather than holding a direct reference
	// to it.
	enumerated callback.Handle

	// LastINData and Stalled record Controller's most recent EP0 action,
	// for tests; real hardware transmission/stall sequencing happens
	// through Hardware.
	LastINData []byte
	Stalled    bool
}

// Init wires up the controller per spec.md §4.1's init operation.
func Init(hw Hardware, device DeviceDescriptor, strings StringTable) *Controller {
	c := &Controller{
		hw:      hw,
		device:  device,
		strings: strings,
		config:  configurationBlob(),
		ep0Out:  NewRing(2, 64),
		ep0In:   NewRing(4, 64),
		ep1Out:  NewRing(1, 64),
		ep1In:   NewRing(1, 64),
	}

	hw.SetPHY(0)
	hw.Reset()
	hw.UnmaskInterrupts()
	hw.ReleaseSoftDisconnect()

	return c
}

// SetHIDClient registers the EP1 frame client.
func (c *Controller) SetHIDClient(client HIDClient) {
	c.hid = client
}

// NotifyEnumerated registers fn to be invoked, with arg, the first time the
// host issues SetConfiguration.
func (c *Controller) NotifyEnumerated(fn callback.Func, arg uint32) {
	c.enumerated = callback.New(fn, arg)
}

// PutFrame queues a 64-byte IN frame on EP1. It fails with Busy if the IN
// descriptor is not writable.
func (c *Controller) PutFrame(frame []byte) error {
	desc := c.ep1In.Next()
	if desc.Owner != HostReady {
		return status.New(status.Busy, "usb.PutFrame")
	}

	n := copy(desc.Data, frame)
	desc.Len = n
	desc.Owner = DmaBusy

	return nil
}

// GetFrame copies the most recent EP1 OUT frame into out, returning the
// number of bytes copied.
func (c *Controller) GetFrame(out []byte) int {
	desc := &c.ep1Out.descs[c.ep1Out.LastIndex()]
	return copy(out, desc.Data[:desc.Len])
}

// EnableRx rearms the EP1 OUT descriptor.
func (c *Controller) EnableRx() {
	c.ep1Out.Rearm(c.ep1Out.NextIndex())
}

// OnEP1OutComplete is invoked on an EP1 OUT TransferCompleted interrupt: it
// advances the OUT ring and notifies the HID client.
func (c *Controller) OnEP1OutComplete(data []byte) {
	desc := c.ep1Out.Next()
	n := copy(desc.Data, data)
	desc.Len = n
	desc.Owner = DmaDone

	c.ep1Out.Advance()

	if c.hid != nil {
		c.hid.FrameReceived(desc.Data[:n])
	}
}

// OnEP1InComplete is invoked on an EP1 IN TransferCompleted interrupt: it
// frees the descriptor and notifies the HID client.
func (c *Controller) OnEP1InComplete() {
	desc := c.ep1In.Next()
	desc.Owner = HostReady
	c.ep1In.Advance()

	if c.hid != nil {
		c.hid.FrameTransmitted()
	}
}

// Reset implements the reset-interrupt handling of spec.md §4.1: device
// address is cleared, OUT descriptors rearmed, and the controller returns
// to waiting for a setup packet.
func (c *Controller) Reset() {
	c.address = 0
	c.pendingAddress = 0
	c.addressPending = false
	c.configurationValue = 0
	c.enumerated = callback.None
	c.ep0Out.Rearm(c.ep0Out.NextIndex())
	c.hw.Reset()
}

// HandleInterrupt is the EP0 bottom half of spec.md §4.1: it classifies the
// three interrupt bits into a case tag and dispatches accordingly.
func (c *Controller) HandleInterrupt(xferCompleted, setupPhaseDone, statusPhaseReceived, setupReady bool, setup SetupPacket) {
	switch classifySetup(xferCompleted, setupPhaseDone, statusPhaseReceived) {
	case caseA, caseC:
		if setupReady {
			c.Stalled = false
			c.handleSetup(setup)
			return
		}
		c.rearmEP0Out()
	case caseB:
		c.stall()
	default:
		c.rearmEP0Out()
	}
}

func (c *Controller) rearmEP0Out() {
	c.ep0Out.Rearm(c.ep0Out.NextIndex())
}

func (c *Controller) armEP1() {
	c.ep1Out.Rearm(c.ep1Out.NextIndex())
	c.ep1In.Rearm(c.ep1In.NextIndex())
}

func (c *Controller) respond(data []byte) {
	c.LastINData = data
	desc := c.ep0In.Next()
	copy(desc.Data, data)
	desc.Len = len(data)
	c.ep0In.Advance()
}

func (c *Controller) ackNoData() {
	if c.addressPending {
		c.address = c.pendingAddress
		c.hw.SetAddress(c.address)
		c.addressPending = false
	}
}

func (c *Controller) stall() {
	c.Stalled = true
	c.hw.Stall(true, true)
}
