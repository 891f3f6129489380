package usb

import (
	"github.com/usbarmory/h1secure/callback"
	"github.com/usbarmory/h1secure/status"
)

// SetupPacket is the 8-byte USB setup packet.
type SetupPacket struct {
	BmRequestType uint8
	BRequest      uint8
	WValue        uint16
	WIndex        uint16
	WLength       uint16
}

const (
	reqGetDescriptor  = 6
	reqSetAddress     = 5
	reqSetConfig      = 9
)

// direction, per bmRequestType bit 7.
type direction int

const (
	hostToDevice direction = iota
	deviceToHost
)

// requestType, per bmRequestType bits 6:5.
type requestType int

const (
	reqStandard requestType = iota
	reqClass
	reqVendor
)

// recipient, per bmRequestType bits 4:0.
type recipient int

const (
	recipDevice recipient = iota
	recipInterface
	recipEndpoint
	recipOther
)

func (s SetupPacket) direction() direction {
	if s.BmRequestType&0x80 != 0 {
		return deviceToHost
	}
	return hostToDevice
}

func (s SetupPacket) requestType() requestType {
	return requestType((s.BmRequestType >> 5) & 0x3)
}

func (s SetupPacket) recipient() recipient {
	return recipient(s.BmRequestType & 0x1f)
}

// setupCase is the interrupt-bit classification of spec.md §4.1's table.
type setupCase int

const (
	caseNone setupCase = iota
	caseA
	caseB
	caseC
	caseD
	caseE
)

// classifySetup decodes the three EP0 interrupt bits into the case tag of
// spec.md §4.1.
func classifySetup(xferCompleted, setupPhaseDone, statusPhaseReceived bool) setupCase {
	switch {
	case xferCompleted && !setupPhaseDone && !statusPhaseReceived:
		return caseA
	case !xferCompleted && setupPhaseDone && !statusPhaseReceived:
		return caseB
	case xferCompleted && setupPhaseDone && !statusPhaseReceived:
		return caseC
	case !xferCompleted && !setupPhaseDone && statusPhaseReceived:
		return caseD
	case xferCompleted && !setupPhaseDone && statusPhaseReceived:
		return caseE
	default:
		return caseNone
	}
}

// handleSetup dispatches a decoded setup packet per spec.md §4.1's matrix:
// recipient/type/direction select the handler. Any combination not named in
// the matrix stalls both FIFOs.
func (c *Controller) handleSetup(s SetupPacket) {
	switch {
	case s.recipient() == recipDevice && s.requestType() == reqStandard && s.direction() == deviceToHost:
		c.standardDeviceToHost(s)

	case s.recipient() == recipDevice && s.requestType() == reqStandard && s.direction() == hostToDevice && s.WLength == 0:
		c.standardNoData(s)

	case s.recipient() == recipInterface && s.requestType() == reqStandard && s.direction() == deviceToHost:
		c.standardInterfaceToHost(s)

	case s.recipient() == recipInterface && s.requestType() == reqClass && s.direction() == hostToDevice:
		c.classHostToInterface(s)

	case s.recipient() == recipInterface && s.requestType() == reqClass && s.direction() == deviceToHost:
		c.classInterfaceToHost(s)

	default:
		c.stall()
	}
}

func (c *Controller) standardDeviceToHost(s SetupPacket) {
	if s.BRequest != reqGetDescriptor {
		c.stall()
		return
	}

	descType := uint8(s.WValue >> 8)
	index := int(s.WValue & 0xff)

	var data []byte
	switch descType {
	case DescriptorDevice:
		data = c.device.Bytes()
	case DescriptorConfiguration:
		data = c.config
	case DescriptorString:
		data = c.strings.Descriptor(index)
	default:
		c.stall()
		return
	}

	if data == nil {
		c.stall()
		return
	}

	c.respond(truncate(data, s.WLength))
}

func (c *Controller) standardNoData(s SetupPacket) {
	switch s.BRequest {
	case reqSetAddress:
		// The hardware defers effect until after the IN handshake;
		// firmware-side state updates immediately and arms EP1 so the
		// device is data-capable once the address takes effect.
		c.pendingAddress = uint8(s.WValue & 0x7f)
		c.addressPending = true
		c.armEP1()
	case reqSetConfig:
		c.configurationValue = uint8(s.WValue)
		c.enumerated.Deliver(status.OK)
		c.enumerated = callback.None
	default:
		c.stall()
		return
	}

	c.ackNoData()
}

func (c *Controller) standardInterfaceToHost(s SetupPacket) {
	if s.BRequest != reqGetDescriptor || uint8(s.WValue>>8) != DescriptorReport {
		c.stall()
		return
	}
	c.respond(truncate(u2fReportDescriptor, s.WLength))
}

// classHostToInterface handles HID class requests without a device-to-host
// data stage (e.g. SetIdle, SetReport). Per spec.md's Non-goals the HID
// class request bodies themselves are out of scope; the device simply
// acknowledges them.
func (c *Controller) classHostToInterface(s SetupPacket) {
	c.ackNoData()
}

// classInterfaceToHost handles HID class requests with a device-to-host
// data stage (e.g. GetIdle, GetReport).
func (c *Controller) classInterfaceToHost(s SetupPacket) {
	c.respond(nil)
}

func truncate(data []byte, max uint16) []byte {
	if int(max) < len(data) {
		return data[:max]
	}
	return data
}
