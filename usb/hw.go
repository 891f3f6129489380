//go:build tamago && arm
// +build tamago,arm

package usb

import (
	"github.com/usbarmory/h1secure/internal/reg"
)

// Registers are the subset of the USBOH3USBO2 controller's register map
// Controller drives, per spec.md §4.1's init operation. Grounded on
// _examples/usbarmory-tamago/soc/nxp/usb/bus.go and device.go.
const (
	usbcmd  = 0x140
	usbsts  = 0x144
	usbintr = 0x148
	devaddr = 0x154
	otgsc      = 0x1a4
	usbmode    = 0x1a8
	endptctrl0 = 0x1c0

	endptctrlTXS = 16
	endptctrlRXS = 0

	usbcmdRST = 1
	usbcmdRS  = 0

	usbmodeCM       = 0
	usbmodeCMDevice = 0b10
	usbmodeSLOM     = 3

	otgscOT = 3
)

// ControllerHardware is the tamago&&arm Hardware implementation, the only
// file in this package that touches internal/reg directly.
type ControllerHardware struct {
	Base       uint32
	PHYSelect  uint32
	PHYBase    uint32
}

func (h *ControllerHardware) SetPHY(selector int) {
	reg.Write(h.PHYBase+h.PHYSelect, uint32(selector))
}

func (h *ControllerHardware) Reset() {
	reg.Set(h.Base+usbcmd, usbcmdRST)
	reg.Wait(h.Base+usbcmd, usbcmdRST, 1, 0)

	m := reg.Read(h.Base + usbmode)
	m = (m &^ (0b11 << usbmodeCM)) | (usbmodeCMDevice << usbmodeCM)
	m |= 1 << usbmodeSLOM
	reg.Write(h.Base+usbmode, m)
	reg.Wait(h.Base+usbmode, usbmodeCM, 0b11, usbmodeCMDevice)

	reg.Set(h.Base+otgsc, otgscOT)
	reg.Write(h.Base+usbsts, 0xffffffff)
}

func (h *ControllerHardware) UnmaskInterrupts() {
	reg.Write(h.Base+usbintr, 0xffffffff)
}

func (h *ControllerHardware) ReleaseSoftDisconnect() {
	reg.Set(h.Base+usbcmd, usbcmdRS)
}

func (h *ControllerHardware) SetAddress(addr uint8) {
	reg.Write(h.Base+devaddr, uint32(addr)<<25)
}

func (h *ControllerHardware) Stall(in, out bool) {
	if in {
		reg.Set(h.Base+endptctrl0, endptctrlTXS)
	}
	if out {
		reg.Set(h.Base+endptctrl0, endptctrlRXS)
	}
}
