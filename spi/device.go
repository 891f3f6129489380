// Package spi implements the SPI passthrough filter of spec.md §4.5-§4.7:
// to an external host it impersonates a flash chip; to the downstream flash
// it forwards commands; a carved-out mailbox region is routed to
// firmware instead of the downstream bus.
//
// Grounded on original_source/kernel/h1/src/spi_device.rs (address
// remapping, busy/WEL bits, command FIFO, filter rule table) and
// original_source/kernel/h1/src/spi_host.rs (the forwarder in host.go).
package spi

import "github.com/usbarmory/h1secure/status"

// Config fixes a Device's address-space geometry, per spec.md §4.5.
type Config struct {
	VirtualBase        uint32
	VirtualSize        uint32
	PhysicalBase       uint32
	MailboxOffset      uint32 // relative to VirtualBase; spec.md default 0xf00000
	MailboxSize        uint32 // spec.md default 256
	GoogleCapabilities uint32 // reported verbatim in the SFDP Google parameter table
}

// Device is the SPI passthrough filter. It owns the filter rule table, the
// mailbox, the busy/WEL/address-mode bits, and forwards commands to a
// Forwarder. The rule table is held for installation and inspection only;
// command dispatch does not evaluate it.
type Device struct {
	cfg Config

	filter    Filter
	mailbox   *Mailbox
	forwarder *Forwarder

	busy     bool
	wel      bool
	addrMode AddressMode
}

// NewDevice returns a Device forwarding non-mailbox commands through
// forwarder and routing mailbox writes to mailbox.
func NewDevice(cfg Config, mailbox *Mailbox, forwarder *Forwarder) *Device {
	d := &Device{cfg: cfg, mailbox: mailbox, forwarder: forwarder}
	d.filter.InstallFourByteReadRules()
	d.addrMode = FourByteAddress
	return d
}

// Filter exposes the rule table for installation/inspection.
func (d *Device) Filter() *Filter { return &d.filter }

// Busy reports the device's BUSY status bit.
func (d *Device) Busy() bool { return d.busy }

// WriteEnabled reports the device's WEL status bit.
func (d *Device) WriteEnabled() bool { return d.wel }

// remap maps a host-visible virtual address into either a mailbox-relative
// offset or a downstream physical address, per spec.md §4.5's address
// remapper.
func (d *Device) remap(addr uint32) (mailboxOffset uint32, inMailbox bool, physical uint32) {
	offset := addr - d.cfg.VirtualBase

	mbBase := d.cfg.MailboxOffset
	if offset >= mbBase && offset < mbBase+d.cfg.MailboxSize {
		return offset - mbBase, true, 0
	}

	return 0, false, d.cfg.PhysicalBase + (offset % d.cfg.VirtualSize)
}

// HandleCommand runs the command dispatch table of spec.md §4.5: it
// classifies the target address and either services a mailbox write, issues
// a passthrough write-enable-gated forward, or fails for unsupported
// opcodes. It does not consult the filter rule table: no opcode is rewritten
// or blocked by it, here or in ServiceRead.
func (d *Device) HandleCommand(opcode Opcode, addr uint32, payload []byte) error {
	if isBusyOpcode(opcode) {
		d.busy = true
	}

	switch opcode {
	case Enter4ByteAddressMode:
		d.addrMode = FourByteAddress
		return nil
	case Exit4ByteAddressMode:
		d.addrMode = ThreeByteAddress
		return nil

	case WriteEnable:
		d.wel = true
		return nil
	case WriteDisable:
		d.wel = false
		return nil

	case ReadStatus, ReadJedecID, ReadSFDP, NormalRead, FastRead, FastReadDualOutput, FastRead4B:
		// Reads never set BUSY or WEL; the response data itself is
		// produced by ServiceRead, which the caller invokes once the
		// command phase here returns.
		return nil

	case PageProgram:
		return d.dispatchWrite(opcode, addr, payload)

	case SectorErase4K, BlockErase32K, BlockErase64K, ChipErase, ChipEraseAlt:
		return d.dispatchWrite(opcode, addr, nil)

	default:
		return status.New(status.Unsupported, "spi.Device.HandleCommand: unknown opcode")
	}
}

// ClearBusy clears the BUSY status bit set by Enter4ByteAddressMode or
// Exit4ByteAddressMode. Per spec.md §4.5, hardware never clears BUSY on its
// own for a busy opcode; firmware calls this once it has finished servicing
// the address-mode switch.
func (d *Device) ClearBusy() {
	d.busy = false
}

// ServiceRead produces the response data for a read-family opcode, once
// HandleCommand's command phase has returned. length is the number of bytes
// the host clocked out; addr is interpreted per opcode: a byte offset into
// the SFDP table for ReadSFDP, ignored for ReadJedecID and ReadStatus, and a
// remapped address for the flash/mailbox read opcodes.
func (d *Device) ServiceRead(opcode Opcode, addr uint32, length int) ([]byte, error) {
	switch opcode {
	case ReadStatus:
		return []byte{d.statusByte()}, nil

	case ReadJedecID:
		return sliceOrFull(JedecID[:], int(addr), length), nil

	case ReadSFDP:
		table := BuildSFDP(d.sfdpParams())
		return sliceOrFull(table[:], int(addr), length), nil

	case NormalRead, FastRead, FastReadDualOutput, FastRead4B:
		offset, inMailbox, physical := d.remap(addr)
		if inMailbox {
			return d.mailbox.Read(int(offset), length), nil
		}
		return d.forwarder.Read(physical, length)

	default:
		return nil, status.New(status.Unsupported, "spi.Device.ServiceRead: opcode is not a read")
	}
}

func (d *Device) statusByte() byte {
	var b byte
	if d.busy {
		b |= 1 << 0 // WIP
	}
	if d.wel {
		b |= 1 << 1 // WEL
	}
	return b
}

func (d *Device) sfdpParams() SFDPParams {
	return SFDPParams{
		ImageSizeBits:        d.cfg.VirtualSize * 8,
		StartupAddressMode:   d.addrMode,
		SupportAddressSwitch: true,
		MailboxOffset:        d.cfg.MailboxOffset,
		MailboxSize:          d.cfg.MailboxSize,
		GoogleCapabilities:   d.cfg.GoogleCapabilities,
	}
}

// sliceOrFull returns length bytes of data starting at offset, zero-padded
// past the end; length <= 0 means "to the end of data".
func sliceOrFull(data []byte, offset, length int) []byte {
	if offset < 0 || offset > len(data) {
		offset = len(data)
	}
	if length <= 0 {
		length = len(data) - offset
	}

	out := make([]byte, length)
	end := offset + length
	if end > len(data) {
		end = len(data)
	}
	copy(out, data[offset:end])

	return out
}

func (d *Device) dispatchWrite(opcode Opcode, addr uint32, payload []byte) error {
	// HandleCommand already set BUSY via isBusyOpcode; for writes and
	// erases this firmware path clears BUSY and WEL itself once the
	// command has been serviced or dropped, so no ClearBusy call follows.
	defer d.clearBusyWEL()

	offset, inMailbox, physical := d.remap(addr)

	if inMailbox {
		if opcode != PageProgram {
			// Erases targeting the mailbox are a documented no-op.
			return nil
		}
		if !d.wel {
			return nil
		}
		return d.mailbox.Write(payload[:minInt(len(payload), int(d.cfg.MailboxSize-offset))])
	}

	if !d.wel {
		return nil
	}

	// The filter rule table rewrites read opcodes only (spec.md §6.2);
	// writes and erases forward to the downstream bus verbatim.
	return d.forwarder.Forward(opcode, physical, payload)
}

func (d *Device) clearBusyWEL() error {
	d.busy = false
	d.wel = false
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
