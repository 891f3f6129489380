package spi

// SFDPTableSize is the 104-byte JESD216A response spec.md §6.2 specifies.
const SFDPTableSize = 104

// JEDEC continuation-code ID bytes this firmware reports to ReadJedecId.
//
// original_source/userspace/otpilot/src/sfdp.rs ships 0x26 0x31 0x20, with
// its own comment flagging those as incorrect OpenTitan manufacturer/device
// bytes. Rather than preserve the typo, this reports OpenTitan Earl Grey's
// published ID bytes 0xef 0x40 0x18 behind four 0x7f continuation codes.
var JedecID = [...]byte{0x7f, 0x7f, 0x7f, 0x7f, 0xef, 0x40, 0x18}

// SFDPParams configures the SFDP table build.
type SFDPParams struct {
	ImageSizeBits         uint32
	StartupAddressMode    AddressMode
	SupportAddressSwitch  bool
	MailboxOffset         uint32
	MailboxSize           uint32
	GoogleCapabilities    uint32
}

// BuildSFDP returns the JESD216A basic parameter table plus the Google
// vendor-extension parameter spec.md §6.2 requires, structured per
// original_source/userspace/otpilot/src/sfdp.rs's header/pointer layout:
// one SFDP header DWORD pair, a basic-table parameter header pointing at
// offset 0x18, a Google parameter header pointing at offset 0x58, then the
// two parameter tables themselves.
func BuildSFDP(p SFDPParams) [SFDPTableSize]byte {
	var t [SFDPTableSize]byte

	copy(t[0:4], []byte{'S', 'F', 'D', 'P'})
	t[4] = 0x05 // minor = JESD216A
	t[5] = 0x01 // major
	t[6] = 0x01 // 1 additional parameter header (2 total)
	t[7] = 0xff

	// Basic Flash Parameter header, pointing at DW6 (byte offset 0x18).
	t[8] = 0x00  // ID LSB: Basic Parameter Table
	t[9] = 0x05  // table minor
	t[10] = 0x01 // table major
	t[11] = 0x10 // table length, 16 DWORDs
	t[12], t[13], t[14] = 0x18, 0x00, 0x00
	t[15] = 0xff // ID MSB: JEDEC

	// Google vendor parameter header, pointing at DW22 (byte offset 0x58).
	t[16] = 0x26 // ID LSB: Google MFG ID
	t[17] = 0x00
	t[18] = 0x01
	t[19] = 0x04 // table length, 4 DWORDs
	t[20], t[21], t[22] = 0x58, 0x00, 0x00
	t[23] = 0x09 // ID MSB: bank 9

	buildBasicTable(t[0x18:0x58], p)
	buildGoogleTable(t[0x58:0x68], p)

	return t
}

func buildBasicTable(basic []byte, p SFDPParams) {
	var addrModeBits byte
	switch p.StartupAddressMode {
	case ThreeByteAddress:
		if p.SupportAddressSwitch {
			addrModeBits = 1
		}
	case FourByteAddress:
		addrModeBits = 2
	}

	basic[0] = 1<<0 | 1<<2 | 1<<4 // 4KiB erase uniform, page>=64B, 0x06 write-enable
	basic[1] = byte(SectorErase4K)
	basic[2] = addrModeBits << 1
	basic[3] = 0

	basic[4] = byte(p.ImageSizeBits)
	basic[5] = byte(p.ImageSizeBits >> 8)
	basic[6] = byte(p.ImageSizeBits >> 16)
	basic[7] = byte(p.ImageSizeBits>>24) & 0x7f

	// 1-1-2 fast read: 8 dummy cycles, opcode 0x3b.
	basic[12] = 0x8
	basic[13] = byte(FastReadDualOutput)

	// Sector Type 1: 4KiB erase.
	basic[28] = 12
	basic[29] = byte(SectorErase4K)
}

func buildGoogleTable(g []byte, p SFDPParams) {
	g[0] = byte(p.MailboxOffset)
	g[1] = byte(p.MailboxOffset >> 8)
	g[2] = byte(p.MailboxOffset >> 16)
	g[3] = byte(p.MailboxOffset >> 24)

	g[4] = byte(p.MailboxSize)
	g[5] = byte(p.MailboxSize >> 8)
	g[6] = byte(p.MailboxSize >> 16)
	g[7] = byte(p.MailboxSize >> 24)

	g[8] = byte(p.GoogleCapabilities)
	g[9] = byte(p.GoogleCapabilities >> 8)
	g[10] = byte(p.GoogleCapabilities >> 16)
	g[11] = byte(p.GoogleCapabilities >> 24)
}
