// Package usb implements the USB 2.0 full-speed device controller of
// spec.md §4.1: EP0 enumeration handled entirely internally, EP1 HID frames
// forwarded to a registered client.
//
// Grounded on
// _examples/usbarmory-tamago/soc/imx6/usb/descriptor.go (descriptor struct
// shapes and Bytes() serialization style) and setup.go/device.go (setup
// classifier and Start loop), adapted from that driver's polling dQH/dTD
// i.MX6 descriptor-queue model to the ownership-bit DMA ring spec.md §3
// describes (see ring.go) since the two hardware descriptor formats are not
// compatible.
package usb

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// Standard USB descriptor type codes.
const (
	DescriptorDevice        = 1
	DescriptorConfiguration = 2
	DescriptorString        = 3
	DescriptorInterface     = 4
	DescriptorEndpoint      = 5
	DescriptorHID           = 0x21
	DescriptorReport        = 0x22
)

const (
	deviceDescriptorLength   = 18
	configurationHeaderLen   = 9
	interfaceDescriptorLen   = 9
	hidDescriptorLen         = 9
	endpointDescriptorLen    = 7
	configurationTotalLength = configurationHeaderLen + interfaceDescriptorLen + hidDescriptorLen + 2*endpointDescriptorLen // 41, spec.md §6.1
)

// DeviceDescriptor is the 18-byte USB2.0 standard device descriptor.
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	BcdUSB            uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize     uint8
	VendorID          uint16
	ProductID         uint16
	Device            uint16
	Manufacturer      uint8
	Product           uint8
	SerialNumber      uint8
	NumConfigurations uint8
}

// NewDeviceDescriptor returns a device descriptor for the given identity,
// per spec.md §4.1's init parameters.
func NewDeviceDescriptor(class, subClass, protocol uint8, vendorID, productID uint16) DeviceDescriptor {
	return DeviceDescriptor{
		Length:            deviceDescriptorLength,
		DescriptorType:    DescriptorDevice,
		BcdUSB:            0x0200,
		DeviceClass:       class,
		DeviceSubClass:    subClass,
		DeviceProtocol:    protocol,
		MaxPacketSize:     64,
		VendorID:          vendorID,
		ProductID:         productID,
		Manufacturer:      1,
		Product:           2,
		SerialNumber:      3,
		NumConfigurations: 1,
	}
}

// Bytes serializes the descriptor in USB wire format (little-endian).
func (d DeviceDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

// configurationBlob assembles the fixed configuration descriptor layout of
// spec.md §6.1: configuration + HID interface + HID device + OUT endpoint +
// IN endpoint, 41 bytes total with wTotalLength patched in.
func configurationBlob() []byte {
	buf := new(bytes.Buffer)

	// Configuration descriptor.
	binary.Write(buf, binary.LittleEndian, uint8(configurationHeaderLen))
	binary.Write(buf, binary.LittleEndian, uint8(DescriptorConfiguration))
	binary.Write(buf, binary.LittleEndian, uint16(configurationTotalLength))
	binary.Write(buf, binary.LittleEndian, uint8(1)) // NumInterfaces
	binary.Write(buf, binary.LittleEndian, uint8(1)) // ConfigurationValue
	binary.Write(buf, binary.LittleEndian, uint8(0)) // Configuration (string index)
	binary.Write(buf, binary.LittleEndian, uint8(0x80))
	binary.Write(buf, binary.LittleEndian, uint8(250))

	// HID interface descriptor.
	binary.Write(buf, binary.LittleEndian, uint8(interfaceDescriptorLen))
	binary.Write(buf, binary.LittleEndian, uint8(DescriptorInterface))
	binary.Write(buf, binary.LittleEndian, uint8(0)) // InterfaceNumber
	binary.Write(buf, binary.LittleEndian, uint8(0)) // AlternateSetting
	binary.Write(buf, binary.LittleEndian, uint8(2)) // NumEndpoints
	binary.Write(buf, binary.LittleEndian, uint8(0x03)) // HID class
	binary.Write(buf, binary.LittleEndian, uint8(0))
	binary.Write(buf, binary.LittleEndian, uint8(0))
	binary.Write(buf, binary.LittleEndian, uint8(0))

	// HID device descriptor.
	binary.Write(buf, binary.LittleEndian, uint8(hidDescriptorLen))
	binary.Write(buf, binary.LittleEndian, uint8(DescriptorHID))
	binary.Write(buf, binary.LittleEndian, uint16(0x0111)) // bcdHID
	binary.Write(buf, binary.LittleEndian, uint8(0))       // country code
	binary.Write(buf, binary.LittleEndian, uint8(1))       // num descriptors
	binary.Write(buf, binary.LittleEndian, uint8(DescriptorReport))
	binary.Write(buf, binary.LittleEndian, uint16(len(u2fReportDescriptor)))

	// OUT endpoint descriptor.
	writeEndpoint(buf, 0x01)
	// IN endpoint descriptor.
	writeEndpoint(buf, 0x81)

	return buf.Bytes()
}

func writeEndpoint(buf *bytes.Buffer, address uint8) {
	binary.Write(buf, binary.LittleEndian, uint8(endpointDescriptorLen))
	binary.Write(buf, binary.LittleEndian, uint8(DescriptorEndpoint))
	binary.Write(buf, binary.LittleEndian, address)
	binary.Write(buf, binary.LittleEndian, uint8(3)) // interrupt transfer
	binary.Write(buf, binary.LittleEndian, uint16(64))
	binary.Write(buf, binary.LittleEndian, uint8(2)) // bInterval
}

// u2fReportDescriptor is the hard-coded FIDO U2F HID report descriptor
// spec.md §4.1 names for GetDescriptor(Report).
var u2fReportDescriptor = []byte{
	0x06, 0xd0, 0xf1, // Usage Page (FIDO Alliance)
	0x09, 0x01, // Usage (U2F HID Authenticator Device)
	0xa1, 0x01, // Collection (Application)
	0x09, 0x20, //   Usage (Input Report Data)
	0x15, 0x00, //   Logical Minimum (0)
	0x26, 0xff, 0x00, //   Logical Maximum (255)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x40, //   Report Count (64)
	0x81, 0x02, //   Input (Data, Var, Abs)
	0x09, 0x21, //   Usage (Output Report Data)
	0x15, 0x00, //   Logical Minimum (0)
	0x26, 0xff, 0x00, //   Logical Maximum (255)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x40, //   Report Count (64)
	0x91, 0x02, //   Output (Data, Var, Abs)
	0xc0, // End Collection
}

// StringTable holds the language + UTF-16LE string descriptors spec.md
// §6.1 names, indexed per usual USB convention: index 0 is the language-ID
// descriptor.
type StringTable struct {
	LanguageID   uint16
	Manufacturer string
	Product      string
	Serial       string
	Interface    string
	Platform     string
	Board        string
}

// Descriptor returns the wire-format string descriptor for index, or nil
// for an out-of-range index.
func (t StringTable) Descriptor(index int) []byte {
	if index == 0 {
		buf := new(bytes.Buffer)
		binary.Write(buf, binary.LittleEndian, uint8(4))
		binary.Write(buf, binary.LittleEndian, uint8(DescriptorString))
		binary.Write(buf, binary.LittleEndian, t.LanguageID)
		return buf.Bytes()
	}

	strs := []string{"", t.Manufacturer, t.Product, t.Serial, t.Interface, t.Platform, t.Board}
	if index < 1 || index >= len(strs) {
		return nil
	}

	encoded := utf16.Encode([]rune(strs[index]))
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint8(2+2*len(encoded)))
	binary.Write(buf, binary.LittleEndian, uint8(DescriptorString))
	binary.Write(buf, binary.LittleEndian, encoded)

	return buf.Bytes()
}
