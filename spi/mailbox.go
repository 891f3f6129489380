package spi

import (
	"encoding/binary"

	"github.com/usbarmory/h1secure/attest"
	"github.com/usbarmory/h1secure/crypto"
	"github.com/usbarmory/h1secure/status"
)

// ContentType identifies the body of a mailbox message, per spec.md §4.7 /
// §6.3.
type ContentType byte

const (
	ContentManticore ContentType = 1
	// ContentCryptoSelfTest carries a single-byte accelerator self-test
	// operation code; the response is the raw accelerator output, or a
	// fault status if the accelerator reports one. This is the mailbox's
	// only consumer of the crypto.Accelerator contract -- the engine
	// itself is out of scope, only the fault-reporting shape is
	// exercised here.
	ContentCryptoSelfTest ContentType = 2
)

const mailboxHeaderSize = 3

// Mailbox is the hardware mailbox of spec.md §3: a carve-out within the
// advertised flash address space. Reads are served from on-chip RAM; writes
// are parsed as framed messages and routed to firmware.
type Mailbox struct {
	ram      []byte
	outbound []byte
	server   attest.Server
	accel    crypto.Accelerator
}

// NewMailbox returns a Mailbox of size bytes, served by server for
// ContentManticore messages.
func NewMailbox(size int, server attest.Server) *Mailbox {
	return &Mailbox{ram: make([]byte, size), server: server}
}

// SetAccelerator registers the accelerator ContentCryptoSelfTest messages
// are dispatched to. Without one, such messages are ignored like any other
// unknown content type.
func (m *Mailbox) SetAccelerator(accel crypto.Accelerator) {
	m.accel = accel
}

// Read returns size bytes from the mailbox RAM starting at offset.
func (m *Mailbox) Read(offset, size int) []byte {
	if offset < 0 || size < 0 || offset+size > len(m.ram) {
		return nil
	}
	return append([]byte(nil), m.ram[offset:offset+size]...)
}

// Write handles a mailbox-targeted PageProgram payload: it decodes the
// 3-byte header of spec.md §6.3 and, for a Manticore message, dispatches to
// the attestation server and stages the framed reply for the device-to-host
// path. Unknown content types are ignored, matching spec.md §4.7.
func (m *Mailbox) Write(data []byte) error {
	copy(m.ram, data)

	if len(data) < mailboxHeaderSize {
		return status.New(status.InvalidArgument, "spi.Mailbox.Write: short header")
	}

	contentType := ContentType(data[0])
	contentLength := binary.BigEndian.Uint16(data[1:3])

	if int(contentLength) > len(data)-mailboxHeaderSize {
		return status.New(status.InvalidArgument, "spi.Mailbox.Write: content_length exceeds payload")
	}

	request := data[mailboxHeaderSize : mailboxHeaderSize+int(contentLength)]

	switch contentType {
	case ContentManticore:
		response, err := m.server.Handle(request)
		if err != nil {
			return status.Wrap(status.HardwareFault, "spi.Mailbox.Write", err)
		}
		m.outbound = frame(ContentManticore, response)
	case ContentCryptoSelfTest:
		return m.dispatchSelfTest(request)
	}

	return nil
}

func (m *Mailbox) dispatchSelfTest(request []byte) error {
	if m.accel == nil || len(request) == 0 {
		return nil
	}

	out := make([]byte, len(request))
	n, err := m.accel.Compute(string(request[:1]), request[1:], out)
	if err != nil {
		return status.Wrap(status.HardwareFault, "spi.Mailbox.dispatchSelfTest", err)
	}

	m.outbound = frame(ContentCryptoSelfTest, out[:n])

	return nil
}

// TakeOutbound returns and clears whatever response is staged for the
// device-to-host channel.
func (m *Mailbox) TakeOutbound() []byte {
	out := m.outbound
	m.outbound = nil
	return out
}

func frame(t ContentType, content []byte) []byte {
	out := make([]byte, mailboxHeaderSize+len(content))
	out[0] = byte(t)
	binary.BigEndian.PutUint16(out[1:3], uint16(len(content)))
	copy(out[mailboxHeaderSize:], content)
	return out
}
