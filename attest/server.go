// Package attest consumes the Manticore attestation protocol as the
// black-box request/response library spec.md's Non-goals describe: this
// repo frames and routes Manticore payloads (see spi/mailbox.go) but does
// not implement the protocol itself.
package attest

// Server answers one Manticore request body with one response body. The
// framing (content_type/content_length header) is handled by the caller;
// Server only sees the unwrapped content.
type Server interface {
	Handle(request []byte) (response []byte, err error)
}
