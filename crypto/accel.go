// Package crypto exposes the cryptographic accelerators (SHA, AES, RSA, the
// DCrypto bignum engine) as opaque contracts only: per spec.md's Non-goals
// these primitives themselves are out of scope, but callers elsewhere in
// this repo (the mailbox's crypto self-test message in spi/mailbox.go) need
// a narrow interface to invoke them and to report an accelerator failure.
package crypto

import "github.com/usbarmory/h1secure/status"

// Accelerator is the contract a cryptographic accelerator (hash, cipher, or
// bignum engine) satisfies. Op identifies the requested operation in a way
// meaningful to the concrete accelerator; in and out are accelerator-defined
// byte encodings.
type Accelerator interface {
	// Compute runs op against in, writing the result into out and
	// returning the number of bytes written.
	Compute(op string, in []byte, out []byte) (int, error)

	// Fault reports whether the accelerator's internal state machine has
	// reached a state driver code cannot interpret. No code in this repo
	// calls Fault: spi.Mailbox reports a failed Compute as a
	// HardwareFault error and does not panic.
	Fault() bool
}

// FaultError wraps an accelerator fault as a HardwareFault status, the
// taxonomy spec.md §7 names for this condition.
func FaultError(op string) error {
	return status.New(status.HardwareFault, "crypto."+op)
}
