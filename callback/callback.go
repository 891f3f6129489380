// Package callback implements the process-callback shim spec.md §9 calls
// for: asynchronous results are delivered back to the owning process via a
// (function, argument) tuple recorded at registration time, never via shared
// ownership of the process. The peripheral holds a Handle, not a reference
// to the process itself, mirroring the teacher's SetHIDClient/set_client
// weak-back-reference idiom (soc/nxp/usb/device.go) applied generically so
// flash, the NV counter, and USB can all hand results back the same way.
package callback

import "github.com/usbarmory/h1secure/status"

// Func is invoked exactly once per accepted request, from the bottom half
// that completed it, with the operation outcome and the argument the
// requester supplied at registration time.
type Func func(code status.Code, arg uint32)

// Handle is a registered (callback, argument) pair.
type Handle struct {
	fn  Func
	arg uint32
}

// None is the zero Handle: Deliver on it is a no-op.
var None = Handle{}

// New registers fn to be invoked with arg alongside every outcome delivered
// through this Handle.
func New(fn Func, arg uint32) Handle {
	return Handle{fn: fn, arg: arg}
}

// Valid reports whether a callback function was actually registered.
func (h Handle) Valid() bool {
	return h.fn != nil
}

// Deliver invokes the registered callback, if any, with code.
func (h Handle) Deliver(code status.Code) {
	if h.fn != nil {
		h.fn(code, h.arg)
	}
}
