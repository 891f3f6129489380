// Package status defines the error taxonomy shared by every core component,
// grounded on spec.md's "Error taxonomy" table: synchronous rejections and
// asynchronous callback outcomes both report one of these kinds rather than
// an arbitrary error type, so callers can switch on Code without inspecting
// message text.
package status

import "fmt"

// Code is an error kind, not a wrapped error type: components compare
// against a Code instead of parsing a message.
type Code int

const (
	// OK indicates success; used only as a callback parameter, never
	// returned synchronously.
	OK Code = iota
	// InvalidArgument is an out-of-range address, unsupported enum value,
	// or length underflow/overflow.
	InvalidArgument
	// InsufficientBuffer is a caller buffer too small, or a hardware
	// FIFO/descriptor not currently writable.
	InsufficientBuffer
	// Busy is a concurrent operation already in flight on the resource.
	Busy
	// NotPermitted is the caller not being the current owner of a
	// single-user resource.
	NotPermitted
	// Unsupported is a feature not implemented for the current
	// configuration.
	Unsupported
	// HardwareFault is smart-programming retry exhaustion, a DCrypto
	// fault, or a descriptor arriving with unexpected flags.
	HardwareFault
	// Timeout is a pulse timer firing without operation completion.
	Timeout
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case InvalidArgument:
		return "invalid argument"
	case InsufficientBuffer:
		return "insufficient buffer"
	case Busy:
		return "busy"
	case NotPermitted:
		return "not permitted"
	case Unsupported:
		return "unsupported"
	case HardwareFault:
		return "hardware fault"
	case Timeout:
		return "timeout"
	default:
		return "unknown status"
	}
}

// Error implements the error interface so a bare Code can be returned or
// compared with errors.Is against a wrapped Error.
func (c Code) Error() string {
	return c.String()
}

// Error pairs a Code with the operation that produced it, matching the
// teacher's own fmt.Errorf("...: %#x", ...) diagnostic style rather than a
// bespoke stack-trace-carrying error type.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, status.Busy) to match a wrapped *Error.
func (e *Error) Is(target error) bool {
	code, ok := target.(Code)
	return ok && code == e.Code
}

// New builds an *Error for op with no underlying cause.
func New(code Code, op string) error {
	return &Error{Code: code, Op: op}
}

// Wrap builds an *Error for op around an underlying cause.
func Wrap(code Code, op string, err error) error {
	return &Error{Code: code, Op: op, Err: err}
}

// Of extracts the Code out of a plain Code, an *Error, or returns
// HardwareFault for anything else (an error this package didn't mint is
// always treated as the most severe kind, never silently OK).
func Of(err error) Code {
	if err == nil {
		return OK
	}

	switch v := err.(type) {
	case Code:
		return v
	case *Error:
		return v.Code
	default:
		return HardwareFault
	}
}
