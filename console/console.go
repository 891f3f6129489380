// Package console provides the diagnostic logging surface every other
// component uses. The teacher never reaches for a structured logging
// library in bare-metal code -- there is no OS-backed stderr to target below
// GOOS=tamago, and none of the retrieved examples shows one used below an
// OS boundary -- so this follows the teacher's own convention
// (soc/nxp/usb/bus.go, endpoint.go) of tagged fmt.Fprintf lines plus panic
// for state that must halt the chip.
package console

import (
	"fmt"
	"io"
	"os"
)

// Sink is the UART (or, in tests, any io.Writer) diagnostics are written to.
var Sink io.Writer = os.Stderr

// Logger prefixes every line with a component tag, e.g. "usb:", "flash:".
type Logger struct {
	Tag string
}

// New returns a Logger for the given component tag.
func New(tag string) Logger {
	return Logger{Tag: tag}
}

func (l Logger) Printf(format string, args ...interface{}) {
	fmt.Fprintf(Sink, "%s: %s\n", l.Tag, fmt.Sprintf(format, args...))
}

// Fatal reports a diagnostic and panics: spec.md §7 requires hardware faults
// that invalidate driver state to trigger a kernel panic with a formatted
// diagnostic rather than attempt to continue.
func (l Logger) Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("%s: fatal: %s", l.Tag, fmt.Sprintf(format, args...))
	fmt.Fprintln(Sink, msg)
	panic(msg)
}
