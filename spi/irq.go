package spi

import "github.com/usbarmory/h1secure/irq"

// CommandSource supplies the next completed command off the command FIFO
// hardware deposits into on every host transaction; ok is false when the
// interrupt fired with nothing new to drain.
type CommandSource interface {
	NextCommand() (rec CommandRecord, ok bool)
}

// RegisterInterrupt installs this device's command-FIFO bottom half against
// router at line, per spec.md §2's leaf dependency graph: "SPI device / SPI
// host: each consumes the register primitive and interrupt router."
func (d *Device) RegisterInterrupt(router *irq.Router, line int, fifo *CommandFIFO, src CommandSource) {
	router.Register(line, func() { d.serviceCommandInterrupt(fifo, src) })
}

// serviceCommandInterrupt is the registered bottom half: it drains the next
// completed command off fifo and dispatches it through HandleCommand.
// Parse failures are dropped rather than propagated -- there is no
// synchronous caller left to hand the error to once dispatch has moved to
// interrupt context.
func (d *Device) serviceCommandInterrupt(fifo *CommandFIFO, src CommandSource) {
	rec, ok := src.NextCommand()
	if !ok {
		return
	}

	opcode, addr, payload, err := ParseCommand(fifo, rec, d.addrMode)
	if err != nil {
		return
	}

	d.HandleCommand(opcode, addr, payload)
}
