// Package irq provides the interrupt router of spec.md §2's leaf dependency
// graph: a table mapping an interrupt line number to the per-peripheral
// bottom half that services it. Grounded on the teacher's
// arm.ExceptionHandler registration pattern (arm/exception.go) and its GIC
// per-line enable table (arm/gic.go), reduced here to the platform-
// independent dispatch table since NVIC/GIC line programming itself belongs
// to the board-init layer spec.md §1 places out of scope.
//
// Router.Handle is called from the platform's trap vector, outside this
// module's scope; usb.Controller.RegisterInterrupt and
// spi.Device.RegisterInterrupt are this router's two in-scope consumers
// (spec.md §2: "USB device controller... and SPI device / SPI host... each
// consumes the register primitive and interrupt router").
package irq

import "sync"

// Handler is a peripheral bottom half. It runs to completion in privileged
// interrupt context, per spec.md §5; it must never block.
type Handler func()

// Router dispatches interrupt lines to registered handlers.
type Router struct {
	mu       sync.Mutex
	handlers map[int]Handler
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[int]Handler)}
}

// Register installs h as the bottom half for line, replacing any previous
// registration. Intended to be called once per peripheral during board
// init, never from within a handler.
func (r *Router) Register(line int, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[line] = h
}

// Unregister removes the handler for line, if any.
func (r *Router) Unregister(line int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handlers, line)
}

// Handle invokes the bottom half registered for line. It is a no-op for an
// unregistered line rather than a panic: a shared interrupt line can fire
// for a peripheral that hasn't finished initializing yet.
func (r *Router) Handle(line int) {
	r.mu.Lock()
	h := r.handlers[line]
	r.mu.Unlock()

	if h != nil {
		h()
	}
}
