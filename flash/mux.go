package flash

import (
	"container/list"

	"github.com/usbarmory/h1secure/status"
)

// Mux is the single-producer queue of spec.md §4.3: it forwards at most one
// outstanding mutating operation to the Programmer, serving queued Users in
// arrival order as the current operation completes. Reads bypass the queue
// entirely since they are instantaneous and side-effect-free.
type Mux struct {
	p *Programmer

	current *User
	waiting *list.List // of *User
}

// NewMux returns a Mux serializing access to p.
func NewMux(p *Programmer) *Mux {
	m := &Mux{p: p, waiting: list.New()}
	p.SetClient(m)
	return m
}

// User is one client of the Mux: a process or subsystem (the NV counter,
// firmware update logic, ...) that erases or writes flash through it.
type User struct {
	mux     *Mux
	client  UserClient
	elem    *list.Element
	pending op
}

type opKind int

const (
	opErase opKind = iota
	opWrite
)

type op struct {
	kind   opKind
	page   int
	target int
	data   []uint32
}

// UserClient receives the outcome of a User's own erase/write, exactly once
// per request, matching flash.Client's shape so a User can sit between an
// upper-layer client and the shared Mux.
type UserClient interface {
	EraseDone(code status.Code)
	WriteDone(data []uint32, code status.Code)
}

// NewUser registers a new flash user against the mux.
func (m *Mux) NewUser(client UserClient) *User {
	return &User{mux: m, client: client}
}

// Erase requests the mux erase page, queuing behind any operation already in
// flight.
func (u *User) Erase(page int) error {
	u.pending = op{kind: opErase, page: page}
	return u.mux.submit(u)
}

// Write requests the mux write data at target, queuing behind any operation
// already in flight.
func (u *User) Write(target int, data []uint32) error {
	u.pending = op{kind: opWrite, target: target, data: data}
	return u.mux.submit(u)
}

// Read bypasses the queue: flash reads are synchronous and side-effect-free.
func (u *User) Read(word int) (uint32, error) {
	return u.mux.p.Read(word)
}

func (m *Mux) submit(u *User) error {
	if m.current == nil {
		m.current = u
		return m.dispatch(u)
	}

	u.elem = m.waiting.PushBack(u)
	return nil
}

func (m *Mux) dispatch(u *User) error {
	switch u.pending.kind {
	case opErase:
		return m.p.Erase(u.pending.page)
	default:
		return m.p.Write(u.pending.target, u.pending.data)
	}
}

// EraseDone implements flash.Client: it advances the queue first, then
// delivers the outcome to the user whose operation just completed.
func (m *Mux) EraseDone(code status.Code) {
	u := m.current
	m.advance()

	if u != nil && u.client != nil {
		u.client.EraseDone(code)
	}
}

// WriteDone implements flash.Client: it advances the queue first, then
// delivers the outcome to the user whose operation just completed.
func (m *Mux) WriteDone(data []uint32, code status.Code) {
	u := m.current
	m.advance()

	if u != nil && u.client != nil {
		u.client.WriteDone(data, code)
	}
}

// advance pops the next waiting user, if any, and dispatches its request.
// Dispatch failures here would indicate an internal Mux bug (the programmer
// was just freed by the completion that triggered advance), so they are
// surfaced to the waiting user's own callback rather than panicking.
func (m *Mux) advance() {
	m.current = nil

	front := m.waiting.Front()
	if front == nil {
		return
	}

	m.waiting.Remove(front)
	next := front.Value.(*User)
	m.current = next

	if err := m.dispatch(next); err != nil {
		code := status.Of(err)
		m.advance()
		if next.client != nil {
			switch next.pending.kind {
			case opErase:
				next.client.EraseDone(code)
			default:
				next.client.WriteDone(next.pending.data, code)
			}
		}
	}
}
