// https://github.com/usbarmory/h1secure
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm
// +build tamago,arm

// Package reg provides volatile load/store primitives for memory-mapped
// peripheral registers. Two accesses never race because the whole platform
// runs on a single core with interrupts as the only source of preemption: a
// register is read or written to completion before anything else can touch
// it.
package reg

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"
)

// Get reads pos..pos+bits(mask) from the register at addr.
func Get(addr uint32, pos int, mask int) uint32 {
	r := atomic.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
	return uint32((int(r) >> pos) & mask)
}

// Set sets an individual bit of the register at addr.
func Set(addr uint32, pos int) {
	ptr := (*uint32)(unsafe.Pointer(uintptr(addr)))
	atomic.StoreUint32(ptr, atomic.LoadUint32(ptr)|(1<<pos))
}

// Clear clears an individual bit of the register at addr.
func Clear(addr uint32, pos int) {
	ptr := (*uint32)(unsafe.Pointer(uintptr(addr)))
	atomic.StoreUint32(ptr, atomic.LoadUint32(ptr)&^(1<<pos))
}

// SetN writes val into pos..pos+bits(mask) of the register at addr.
func SetN(addr uint32, pos int, mask int, val uint32) {
	ptr := (*uint32)(unsafe.Pointer(uintptr(addr)))
	r := atomic.LoadUint32(ptr)
	r = (r &^ (uint32(mask) << pos)) | (val << pos)
	atomic.StoreUint32(ptr, r)
}

// ClearN clears pos..pos+bits(mask) of the register at addr.
func ClearN(addr uint32, pos int, mask int) {
	ptr := (*uint32)(unsafe.Pointer(uintptr(addr)))
	atomic.StoreUint32(ptr, atomic.LoadUint32(ptr)&^(uint32(mask)<<pos))
}

// Read reads the whole register at addr.
func Read(addr uint32) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

// Write stores val into the whole register at addr.
func Write(addr uint32, val uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), val)
}

// Wait spins until the register bits pos..pos+bits(mask) at addr equal val.
// Used for hardware trigger/status handshakes that always complete (flash
// bank arbitration, FIFO drain); operations with an externally imposed
// deadline use WaitFor instead.
func Wait(addr uint32, pos int, mask int, val uint32) {
	for Get(addr, pos, mask) != val {
		runtime.Gosched()
	}
}

// WaitFor is Wait bounded by a timeout, returning false if the deadline
// passed before the bits matched.
func WaitFor(timeout time.Duration, addr uint32, pos int, mask int, val uint32) bool {
	start := time.Now()

	for Get(addr, pos, mask) != val {
		runtime.Gosched()

		if time.Since(start) >= timeout {
			return false
		}
	}

	return true
}
