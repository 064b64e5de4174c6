// Package api
// Author: momentics
//
// Boundary between the loop and the platform readiness backend
// (epoll, kqueue). The loop only needs "wait until something is ready"
// and "wake me".

package api

import "time"

// IOEvents is a readiness bitmask.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// ReadyFunc receives the token registered for a ready descriptor.
type ReadyFunc func(token uintptr, events IOEvents)

// Poller is a level-triggered readiness backend. Every method except Wake must
// be called from the goroutine that owns the loop.
type Poller interface {
	// Add starts watching fd for events; token is handed back on readiness.
	Add(fd int, events IOEvents, token uintptr) error

	// Modify changes the watched events of a registered fd.
	Modify(fd int, events IOEvents, token uintptr) error

	// Remove stops watching fd.
	Remove(fd int) error

	// Wait blocks up to timeout (negative blocks indefinitely) and calls fn
	// once per ready descriptor. It returns woken=true when Wake was called.
	Wait(timeout time.Duration, fn ReadyFunc) (woken bool, err error)

	// Wake interrupts a concurrent or upcoming Wait. Safe from any goroutine.
	Wake() error

	// Close releases the backend.
	Close() error
}
