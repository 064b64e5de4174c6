// File: uv/idle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/reactor"
)

// IdleCallback runs once per loop iteration while the idle handle is started.
type IdleCallback func(h *Idle)

// Idle runs a callback on every iteration. A started idle handle keeps the
// loop from blocking in poll.
type Idle struct {
	handle
	icb *reactor.IdleCB
	cb  IdleCallback
}

// Init attaches the handle to l.
func (h *Idle) Init(l *Loop) error {
	if err := h.init(l, api.KindIdle, h, h.stop); err != nil {
		return err
	}
	h.icb = reactor.View[reactor.IdleCB](h.block)
	h.cb = nil
	return nil
}

// Start begins invoking cb each iteration. Starting a started handle only
// replaces the callback.
func (h *Idle) Start(cb IdleCallback) error {
	if cb == nil {
		return api.EINVAL
	}
	if err := h.alive(); err != nil {
		return err
	}
	h.cb = cb
	if h.active {
		return nil
	}
	h.loop.idles = append(h.loop.idles, h)
	h.markStarted()
	return nil
}

// Stop stops the handle. Stopping a stopped handle is a no-op.
func (h *Idle) Stop() error {
	if err := h.alive(); err != nil {
		return err
	}
	h.stop()
	return nil
}

// Iterations returns how many times the callback has run since Init.
func (h *Idle) Iterations() uint64 { return h.icb.Iterations }

func (h *Idle) stop() {
	if !h.active {
		return
	}
	l := h.loop
	for i, x := range l.idles {
		if x == h {
			l.idles = append(l.idles[:i], l.idles[i+1:]...)
			break
		}
	}
	h.markStopped()
}

func (l *Loop) runIdle() {
	if len(l.idles) == 0 {
		return
	}
	l.scratch = append(l.scratch[:0], l.idles...)
	for _, h := range l.scratch {
		if h.active {
			h.icb.Iterations++
			h.cb(h)
		}
	}
	clear(l.scratch)
}
