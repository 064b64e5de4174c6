// File: uv/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Common handle lifecycle shared by every handle kind.

package uv

import (
	"container/list"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/pool"
	"go.uber.org/zap"
)

// State is the lifecycle position of a handle.
type State uint8

const (
	StateAllocated State = iota
	StateInitialized
	StateStarted
	StateStopped
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "invalid"
}

// CloseCallback runs once, on a loop iteration after Close was called.
type CloseCallback func(h Handle)

// Handle is implemented by every handle kind.
type Handle interface {
	Loop() *Loop
	Kind() api.Kind
	State() State
	Data() any
	SetData(v any)
	IsActive() bool
	IsClosing() bool
	Ref()
	Unref()
	HasRef() bool
	Close(cb CloseCallback)

	base() *handle
}

type handle struct {
	loop    *Loop
	kind    api.Kind
	self    Handle
	closer  func() // kind-specific teardown run by Close
	state   State
	active  bool
	unref   bool
	data    any
	block   pool.Block
	closeCb CloseCallback
	cancels []func() // request completions flushed before closeCb
	owed    []*completion
	elem    *list.Element
}

func (h *handle) init(l *Loop, kind api.Kind, self Handle, closer func()) error {
	if l == nil || l.closed {
		return api.EINVAL
	}
	if h.state != StateAllocated && h.state != StateClosed {
		panic("uv: " + kind.String() + " handle initialized twice")
	}
	h.loop = l
	h.kind = kind
	h.self = self
	h.closer = closer
	h.active = false
	h.unref = false
	h.closeCb = nil
	h.owed = nil
	h.block = l.alloc.Alloc(kind)
	h.state = StateInitialized
	h.elem = l.handles.PushBack(self)
	return nil
}

func (h *handle) base() *handle { return h }

// Loop returns the loop the handle was initialized on.
func (h *handle) Loop() *Loop { return h.loop }

// Kind returns the handle kind.
func (h *handle) Kind() api.Kind { return h.kind }

// State returns the current lifecycle state.
func (h *handle) State() State { return h.state }

// Data returns the caller context attached with SetData.
func (h *handle) Data() any { return h.data }

// SetData attaches caller context to the handle.
func (h *handle) SetData(v any) { h.data = v }

// IsActive reports whether the handle is started and generating events.
func (h *handle) IsActive() bool { return h.active }

// IsClosing reports whether Close has been called.
func (h *handle) IsClosing() bool {
	return h.state == StateClosing || h.state == StateClosed
}

// Ref makes an active handle keep the loop alive again. Idempotent.
func (h *handle) Ref() {
	if !h.unref {
		return
	}
	h.unref = false
	if h.active {
		h.loop.nactive++
	}
}

// Unref stops an active handle from keeping the loop alive. Idempotent.
func (h *handle) Unref() {
	if h.unref {
		return
	}
	h.unref = true
	if h.active {
		h.loop.nactive--
	}
}

// HasRef reports whether the handle is referenced.
func (h *handle) HasRef() bool { return !h.unref }

// Close stops the handle and schedules cb for a later iteration. Requests
// pending on the handle complete with ECANCELED before cb runs. Closing a
// handle twice or one that was never initialized panics.
func (h *handle) Close(cb CloseCallback) {
	switch h.state {
	case StateAllocated:
		panic("uv: close of uninitialized handle")
	case StateClosing, StateClosed:
		panic("uv: " + h.kind.String() + " handle closed twice")
	}
	if h.closer != nil {
		h.closer()
	}
	h.deactivate()
	h.state = StateClosing
	h.closeCb = cb
	h.loop.closing.Add(h)
	h.loop.log.Debug("handle closing", zap.Stringer("kind", h.kind))
}

func (h *handle) finishClose() {
	l := h.loop
	kind, blk := h.kind, h.block
	h.state = StateClosed
	l.handles.Remove(h.elem)
	h.elem = nil
	owed, cancels := h.owed, h.cancels
	h.owed, h.cancels = nil, nil
	// Completed requests keep their status and precede the cancellations.
	for _, c := range owed {
		c.run()
	}
	for _, fn := range cancels {
		fn()
	}
	if cb := h.closeCb; cb != nil {
		h.closeCb = nil
		cb(h.self)
	}
	// The callback may have initialized the handle again with a fresh block.
	if h.state == StateClosed {
		h.block = nil
	}
	l.alloc.Free(kind, blk)
}

// alive rejects operations on handles that were never initialized or are
// being torn down.
func (h *handle) alive() error {
	if h.state == StateAllocated || h.state == StateClosing || h.state == StateClosed {
		return api.EINVAL
	}
	return nil
}

// track records a queued completion so finishClose can flush it. Entries the
// pending phase already ran are dropped here.
func (h *handle) track(c *completion) {
	live := h.owed[:0]
	for _, o := range h.owed {
		if !o.done {
			live = append(live, o)
		}
	}
	clear(h.owed[len(live):])
	h.owed = append(live, c)
}

// cancel completes r with ECANCELED just before the close callback runs.
func (h *handle) cancel(r *request, fn func(err error)) {
	h.cancels = append(h.cancels, func() {
		r.finish()
		fn(api.ECANCELED)
	})
}

func (h *handle) activate() {
	if h.active {
		return
	}
	h.active = true
	if !h.unref {
		h.loop.nactive++
	}
}

func (h *handle) deactivate() {
	if !h.active {
		return
	}
	h.active = false
	if !h.unref {
		h.loop.nactive--
	}
}

func (h *handle) markStarted() {
	h.activate()
	h.state = StateStarted
}

func (h *handle) markStopped() {
	h.deactivate()
	if h.state == StateStarted {
		h.state = StateStopped
	}
}
