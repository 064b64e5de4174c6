// File: uv/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Request base: one in-flight operation whose callback fires exactly once
// when the submission succeeded and never when it failed.

package uv

import (
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/pool"
)

// Request is implemented by every request kind.
type Request interface {
	Kind() api.Kind
	Loop() *Loop
	Data() any
	SetData(v any)
	InFlight() bool
	Free()

	base() *request
}

// request is usable as a zero value. Its control block comes from the loop
// allocator on first submission and is kept across reuse until Free.
type request struct {
	kind     api.Kind
	loop     *Loop
	alloc    *pool.Allocator
	block    pool.Block
	data     any
	inflight bool
}

func (r *request) base() *request { return r }

// Kind returns the kind of the last submission.
func (r *request) Kind() api.Kind { return r.kind }

// Loop returns the loop of the last submission.
func (r *request) Loop() *Loop { return r.loop }

// Data returns the caller context attached with SetData.
func (r *request) Data() any { return r.data }

// SetData attaches caller context to the request.
func (r *request) SetData(v any) { r.data = v }

// InFlight reports whether the request was submitted and its callback has
// not run yet.
func (r *request) InFlight() bool { return r.inflight }

// Free releases the control block. Freeing an in-flight request panics.
func (r *request) Free() {
	if r.inflight {
		panic("uv: free of in-flight " + r.kind.String() + " request")
	}
	if r.block != nil {
		r.alloc.Free(r.kind, r.block)
		r.block = nil
	}
}

// submit marks r in flight on l. Callers validate arguments before submit and
// call abort if the operation then fails synchronously.
func (r *request) submit(l *Loop, kind api.Kind) {
	if r.inflight {
		panic("uv: " + kind.String() + " request submitted while in flight")
	}
	if r.block != nil && (r.kind != kind || r.alloc != l.alloc) {
		r.alloc.Free(r.kind, r.block)
		r.block = nil
	}
	if r.block == nil {
		r.block = l.alloc.Alloc(kind)
		r.alloc = l.alloc
	} else {
		clear(r.block)
	}
	r.kind = kind
	r.loop = l
	r.inflight = true
	l.nreqs++
}

func (r *request) abort() {
	r.inflight = false
	r.loop.nreqs--
}

func (r *request) finish() {
	r.inflight = false
	r.loop.nreqs--
}

// checkLoop validates the loop argument of a submission.
func checkLoop(l *Loop) error {
	if l == nil || l.closed {
		return api.EINVAL
	}
	return nil
}
