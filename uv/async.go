// File: uv/async.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"sync/atomic"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/reactor"
)

// AsyncCallback runs on the loop thread after one or more Send calls.
type AsyncCallback func(a *Async)

// Async wakes the loop from any goroutine. Sends that arrive before the
// callback runs are coalesced into one invocation.
type Async struct {
	handle
	acb     *reactor.AsyncCB
	cb      AsyncCallback
	pending atomic.Uint32
}

// Init attaches the handle to l. The handle is active immediately.
func (a *Async) Init(l *Loop, cb AsyncCallback) error {
	if cb == nil {
		return api.EINVAL
	}
	if err := a.init(l, api.KindAsync, a, a.stop); err != nil {
		return err
	}
	a.acb = reactor.View[reactor.AsyncCB](a.block)
	a.cb = cb
	a.pending.Store(0)
	l.asyncs = append(l.asyncs, a)
	a.markStarted()
	return nil
}

// Send schedules the callback. It is safe to call from any goroutine while
// the handle is open.
func (a *Async) Send() error {
	atomic.AddUint64(&a.acb.Sends, 1)
	if !a.pending.CompareAndSwap(0, 1) {
		return nil
	}
	return a.loop.wake()
}

// Stats returns the number of Send calls and callback deliveries.
func (a *Async) Stats() (sends, deliveries uint64) {
	return atomic.LoadUint64(&a.acb.Sends), atomic.LoadUint64(&a.acb.Deliveries)
}

func (a *Async) stop() {
	l := a.loop
	for i, x := range l.asyncs {
		if x == a {
			l.asyncs = append(l.asyncs[:i], l.asyncs[i+1:]...)
			break
		}
	}
	a.markStopped()
}

func (l *Loop) runAsync() {
	if len(l.asyncs) == 0 {
		return
	}
	for _, a := range append([]*Async(nil), l.asyncs...) {
		if !a.active || a.pending.Swap(0) == 0 {
			continue
		}
		atomic.AddUint64(&a.acb.Deliveries, 1)
		a.cb(a)
	}
}
