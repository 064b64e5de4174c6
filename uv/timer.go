// File: uv/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Timers live in a min-heap ordered by deadline, ties broken by start order.

package uv

import (
	"container/heap"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/reactor"
)

// TimerCallback runs when the timer expires.
type TimerCallback func(t *Timer)

// Timer fires a callback after a timeout and optionally every repeat
// interval afterwards.
type Timer struct {
	handle
	tcb   *reactor.TimerCB
	cb    TimerCallback
	index int // position in the loop heap, -1 when not queued
}

// Init attaches the timer to l.
func (t *Timer) Init(l *Loop) error {
	if err := t.init(l, api.KindTimer, t, t.stop); err != nil {
		return err
	}
	t.tcb = reactor.View[reactor.TimerCB](t.block)
	t.cb = nil
	t.index = -1
	return nil
}

// Start arms the timer to fire after timeout and then every repeat; a zero
// repeat makes it one-shot. Restarting a started timer re-arms it. The
// timer never fires earlier than timeout after the call.
func (t *Timer) Start(cb TimerCallback, timeout, repeat time.Duration) error {
	if cb == nil || timeout < 0 || repeat < 0 {
		return api.EINVAL
	}
	if err := t.alive(); err != nil {
		return err
	}
	l := t.loop
	if t.index >= 0 {
		heap.Remove(&l.timers, t.index)
	}
	l.UpdateTime()
	t.cb = cb
	t.tcb.Timeout = l.now + int64(timeout)
	t.tcb.Repeat = int64(repeat)
	l.timerSeq++
	t.tcb.Seq = l.timerSeq
	heap.Push(&l.timers, t)
	t.markStarted()
	return nil
}

// Stop disarms the timer. Stopping a stopped timer is a no-op.
func (t *Timer) Stop() error {
	if err := t.alive(); err != nil {
		return err
	}
	t.stop()
	return nil
}

// Again restarts the timer using its repeat interval as the timeout. It
// fails with EINVAL if the timer was never started.
func (t *Timer) Again() error {
	if err := t.alive(); err != nil {
		return err
	}
	if t.cb == nil {
		return api.EINVAL
	}
	if t.tcb.Repeat == 0 {
		return nil
	}
	rep := time.Duration(t.tcb.Repeat)
	return t.Start(t.cb, rep, rep)
}

// SetRepeat changes the repeat interval. It takes effect on the next expiry.
func (t *Timer) SetRepeat(repeat time.Duration) {
	if repeat < 0 {
		repeat = 0
	}
	t.tcb.Repeat = int64(repeat)
}

// Repeat returns the repeat interval.
func (t *Timer) Repeat() time.Duration { return time.Duration(t.tcb.Repeat) }

// DueIn returns the time left before the timer fires, zero if it is due or
// not armed.
func (t *Timer) DueIn() time.Duration {
	if t.index < 0 {
		return 0
	}
	d := t.tcb.Timeout - t.loop.now
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

func (t *Timer) stop() {
	if t.index >= 0 {
		heap.Remove(&t.loop.timers, t.index)
	}
	t.markStopped()
}

// runTimers fires due timers. Timers started by a callback during the pass
// wait for the next iteration.
func (l *Loop) runTimers() {
	now, limit := l.now, l.timerSeq
	for len(l.timers) > 0 {
		t := l.timers[0]
		if t.tcb.Timeout > now || t.tcb.Seq > limit {
			return
		}
		t.stop()
		if rep := t.tcb.Repeat; rep > 0 {
			// Rearm relative to now so a late loop does not fire a burst.
			_ = t.Start(t.cb, time.Duration(rep), time.Duration(rep))
		}
		t.cb(t)
	}
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	a, b := h[i].tcb, h[j].tcb
	if a.Timeout != b.Timeout {
		return a.Timeout < b.Timeout
	}
	return a.Seq < b.Seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
