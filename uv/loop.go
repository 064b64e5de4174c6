// File: uv/loop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The reactor loop: owns the poll backend, the handle list, timers, idle work
// and the queues through which completions are delivered on the loop thread.

package uv

import (
	"container/list"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/momentics/hioload-uv/affinity"
	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/control"
	"github.com/momentics/hioload-uv/pool"
	"github.com/momentics/hioload-uv/reactor"
	"go.uber.org/zap"
)

// ioWatcher receives readiness for one registered descriptor.
type ioWatcher interface {
	onIO(events api.IOEvents)
}

// HandleInfo is one entry of the debug handle dump.
type HandleInfo struct {
	Kind   string `json:"kind"`
	State  string `json:"state"`
	Active bool   `json:"active"`
	Ref    bool   `json:"ref"`
}

// Loop is one reactor instance. It is not safe for concurrent use: every
// method except those documented otherwise must be called from the goroutine
// that runs it.
type Loop struct {
	id     string
	log    *zap.Logger
	cfg    loopConfig
	poller api.Poller
	alloc  *pool.Allocator
	bufs   *pool.BytePool

	epoch time.Time
	now   int64 // nanoseconds since epoch, refreshed once per iteration

	handles *list.List // of Handle, in init order
	nactive int        // active and referenced handles
	nreqs   int        // requests in flight

	idles    []*Idle
	scratch  []*Idle
	timers   timerHeap
	timerSeq uint64
	asyncs   []*Async

	paused   []*stream // listeners backing off after an accept error
	resumeAt int64

	watchers  map[uintptr]ioWatcher
	nextToken uintptr

	pending *queue.Queue // func() run in the pending phase
	closing *queue.Queue // *handle awaiting its close callback

	inboxMu sync.Mutex
	inbox   []func()
	shut    bool

	reload   atomic.Bool
	snapshot atomic.Pointer[[]HandleInfo]

	data       any
	running    bool
	stopped    bool
	closed     bool
	pinned     bool
	iterations uint64
}

// NewLoop creates a loop bound to the platform poll backend.
func NewLoop(opts ...Option) (*Loop, error) {
	cfg := defaultLoopConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.alloc == nil {
		cfg.alloc = pool.Default()
	}
	poller, err := reactor.NewPoller(cfg.maxEvents)
	if err != nil {
		return nil, fmt.Errorf("uv: create poller: %w", err)
	}
	id := uuid.NewString()
	log := cfg.logger
	if log == nil {
		log = Logger()
	}
	l := &Loop{
		id:       id,
		log:      log.With(zap.String("loop", id)),
		cfg:      cfg,
		poller:   poller,
		alloc:    cfg.alloc,
		bufs:     pool.NewBytePool(cfg.readBufferSize),
		epoch:    time.Now(),
		handles:  list.New(),
		watchers: make(map[uintptr]ioWatcher),
		pending:  queue.New(),
		closing:  queue.New(),
	}
	if cfg.store != nil {
		cfg.store.OnReload(func() {
			l.reload.Store(true)
			_ = l.wake()
		})
	}
	if cfg.probes != nil {
		cfg.probes.RegisterProbe(l.metricKey("handles"), func() any {
			if s := l.snapshot.Load(); s != nil {
				return *s
			}
			return []HandleInfo{}
		})
		control.RegisterPlatformProbes(cfg.probes)
	}
	l.log.Debug("loop created",
		zap.Int("max_events", cfg.maxEvents),
		zap.Int("cpu", cfg.cpu),
		zap.String("read_buffer", humanize.IBytes(uint64(l.bufs.Size()))))
	return l, nil
}

// ID returns the unique identifier of the loop used in logs and metric keys.
func (l *Loop) ID() string { return l.id }

// SetData attaches arbitrary caller state to the loop.
func (l *Loop) SetData(v any) { l.data = v }

// Data returns the value set by SetData.
func (l *Loop) Data() any { return l.data }

// Now returns the cached loop time, refreshed at the start of each iteration.
func (l *Loop) Now() time.Time { return l.epoch.Add(time.Duration(l.now)) }

// UpdateTime refreshes the cached loop time.
func (l *Loop) UpdateTime() { l.now = int64(time.Since(l.epoch)) }

// Alive reports whether Run would keep iterating: an active referenced handle,
// an in-flight request or an undelivered callback remains.
func (l *Loop) Alive() bool {
	return l.nactive > 0 || l.nreqs > 0 || l.closing.Length() > 0 || l.pending.Length() > 0
}

// Stop makes Run return after the current iteration.
func (l *Loop) Stop() { l.stopped = true }

// Run drives the loop until it is no longer alive or Stop is called. It is
// the only place the loop blocks. Calling Run from a callback of the same
// loop panics.
func (l *Loop) Run() error {
	if l.closed {
		return api.EINVAL
	}
	if l.running {
		panic("uv: Run called recursively")
	}
	l.running = true
	defer func() { l.running = false }()

	runtime.LockOSThread()
	if l.cfg.cpu >= 0 && !l.pinned {
		if err := affinity.SetAffinity(l.cfg.cpu); err != nil {
			l.log.Warn("cpu pinning failed", zap.Int("cpu", l.cfg.cpu), zap.Error(err))
		} else {
			// A pinned thread must not go back to the scheduler.
			l.pinned = true
		}
	}
	if !l.pinned {
		defer runtime.UnlockOSThread()
	}

	l.UpdateTime()
	for l.Alive() && !l.stopped {
		l.UpdateTime()
		l.resumeListeners(false)
		l.runTimers()
		l.runPending()
		l.runIdle()
		if l.reload.Swap(false) {
			l.applyReload()
		}

		woken, err := l.poller.Wait(l.pollTimeout(), l.dispatch)
		if err != nil {
			l.log.Error("poll failed", zap.Error(err))
			return err
		}
		l.UpdateTime()
		l.drainInbox()
		if woken {
			l.runAsync()
		}
		l.runClosing()

		l.iterations++
		l.publish()
	}
	l.stopped = false
	return nil
}

// Close destroys the loop. It fails with EBUSY while any handle is still
// attached (including handles whose close callback has not run) or a request
// is in flight.
func (l *Loop) Close() error {
	if l.closed {
		return api.EINVAL
	}
	if l.running || l.handles.Len() > 0 || l.nreqs > 0 {
		return api.EBUSY
	}
	l.inboxMu.Lock()
	l.shut = true
	l.inbox = nil
	l.inboxMu.Unlock()

	l.closed = true
	err := l.poller.Close()
	if l.cfg.metrics != nil {
		l.cfg.metrics.Set(l.metricKey("closed"), true)
	}
	if l.cfg.probes != nil {
		l.cfg.probes.UnregisterProbe(l.metricKey("handles"))
	}
	l.log.Debug("loop closed", zap.Uint64("iterations", l.iterations))
	return err
}

// Walk calls fn once for every handle attached to the loop, in init order.
// fn may close the handle it is given.
func (l *Loop) Walk(fn func(h Handle)) {
	hs := make([]Handle, 0, l.handles.Len())
	for e := l.handles.Front(); e != nil; e = e.Next() {
		hs = append(hs, e.Value.(Handle))
	}
	for _, h := range hs {
		fn(h)
	}
}

// Iterations returns how many loop iterations Run has completed.
func (l *Loop) Iterations() uint64 { return l.iterations }

func (l *Loop) pollTimeout() time.Duration {
	if l.stopped || len(l.idles) > 0 || l.pending.Length() > 0 || l.closing.Length() > 0 {
		return 0
	}
	if !l.Alive() {
		return 0
	}
	deadline, armed := int64(0), false
	if len(l.timers) > 0 {
		deadline, armed = l.timers[0].tcb.Timeout, true
	}
	if len(l.paused) > 0 && (!armed || l.resumeAt < deadline) {
		deadline, armed = l.resumeAt, true
	}
	if !armed {
		return -1
	}
	d := deadline - l.now
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// pauseListener parks s until the backoff elapses or a handle closes and
// releases its descriptor.
func (l *Loop) pauseListener(s *stream, backoff time.Duration) {
	if len(l.paused) == 0 {
		l.resumeAt = l.now + int64(backoff)
	}
	l.paused = append(l.paused, s)
}

func (l *Loop) resumeListeners(force bool) {
	if len(l.paused) == 0 || (!force && l.now < l.resumeAt) {
		return
	}
	paused := l.paused
	l.paused = nil
	for _, s := range paused {
		s.resumeAccept()
	}
}

func (l *Loop) dispatch(token uintptr, events api.IOEvents) {
	if w, ok := l.watchers[token]; ok {
		w.onIO(events)
	}
}

func (l *Loop) addWatcher(w ioWatcher) uintptr {
	l.nextToken++
	l.watchers[l.nextToken] = w
	return l.nextToken
}

func (l *Loop) removeWatcher(token uintptr) {
	delete(l.watchers, token)
}

// later queues fn for the pending phase of the next iteration.
func (l *Loop) later(fn func()) {
	l.pending.Add(fn)
}

// completion is a request callback waiting for the pending phase.
type completion struct {
	r    *request
	fn   func()
	done bool
}

func (c *completion) run() {
	if c.done {
		return
	}
	c.done = true
	c.r.finish()
	c.fn()
}

// deliver completes r on the loop thread during the next pending phase. If
// owner is closed first, the completion runs ahead of its close callback.
func (l *Loop) deliver(owner *handle, r *request, fn func()) {
	c := &completion{r: r, fn: fn}
	owner.track(c)
	l.pending.Add(c.run)
}

func (l *Loop) runPending() {
	n := l.pending.Length()
	for i := 0; i < n; i++ {
		fn := l.pending.Remove().(func())
		fn()
	}
}

// post hands fn to the loop from any goroutine. It reports false once the
// loop has been destroyed.
func (l *Loop) post(fn func()) bool {
	l.inboxMu.Lock()
	if l.shut {
		l.inboxMu.Unlock()
		return false
	}
	l.inbox = append(l.inbox, fn)
	l.inboxMu.Unlock()
	if err := l.poller.Wake(); err != nil {
		l.log.Warn("wakeup failed", zap.Error(err))
	}
	return true
}

func (l *Loop) wake() error {
	l.inboxMu.Lock()
	defer l.inboxMu.Unlock()
	if l.shut {
		return api.EINVAL
	}
	return l.poller.Wake()
}

func (l *Loop) drainInbox() {
	l.inboxMu.Lock()
	batch := l.inbox
	l.inbox = nil
	l.inboxMu.Unlock()
	for _, fn := range batch {
		fn()
	}
}

func (l *Loop) runClosing() {
	n := l.closing.Length()
	for i := 0; i < n; i++ {
		h := l.closing.Remove().(*handle)
		h.finishClose()
	}
	if n > 0 {
		l.resumeListeners(true)
	}
}

func (l *Loop) applyReload() {
	v, ok := l.cfg.store.Int(ConfigReadBufferSize)
	if !ok || v <= 0 || v == l.bufs.Size() {
		return
	}
	l.bufs = pool.NewBytePool(v)
	l.log.Info("read buffer size reloaded", zap.String("size", humanize.IBytes(uint64(v))))
}

func (l *Loop) metricKey(name string) string {
	return "uv." + l.id + "." + name
}

func (l *Loop) publish() {
	if m := l.cfg.metrics; m != nil {
		m.SetMany(map[string]any{
			l.metricKey("iterations"):      l.iterations,
			l.metricKey("handles"):         l.handles.Len(),
			l.metricKey("active_handles"):  l.nactive,
			l.metricKey("active_reqs"):     l.nreqs,
			l.metricKey("read_buf_misses"): l.bufs.Misses(),
		})
	}
	if l.cfg.probes != nil {
		infos := make([]HandleInfo, 0, l.handles.Len())
		for e := l.handles.Front(); e != nil; e = e.Next() {
			h := e.Value.(Handle)
			infos = append(infos, HandleInfo{
				Kind:   h.Kind().String(),
				State:  h.State().String(),
				Active: h.IsActive(),
				Ref:    h.HasRef(),
			})
		}
		l.snapshot.Store(&infos)
	}
}
