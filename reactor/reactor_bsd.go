//go:build darwin || freebsd || netbsd || openbsd || dragonfly
// +build darwin freebsd netbsd openbsd dragonfly

// File: reactor/reactor_bsd.go
// Author: momentics <momentics@gmail.com>
//
// kqueue(2)-based poller with a self-pipe wakeup channel.

package reactor

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-uv/api"
	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq          int
	wakeR       int
	wakeW       int
	wakePending atomic.Uint32
	tokens      map[int]uintptr
	interest    map[int]api.IOEvents
	events      []unix.Kevent_t
}

// NewPoller constructs the kqueue backend. maxEvents bounds one Wait batch.
func NewPoller(maxEvents int) (api.Poller, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	unix.CloseOnExec(kq)
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, fmt.Errorf("wake pipe: %w", err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		_ = unix.SetNonblock(fd, true)
	}
	p := &kqueuePoller{
		kq:       kq,
		wakeR:    fds[0],
		wakeW:    fds[1],
		tokens:   make(map[int]uintptr),
		interest: make(map[int]api.IOEvents),
		events:   make([]unix.Kevent_t, maxEvents),
	}
	if err := p.change(p.wakeR, unix.EVFILT_READ, unix.EV_ADD); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("kevent add wake pipe: %w", err)
	}
	return p, nil
}

func (p *kqueuePoller) change(fd int, filter int16, flags uint16) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, int(filter), int(flags))
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (p *kqueuePoller) apply(fd int, old, want api.IOEvents) error {
	if want&api.EventRead != 0 && old&api.EventRead == 0 {
		if err := p.change(fd, unix.EVFILT_READ, unix.EV_ADD); err != nil {
			return err
		}
	}
	if want&api.EventWrite != 0 && old&api.EventWrite == 0 {
		if err := p.change(fd, unix.EVFILT_WRITE, unix.EV_ADD); err != nil {
			return err
		}
	}
	if want&api.EventRead == 0 && old&api.EventRead != 0 {
		_ = p.change(fd, unix.EVFILT_READ, unix.EV_DELETE)
	}
	if want&api.EventWrite == 0 && old&api.EventWrite != 0 {
		_ = p.change(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	}
	return nil
}

func (p *kqueuePoller) Add(fd int, events api.IOEvents, token uintptr) error {
	if err := p.apply(fd, 0, events); err != nil {
		return err
	}
	p.tokens[fd] = token
	p.interest[fd] = events
	return nil
}

func (p *kqueuePoller) Modify(fd int, events api.IOEvents, token uintptr) error {
	if err := p.apply(fd, p.interest[fd], events); err != nil {
		return err
	}
	p.tokens[fd] = token
	p.interest[fd] = events
	return nil
}

func (p *kqueuePoller) Remove(fd int) error {
	old := p.interest[fd]
	delete(p.tokens, fd)
	delete(p.interest, fd)
	return p.apply(fd, old, 0)
}

func (p *kqueuePoller) Wait(timeout time.Duration, fn api.ReadyFunc) (bool, error) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, fmt.Errorf("kevent wait: %w", err)
	}
	woken := false
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Ident)
		if fd == p.wakeR {
			p.drain()
			woken = true
			continue
		}
		token, ok := p.tokens[fd]
		if !ok {
			continue
		}
		var events api.IOEvents
		switch ev.Filter {
		case unix.EVFILT_READ:
			events |= api.EventRead
		case unix.EVFILT_WRITE:
			events |= api.EventWrite
		}
		if ev.Flags&unix.EV_EOF != 0 {
			events |= api.EventHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			events |= api.EventError
		}
		fn(token, events)
	}
	return woken, nil
}

func (p *kqueuePoller) Wake() error {
	if !p.wakePending.CompareAndSwap(0, 1) {
		return nil
	}
	_, err := unix.Write(p.wakeW, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (p *kqueuePoller) drain() {
	var buf [64]byte
	for {
		if _, err := unix.Read(p.wakeR, buf[:]); err != nil {
			break
		}
	}
	p.wakePending.Store(0)
}

func (p *kqueuePoller) Close() error {
	_ = unix.Close(p.wakeR)
	_ = unix.Close(p.wakeW)
	return unix.Close(p.kq)
}
