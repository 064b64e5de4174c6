//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based poller with an eventfd wakeup channel.

package reactor

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/momentics/hioload-uv/api"
	"golang.org/x/sys/unix"
)

// linuxPoller is a level-triggered epoll poller.
type linuxPoller struct {
	epfd        int
	wakefd      int
	wakePending atomic.Uint32
	tokens      map[int]uintptr
	events      []unix.EpollEvent
}

// NewPoller constructs the epoll backend. maxEvents bounds one Wait batch.
func NewPoller(maxEvents int) (api.Poller, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakefd: %w", err)
	}
	return &linuxPoller{
		epfd:   epfd,
		wakefd: wakefd,
		tokens: make(map[int]uintptr),
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Add registers fd with the requested interest set.
func (p *linuxPoller) Add(fd int, events api.IOEvents, token uintptr) error {
	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.tokens[fd] = token
	return nil
}

// Modify replaces the interest set of a registered fd.
func (p *linuxPoller) Modify(fd int, events api.IOEvents, token uintptr) error {
	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return err
	}
	p.tokens[fd] = token
	return nil
}

// Remove unregisters fd.
func (p *linuxPoller) Remove(fd int) error {
	delete(p.tokens, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks in epoll_wait and dispatches ready descriptors.
func (p *linuxPoller) Wait(timeout time.Duration, fn api.ReadyFunc) (bool, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return false, nil // interrupted by signal, normal
		}
		return false, fmt.Errorf("epoll wait: %w", err)
	}
	woken := false
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Fd)
		if fd == p.wakefd {
			p.drain()
			woken = true
			continue
		}
		// A callback earlier in this batch may have removed fd.
		token, ok := p.tokens[fd]
		if !ok {
			continue
		}
		fn(token, fromEpoll(ev.Events))
	}
	return woken, nil
}

// Wake writes to the eventfd unless a wakeup is already pending.
func (p *linuxPoller) Wake() error {
	if !p.wakePending.CompareAndSwap(0, 1) {
		return nil
	}
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := unix.Write(p.wakefd, buf)
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (p *linuxPoller) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			break
		}
	}
	p.wakePending.Store(0)
}

// Close releases the epoll and eventfd descriptors.
func (p *linuxPoller) Close() error {
	_ = unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}

func toEpoll(events api.IOEvents) uint32 {
	var e uint32
	if events&api.EventRead != 0 {
		e |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&api.EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpoll(e uint32) api.IOEvents {
	var events api.IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= api.EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= api.EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= api.EventError
	}
	if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= api.EventHangup
	}
	return events
}
