// File: uv/udp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"errors"
	"net/netip"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
	"github.com/momentics/hioload-uv/reactor"
	"go.uber.org/zap"
)

// UDP bind flags.
const (
	UDPIPv6Only  uint = 1
	UDPReuseAddr uint = 4
)

// UDP receive flags.
const (
	UDPPartial uint = 2
)

// Membership selects SetMembership's direction.
type Membership int

const (
	LeaveGroup Membership = iota
	JoinGroup
)

// UDPRecvCallback receives one datagram of nread bytes from addr. addr is
// only valid for the duration of the call. nread of 0 with a nil addr means
// nothing was read and buf is handed back.
type UDPRecvCallback func(u *UDP, nread int, buf api.Buf, addr SockAddr, flags uint, err error)

// UDPSendCallback reports the outcome of a send.
type UDPSendCallback func(req *UDPSendReq, err error)

// UDPSendReq is a pending datagram send.
type UDPSendReq struct {
	request
	rcb    *reactor.ReqCB
	handle *UDP
	cb     UDPSendCallback
	bufs   [][]byte
	to     netip.AddrPort
}

// Handle returns the handle the request was submitted on.
func (r *UDPSendReq) Handle() *UDP { return r.handle }

// UDP is a datagram socket.
type UDP struct {
	handle
	scb     *reactor.StreamCB
	token   uintptr
	family  int
	alloc   AllocCallback
	recvCb  UDPRecvCallback
	sends   []*UDPSendReq
	from    *SockAddrStorage
	reading bool
}

// Init attaches the handle to l. The socket is created by the first bind or
// send.
func (u *UDP) Init(l *Loop) error {
	if err := u.init(l, api.KindUDP, u, u.closeUDP); err != nil {
		return err
	}
	u.scb = reactor.View[reactor.StreamCB](u.block)
	u.scb.FD = -1
	u.scb.AcceptedFD = -1
	u.token, u.family = 0, 0
	u.alloc, u.recvCb, u.sends, u.reading = nil, nil, nil, false
	return nil
}

func (u *UDP) fd() int { return int(u.scb.FD) }

func (u *UDP) ensureSocket(family int) error {
	if u.scb.FD >= 0 {
		if u.family != family {
			return api.EINVAL
		}
		return nil
	}
	fd, err := sysfd.Socket(family, sysfd.SockDgram)
	if err != nil {
		return err
	}
	u.scb.FD = int32(fd)
	u.family = family
	return nil
}

// Bind4 binds to an IPv4 address.
func (u *UDP) Bind4(addr *SockAddrIn, flags uint) error {
	if addr == nil || flags&UDPIPv6Only != 0 {
		return api.EINVAL
	}
	return u.bind(addr.AddrPort(), flags)
}

// Bind6 binds to an IPv6 address.
func (u *UDP) Bind6(addr *SockAddrIn6, flags uint) error {
	if addr == nil {
		return api.EINVAL
	}
	return u.bind(addr.AddrPort(), flags)
}

func (u *UDP) bind(ap netip.AddrPort, flags uint) error {
	if err := u.alive(); err != nil {
		return err
	}
	if flags&^(UDPIPv6Only|UDPReuseAddr) != 0 {
		return api.EINVAL
	}
	if err := u.ensureSocket(sysfd.Family(ap)); err != nil {
		return err
	}
	if flags&UDPReuseAddr != 0 {
		if err := sysfd.SetReuseAddr(u.fd()); err != nil {
			return err
		}
	}
	if u.family == sysfd.AFInet6 {
		if err := sysfd.SetV6Only(u.fd(), flags&UDPIPv6Only != 0); err != nil {
			return err
		}
	}
	return sysfd.Bind(u.fd(), ap)
}

// Send4 sends bufs as one datagram to an IPv4 peer.
func (u *UDP) Send4(req *UDPSendReq, bufs []api.Buf, addr *SockAddrIn, cb UDPSendCallback) error {
	if addr == nil {
		return api.EINVAL
	}
	return u.send(req, bufs, addr.AddrPort(), cb)
}

// Send6 sends bufs as one datagram to an IPv6 peer.
func (u *UDP) Send6(req *UDPSendReq, bufs []api.Buf, addr *SockAddrIn6, cb UDPSendCallback) error {
	if addr == nil {
		return api.EINVAL
	}
	return u.send(req, bufs, addr.AddrPort(), cb)
}

func (u *UDP) send(req *UDPSendReq, bufs []api.Buf, to netip.AddrPort, cb UDPSendCallback) error {
	if req == nil {
		return api.EINVAL
	}
	if err := u.alive(); err != nil {
		return err
	}
	if u.scb.FD < 0 {
		// An unbound socket gets an ephemeral local port.
		unspec := netip.IPv4Unspecified()
		if !to.Addr().Is4() {
			unspec = netip.IPv6Unspecified()
		}
		if err := u.bind(netip.AddrPortFrom(unspec, 0), 0); err != nil {
			return err
		}
	}
	req.submit(u.loop, api.KindUDPSend)
	req.rcb = reactor.View[reactor.ReqCB](req.block)
	req.rcb.Family = uint16(sysfd.Family(to))
	req.rcb.Total = uint64(api.TotalLen(bufs))
	req.handle = u
	req.cb = cb
	req.bufs = api.Bufs(bufs)
	req.to = to
	u.scb.QueuedBytes += req.rcb.Total
	u.sends = append(u.sends, req)
	if len(u.sends) == 1 {
		u.flushSends()
	}
	u.updateInterest()
	return nil
}

func (u *UDP) flushSends() {
	for len(u.sends) > 0 {
		req := u.sends[0]
		n, err := sysfd.Sendto(u.fd(), req.bufs, req.to)
		if errors.Is(err, api.EAGAIN) {
			break
		}
		u.sends[0] = nil
		u.sends = u.sends[1:]
		u.scb.QueuedBytes -= req.rcb.Total
		if err == nil {
			req.rcb.Written = uint64(n)
			u.scb.WriteCount++
		} else {
			req.rcb.Status = int32(api.FromSys(err))
		}
		req.bufs = nil
		u.loop.deliver(&u.handle, &req.request, func() {
			if req.cb != nil {
				req.cb(req, err)
			}
		})
	}
	if len(u.sends) == 0 {
		u.sends = nil
	}
	u.updateInterest()
}

// RecvStart begins delivering datagrams to cb. A nil alloc uses the loop's
// pooled read buffers.
func (u *UDP) RecvStart(alloc AllocCallback, cb UDPRecvCallback) error {
	if cb == nil {
		return api.EINVAL
	}
	if err := u.alive(); err != nil {
		return err
	}
	if u.reading {
		return api.EALREADY
	}
	if u.scb.FD < 0 {
		if err := u.bind(netip.AddrPortFrom(netip.IPv4Unspecified(), 0), 0); err != nil {
			return err
		}
	}
	if u.from == nil {
		u.from = NewSockAddrStorage()
	}
	u.alloc, u.recvCb, u.reading = alloc, cb, true
	u.updateInterest()
	u.markStarted()
	return nil
}

// RecvStop stops receiving. It is a no-op when not receiving.
func (u *UDP) RecvStop() error {
	if err := u.alive(); err != nil {
		return err
	}
	u.stopRecv()
	return nil
}

func (u *UDP) stopRecv() {
	if !u.reading {
		return
	}
	u.reading = false
	u.updateInterest()
	u.markStopped()
}

func (u *UDP) updateInterest() {
	if u.scb.FD < 0 {
		return
	}
	var want api.IOEvents
	if u.reading {
		want |= api.EventRead
	}
	if len(u.sends) > 0 {
		want |= api.EventWrite
	}
	l := u.loop
	var err error
	switch {
	case want == 0 && u.token != 0:
		err = l.poller.Remove(u.fd())
		l.removeWatcher(u.token)
		u.token = 0
	case want != 0 && u.token == 0:
		u.token = l.addWatcher(u)
		err = l.poller.Add(u.fd(), want, u.token)
	case want != 0 && api.IOEvents(u.scb.Interest) != want:
		err = l.poller.Modify(u.fd(), want, u.token)
	}
	if err != nil {
		l.log.Warn("poll registration failed", zap.Stringer("kind", u.kind), zap.Error(err))
	}
	u.scb.Interest = uint32(want)
}

func (u *UDP) onIO(ev api.IOEvents) {
	if u.reading && ev&(api.EventRead|api.EventError) != 0 {
		u.recvReady()
	}
	if !u.IsClosing() && len(u.sends) > 0 && ev&(api.EventWrite|api.EventError) != 0 {
		u.flushSends()
	}
}

func (u *UDP) recvReady() {
	l := u.loop
	for i := 0; i < maxReadsPerEvent && u.reading && !u.IsClosing(); i++ {
		var (
			buf    api.Buf
			pooled []byte
		)
		if u.alloc != nil {
			buf = u.alloc(u, l.bufs.Size())
		} else {
			pooled = l.bufs.GetBuffer()
			buf = api.BufFrom(pooled)
		}
		if buf.Len() == 0 {
			u.recvCb(u, 0, buf, nil, 0, api.ENOBUFS)
			return
		}
		n, from, trunc, err := sysfd.Recvfrom(u.fd(), buf.Bytes())
		if errors.Is(err, api.EAGAIN) {
			if pooled != nil {
				l.bufs.PutBuffer(pooled)
			} else {
				u.recvCb(u, 0, buf, nil, 0, nil)
			}
			return
		}
		if err != nil {
			u.recvCb(u, 0, buf, nil, 0, err)
		} else {
			var flags uint
			if trunc {
				flags |= UDPPartial
			}
			u.from.set(from)
			u.scb.ReadCount += uint64(n)
			u.recvCb(u, n, buf, u.from.Addr(), flags, nil)
		}
		if pooled != nil {
			l.bufs.PutBuffer(pooled)
		}
	}
}

// Getsockname stores the local address in out.
func (u *UDP) Getsockname(out *SockAddrStorage) error {
	if out == nil {
		return api.EINVAL
	}
	if err := u.alive(); err != nil {
		return err
	}
	if u.scb.FD < 0 {
		return api.EBADF
	}
	ap, err := sysfd.Sockname(u.fd())
	if err != nil {
		return err
	}
	out.set(ap)
	return nil
}

// SetMembership joins or leaves the multicast group on the interface with
// address iface; an empty iface selects the default interface.
func (u *UDP) SetMembership(group, iface string, m Membership) error {
	if err := u.alive(); err != nil {
		return err
	}
	g, err := netip.ParseAddr(group)
	if err != nil || !g.IsMulticast() {
		return api.EINVAL
	}
	var ifa netip.Addr
	if iface != "" {
		if ifa, err = netip.ParseAddr(iface); err != nil {
			return api.EINVAL
		}
	}
	if u.scb.FD < 0 {
		unspec := netip.IPv4Unspecified()
		if g.Is6() {
			unspec = netip.IPv6Unspecified()
		}
		if err := u.bind(netip.AddrPortFrom(unspec, 0), UDPReuseAddr); err != nil {
			return err
		}
	}
	return sysfd.SetMembership(u.fd(), g, ifa, m == JoinGroup)
}

// SetMulticastLoop toggles local delivery of outgoing multicast.
func (u *UDP) SetMulticastLoop(on bool) error {
	return u.sockopt(func(fd int, v6 bool) error { return sysfd.SetMulticastLoop(fd, v6, on) })
}

// SetMulticastTTL sets the multicast hop limit, 1 to 255.
func (u *UDP) SetMulticastTTL(ttl int) error {
	if ttl < 1 || ttl > 255 {
		return api.EINVAL
	}
	return u.sockopt(func(fd int, v6 bool) error { return sysfd.SetMulticastTTL(fd, v6, ttl) })
}

// SetTTL sets the unicast hop limit, 1 to 255.
func (u *UDP) SetTTL(ttl int) error {
	if ttl < 1 || ttl > 255 {
		return api.EINVAL
	}
	return u.sockopt(func(fd int, v6 bool) error { return sysfd.SetTTL(fd, v6, ttl) })
}

// SetBroadcast toggles SO_BROADCAST.
func (u *UDP) SetBroadcast(on bool) error {
	return u.sockopt(func(fd int, _ bool) error { return sysfd.SetBroadcast(fd, on) })
}

func (u *UDP) sockopt(set func(fd int, v6 bool) error) error {
	if err := u.alive(); err != nil {
		return err
	}
	if u.scb.FD < 0 {
		return api.EBADF
	}
	return set(u.fd(), u.family == sysfd.AFInet6)
}

func (u *UDP) closeUDP() {
	l := u.loop
	if u.token != 0 {
		_ = l.poller.Remove(u.fd())
		l.removeWatcher(u.token)
		u.token = 0
	}
	for _, req := range u.sends {
		req.bufs = nil
		u.cancel(&req.request, func(err error) {
			if req.cb != nil {
				req.cb(req, err)
			}
		})
	}
	u.sends = nil
	u.reading = false
	if u.scb.FD >= 0 {
		_ = sysfd.Close(u.fd())
		u.scb.FD = -1
	}
	if u.from != nil {
		u.from.Free()
		u.from = nil
	}
	u.scb.QueuedBytes = 0
}
