// File: uv/tcp.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"errors"
	"net/netip"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
)

// TCP bind flags.
const (
	TCPIPv6Only uint = 1
)

// TCP is a TCP stream or listener. The socket is created lazily by the first
// bind or connect, when the address family is known.
type TCP struct {
	stream
	family    int
	nodelay   bool
	keepalive bool
	keepDelay time.Duration
}

// Init attaches the handle to l.
func (t *TCP) Init(l *Loop) error {
	if err := t.initStream(l, api.KindTCP, t); err != nil {
		return err
	}
	t.family = 0
	t.nodelay, t.keepalive, t.keepDelay = false, false, 0
	return nil
}

// Open adopts an existing socket descriptor and makes it non-blocking.
func (t *TCP) Open(fd int) error {
	if err := t.alive(); err != nil {
		return err
	}
	if t.scb.FD >= 0 {
		return api.EBUSY
	}
	if err := sysfd.SetNonblock(fd); err != nil {
		return err
	}
	ap, err := sysfd.Sockname(fd)
	if err != nil {
		return err
	}
	t.scb.FD = int32(fd)
	t.family = sysfd.Family(ap)
	if _, err := sysfd.Peername(fd); err == nil {
		t.scb.Flags |= flagConnected
	}
	return t.applyOptions()
}

func (t *TCP) ensureSocket(family int) error {
	if t.scb.FD >= 0 {
		if t.family != family {
			return api.EINVAL
		}
		return nil
	}
	fd, err := sysfd.Socket(family, sysfd.SockStream)
	if err != nil {
		return err
	}
	t.scb.FD = int32(fd)
	t.family = family
	return t.applyOptions()
}

func (t *TCP) applyOptions() error {
	if t.nodelay {
		if err := sysfd.SetNodelay(t.fd(), true); err != nil {
			return err
		}
	}
	if t.keepalive {
		return sysfd.SetKeepalive(t.fd(), true, int(t.keepDelay/time.Second))
	}
	return nil
}

// Bind4 binds to an IPv4 address. SO_REUSEADDR is always set.
func (t *TCP) Bind4(addr *SockAddrIn, flags uint) error {
	if addr == nil {
		return api.EINVAL
	}
	if flags&TCPIPv6Only != 0 {
		return api.EINVAL
	}
	return t.bind(addr.AddrPort(), flags)
}

// Bind6 binds to an IPv6 address; TCPIPv6Only disables dual-stack.
func (t *TCP) Bind6(addr *SockAddrIn6, flags uint) error {
	if addr == nil {
		return api.EINVAL
	}
	return t.bind(addr.AddrPort(), flags)
}

func (t *TCP) bind(ap netip.AddrPort, flags uint) error {
	if err := t.alive(); err != nil {
		return err
	}
	if flags&^TCPIPv6Only != 0 {
		return api.EINVAL
	}
	if err := t.ensureSocket(sysfd.Family(ap)); err != nil {
		return err
	}
	if err := sysfd.SetReuseAddr(t.fd()); err != nil {
		return err
	}
	if t.family == sysfd.AFInet6 {
		if err := sysfd.SetV6Only(t.fd(), flags&TCPIPv6Only != 0); err != nil {
			return err
		}
	}
	return sysfd.Bind(t.fd(), ap)
}

// Listen starts accepting connections. An unbound handle gets an IPv4 socket
// on an ephemeral port.
func (t *TCP) Listen(backlog int, cb ConnectionCallback) error {
	if cb == nil {
		return api.EINVAL
	}
	if err := t.alive(); err != nil {
		return err
	}
	if t.scb.FD < 0 {
		if err := t.ensureSocket(sysfd.AFInet); err != nil {
			return err
		}
	}
	return t.stream.Listen(backlog, cb)
}

// Connect4 starts connecting to an IPv4 peer.
func (t *TCP) Connect4(req *ConnectReq, addr *SockAddrIn, cb ConnectCallback) error {
	if addr == nil {
		return api.EINVAL
	}
	return t.connectTo(req, addr.AddrPort(), cb)
}

// Connect6 starts connecting to an IPv6 peer.
func (t *TCP) Connect6(req *ConnectReq, addr *SockAddrIn6, cb ConnectCallback) error {
	if addr == nil {
		return api.EINVAL
	}
	return t.connectTo(req, addr.AddrPort(), cb)
}

func (t *TCP) connectTo(req *ConnectReq, ap netip.AddrPort, cb ConnectCallback) error {
	if req == nil {
		return api.EINVAL
	}
	if err := t.alive(); err != nil {
		return err
	}
	if err := t.ensureSocket(sysfd.Family(ap)); err != nil {
		return err
	}
	return t.connect(req, cb, func(fd int) (bool, error) {
		return sysfd.Connect(fd, ap)
	}, refused)
}

// refused selects the connect failures reported asynchronously.
func refused(err error) bool { return errors.Is(err, api.ECONNREFUSED) }

// Nodelay toggles Nagle's algorithm. Before the socket exists the setting is
// remembered and applied on creation.
func (t *TCP) Nodelay(on bool) error {
	if err := t.alive(); err != nil {
		return err
	}
	t.nodelay = on
	if t.scb.FD < 0 {
		return nil
	}
	return sysfd.SetNodelay(t.fd(), on)
}

// Keepalive toggles TCP keep-alive probes with the given idle delay.
func (t *TCP) Keepalive(on bool, delay time.Duration) error {
	if err := t.alive(); err != nil {
		return err
	}
	if on && delay < time.Second {
		return api.EINVAL
	}
	t.keepalive, t.keepDelay = on, delay
	if t.scb.FD < 0 {
		return nil
	}
	return sysfd.SetKeepalive(t.fd(), on, int(delay/time.Second))
}

// SimultaneousAccepts is accepted for portability; readiness backends accept
// one connection at a time regardless.
func (t *TCP) SimultaneousAccepts(enable bool) error {
	return t.alive()
}

// Getsockname stores the local address in out.
func (t *TCP) Getsockname(out *SockAddrStorage) error {
	return t.sockaddr(out, sysfd.Sockname)
}

// Getpeername stores the remote address in out; ENOTCONN before connect.
func (t *TCP) Getpeername(out *SockAddrStorage) error {
	return t.sockaddr(out, sysfd.Peername)
}

func (t *TCP) sockaddr(out *SockAddrStorage, get func(fd int) (netip.AddrPort, error)) error {
	if out == nil {
		return api.EINVAL
	}
	if err := t.alive(); err != nil {
		return err
	}
	if t.scb.FD < 0 {
		return api.EBADF
	}
	ap, err := get(t.fd())
	if err != nil {
		return err
	}
	out.set(ap)
	return nil
}
