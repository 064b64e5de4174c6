//go:build unix

// File: internal/sysfd/sysfd_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking socket primitives over golang.org/x/sys/unix.

package sysfd

import (
	"net/netip"
	"strconv"
	"syscall"

	"github.com/momentics/hioload-uv/api"
	"golang.org/x/sys/unix"
)

// Supported reports whether descriptor operations exist on this platform.
const Supported = true

func errno(err error) error {
	if err == nil {
		return nil
	}
	return api.FromSys(err)
}

// Socket creates a non-blocking close-on-exec socket.
func Socket(family, sotype int) (int, error) {
	// Hold ForkLock so a concurrent spawn cannot inherit fd before CLOEXEC.
	syscall.ForkLock.RLock()
	fd, err := unix.Socket(family, sotype, 0)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, errno(err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, errno(err)
	}
	return fd, nil
}

// Socketpair creates a connected pair of blocking close-on-exec stream
// sockets. Loop-side ends are switched with SetNonblock when opened.
func Socketpair() (int, int, error) {
	syscall.ForkLock.RLock()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err == nil {
		unix.CloseOnExec(fds[0])
		unix.CloseOnExec(fds[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, -1, errno(err)
	}
	return fds[0], fds[1], nil
}

// SetNonblock switches fd to non-blocking mode.
func SetNonblock(fd int) error { return errno(unix.SetNonblock(fd, true)) }

// SetBlocking switches fd to blocking mode.
func SetBlocking(fd int) error { return errno(unix.SetNonblock(fd, false)) }

// Family returns the socket family for ap.
func Family(ap netip.AddrPort) int {
	if ap.Addr().Is4() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

// Family constants re-exported for the loop.
const (
	AFInet     = unix.AF_INET
	AFInet6    = unix.AF_INET6
	AFUnix     = unix.AF_UNIX
	SockStream = unix.SOCK_STREAM
	SockDgram  = unix.SOCK_DGRAM
)

func toSockaddr(ap netip.AddrPort) unix.Sockaddr {
	a := ap.Addr()
	if a.Is4() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: a.As4()}
	}
	sa := &unix.SockaddrInet6{Port: int(ap.Port()), Addr: a.As16()}
	if z := a.Zone(); z != "" {
		if id, err := strconv.ParseUint(z, 10, 32); err == nil {
			sa.ZoneId = uint32(id)
		}
	}
	return sa
}

func fromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		a := netip.AddrFrom16(sa.Addr)
		if sa.ZoneId != 0 {
			a = a.WithZone(strconv.FormatUint(uint64(sa.ZoneId), 10))
		}
		return netip.AddrPortFrom(a, uint16(sa.Port))
	}
	return netip.AddrPort{}
}

// Bind binds an IP socket.
func Bind(fd int, ap netip.AddrPort) error {
	return errno(unix.Bind(fd, toSockaddr(ap)))
}

// BindUnix binds a unix-domain socket to path.
func BindUnix(fd int, path string) error {
	return errno(unix.Bind(fd, &unix.SockaddrUnix{Name: path}))
}

// Connect starts a non-blocking connect. EINPROGRESS is reported as nil with
// inProgress set.
func Connect(fd int, ap netip.AddrPort) (inProgress bool, err error) {
	return connect(fd, toSockaddr(ap))
}

// ConnectUnix starts a non-blocking unix-domain connect.
func ConnectUnix(fd int, path string) (bool, error) {
	return connect(fd, &unix.SockaddrUnix{Name: path})
}

func connect(fd int, sa unix.Sockaddr) (bool, error) {
	err := unix.Connect(fd, sa)
	switch err {
	case nil:
		return false, nil
	case unix.EINPROGRESS, unix.EALREADY, unix.EINTR:
		return true, nil
	}
	return false, errno(err)
}

// SocketError fetches and clears SO_ERROR.
func SocketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return errno(err)
	}
	if v != 0 {
		return errno(syscall.Errno(v))
	}
	return nil
}

// Listen marks fd as accepting connections.
func Listen(fd, backlog int) error { return errno(unix.Listen(fd, backlog)) }

// Accept takes one pending connection as a non-blocking descriptor.
func Accept(fd int) (int, error) {
	syscall.ForkLock.RLock()
	nfd, _, err := unix.Accept(fd)
	if err == nil {
		unix.CloseOnExec(nfd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, errno(err)
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return -1, errno(err)
	}
	return nfd, nil
}

// Read reads into p. A zero-byte read on a non-empty buffer is EOF.
func Read(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if err != nil {
		return 0, errno(err)
	}
	if n == 0 && len(p) > 0 {
		return 0, api.EOF
	}
	return n, nil
}

// Writev writes as much of bufs as the descriptor accepts without blocking.
// At most maxIovecs buffers go out per call; the caller loops on the rest.
func Writev(fd int, bufs [][]byte) (int, error) {
	if len(bufs) > maxIovecs {
		bufs = bufs[:maxIovecs]
	}
	for {
		n, err := writev(fd, bufs)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		if err != nil {
			return n, errno(err)
		}
		if n == 0 && totalLen(bufs) > 0 {
			return 0, api.EAGAIN
		}
		return n, nil
	}
}

func totalLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	return n
}

// Recvfrom reads one datagram.
func Recvfrom(fd int, p []byte) (int, netip.AddrPort, bool, error) {
	n, _, flags, from, err := unix.Recvmsg(fd, p, nil, 0)
	if err != nil {
		return 0, netip.AddrPort{}, false, errno(err)
	}
	return n, fromSockaddr(from), flags&unix.MSG_TRUNC != 0, nil
}

// Sendto sends bufs as one datagram.
func Sendto(fd int, bufs [][]byte, to netip.AddrPort) (int, error) {
	n, err := unix.SendmsgBuffers(fd, bufs, nil, toSockaddr(to), 0)
	return n, errno(err)
}

// Sockname returns the local address of fd.
func Sockname(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return netip.AddrPort{}, errno(err)
	}
	return fromSockaddr(sa), nil
}

// Peername returns the remote address of fd.
func Peername(fd int) (netip.AddrPort, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return netip.AddrPort{}, errno(err)
	}
	return fromSockaddr(sa), nil
}

// SetReuseAddr enables SO_REUSEADDR.
func SetReuseAddr(fd int) error {
	return errno(unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1))
}

// SetV6Only toggles IPV6_V6ONLY.
func SetV6Only(fd int, on bool) error {
	return errno(unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, boolInt(on)))
}

// SetNodelay toggles TCP_NODELAY.
func SetNodelay(fd int, on bool) error {
	return errno(unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(on)))
}

// SetKeepalive toggles SO_KEEPALIVE and sets the idle delay in seconds.
func SetKeepalive(fd int, on bool, delay int) error {
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolInt(on)); err != nil {
		return errno(err)
	}
	if on && delay > 0 {
		return errno(setKeepaliveIdle(fd, delay))
	}
	return nil
}

// SetBroadcast toggles SO_BROADCAST.
func SetBroadcast(fd int, on bool) error {
	return errno(unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, boolInt(on)))
}

// SetTTL sets the unicast hop limit for the socket family.
func SetTTL(fd int, v6 bool, ttl int) error {
	if v6 {
		return errno(unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, ttl))
	}
	return errno(unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TTL, ttl))
}

// SetMulticastTTL sets the multicast hop limit.
func SetMulticastTTL(fd int, v6 bool, ttl int) error {
	if v6 {
		return errno(unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_HOPS, ttl))
	}
	return errno(unix.SetsockoptByte(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, byte(ttl)))
}

// SetMulticastLoop toggles loopback of outgoing multicast.
func SetMulticastLoop(fd int, v6 bool, on bool) error {
	if v6 {
		return errno(unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_LOOP, boolInt(on)))
	}
	return errno(unix.SetsockoptByte(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_LOOP, byte(boolInt(on))))
}

// SetMembership joins or leaves a multicast group on the interface whose
// address is iface (unspecified selects the default interface).
func SetMembership(fd int, group, iface netip.Addr, join bool) error {
	if group.Is4() {
		mreq := &unix.IPMreq{Multiaddr: group.As4()}
		if iface.IsValid() && iface.Is4() {
			mreq.Interface = iface.As4()
		}
		opt := unix.IP_DROP_MEMBERSHIP
		if join {
			opt = unix.IP_ADD_MEMBERSHIP
		}
		return errno(unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, opt, mreq))
	}
	mreq := &unix.IPv6Mreq{Multiaddr: group.As16()}
	if z := group.Zone(); z != "" {
		if id, err := strconv.ParseUint(z, 10, 32); err == nil {
			mreq.Interface = uint32(id)
		}
	}
	opt := unix.IPV6_LEAVE_GROUP
	if join {
		opt = unix.IPV6_JOIN_GROUP
	}
	return errno(unix.SetsockoptIPv6Mreq(fd, unix.IPPROTO_IPV6, opt, mreq))
}

// Close closes fd.
func Close(fd int) error { return errno(unix.Close(fd)) }

// Dup duplicates fd with close-on-exec set.
func Dup(fd int) (int, error) {
	syscall.ForkLock.RLock()
	nfd, err := unix.Dup(fd)
	if err == nil {
		unix.CloseOnExec(nfd)
	}
	syscall.ForkLock.RUnlock()
	return nfd, errno(err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
