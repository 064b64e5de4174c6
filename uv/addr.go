// File: uv/addr.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket addresses live in allocator blocks laid out like the native
// sockaddr structures: family (host order), port (network order), then the
// family-specific address fields.

package uv

import (
	"encoding/binary"
	"net"
	"net/netip"
	"strconv"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
	"github.com/momentics/hioload-uv/pool"
	"github.com/momentics/hioload-uv/reactor"
)

// SockAddr is implemented by every address type.
type SockAddr interface {
	Family() int
	AddrPort() netip.AddrPort
	Name() string
	Port() int
	Free()
}

// SockAddrIn is an IPv4 address with port.
type SockAddrIn struct {
	block pool.Block
	view  bool
}

// SockAddrIn6 is an IPv6 address with port and scope.
type SockAddrIn6 struct {
	block pool.Block
	view  bool
}

// SockAddrStorage is large enough for any supported family. It receives
// getsockname, getpeername and datagram source addresses.
type SockAddrStorage struct {
	block pool.Block
}

// IP4Addr parses dotted-quad text into a new IPv4 address. Invalid text or
// an out of range port yields EINVAL.
func IP4Addr(text string, port int) (*SockAddrIn, error) {
	a, err := netip.ParseAddr(text)
	if err != nil || !a.Is4() || port < 0 || port > 0xffff {
		return nil, api.EINVAL
	}
	sa := &SockAddrIn{block: pool.Default().Alloc(api.KindSockaddrIn)}
	putIn4(sa.block, netip.AddrPortFrom(a, uint16(port)))
	return sa, nil
}

// IP6Addr parses IPv6 text into a new IPv6 address. A zone may be an
// interface name or a numeric scope id.
func IP6Addr(text string, port int) (*SockAddrIn6, error) {
	a, err := netip.ParseAddr(text)
	if err != nil || !a.Is6() || port < 0 || port > 0xffff {
		return nil, api.EINVAL
	}
	scope, ok := scopeID(a.Zone())
	if !ok {
		return nil, api.EINVAL
	}
	sa := &SockAddrIn6{block: pool.Default().Alloc(api.KindSockaddrIn6)}
	putIn6(sa.block, netip.AddrPortFrom(a, uint16(port)), scope)
	return sa, nil
}

// NewSockAddrStorage allocates an empty address of unspecified family.
func NewSockAddrStorage() *SockAddrStorage {
	return &SockAddrStorage{block: pool.Default().Alloc(api.KindSockaddrStorage)}
}

// IsIP4 reports whether sa holds an IPv4 address.
func IsIP4(sa SockAddr) bool { return sa != nil && sa.Family() == sysfd.AFInet }

// IsIP6 reports whether sa holds an IPv6 address.
func IsIP6(sa SockAddr) bool { return sa != nil && sa.Family() == sysfd.AFInet6 }

// Family returns AF_INET.
func (a *SockAddrIn) Family() int { return sysfd.AFInet }

// AddrPort decodes the block into an address and host-order port.
func (a *SockAddrIn) AddrPort() netip.AddrPort { return getIn4(a.block) }

// Name returns the dotted-quad text of the address.
func (a *SockAddrIn) Name() string { return a.AddrPort().Addr().String() }

// Port returns the port in host byte order.
func (a *SockAddrIn) Port() int { return int(binary.BigEndian.Uint16(a.block[2:4])) }

// Free returns the block to the allocator. Views obtained from a storage do
// not own their block and Free is a no-op on them.
func (a *SockAddrIn) Free() {
	if a.block == nil || a.view {
		return
	}
	pool.Default().Free(api.KindSockaddrIn, a.block)
	a.block = nil
}

// Family returns AF_INET6.
func (a *SockAddrIn6) Family() int { return sysfd.AFInet6 }

// AddrPort decodes the block, zone included, into an address and port.
func (a *SockAddrIn6) AddrPort() netip.AddrPort { return getIn6(a.block) }

// Name returns the textual IPv6 address including its zone, if any.
func (a *SockAddrIn6) Name() string { return a.AddrPort().Addr().String() }

// Port returns the port in host byte order.
func (a *SockAddrIn6) Port() int { return int(binary.BigEndian.Uint16(a.block[2:4])) }

// ScopeID returns the interface index of a link-local address.
func (a *SockAddrIn6) ScopeID() uint32 { return binary.NativeEndian.Uint32(a.block[24:28]) }

// Free returns the block to the allocator; a no-op on storage views.
func (a *SockAddrIn6) Free() {
	if a.block == nil || a.view {
		return
	}
	pool.Default().Free(api.KindSockaddrIn6, a.block)
	a.block = nil
}

// Family returns the stored family, 0 when empty.
func (s *SockAddrStorage) Family() int { return int(binary.NativeEndian.Uint16(s.block[0:2])) }

// AddrPort decodes the stored address, the zero value when empty.
func (s *SockAddrStorage) AddrPort() netip.AddrPort {
	switch s.Family() {
	case sysfd.AFInet:
		return getIn4(s.block)
	case sysfd.AFInet6:
		return getIn6(s.block)
	}
	return netip.AddrPort{}
}

// Name returns the textual address, "" when empty.
func (s *SockAddrStorage) Name() string {
	ap := s.AddrPort()
	if !ap.IsValid() {
		return ""
	}
	return ap.Addr().String()
}

// Port returns the stored port in host byte order.
func (s *SockAddrStorage) Port() int { return int(binary.BigEndian.Uint16(s.block[2:4])) }

// Addr returns a family-specific view sharing the storage block, or nil when
// the storage is empty.
func (s *SockAddrStorage) Addr() SockAddr {
	switch s.Family() {
	case sysfd.AFInet:
		return &SockAddrIn{block: s.block[:reactor.SizeofSockaddrIn], view: true}
	case sysfd.AFInet6:
		return &SockAddrIn6{block: s.block[:reactor.SizeofSockaddrIn6], view: true}
	}
	return nil
}

// Free returns the block to the allocator. Views taken with Addr must not
// be used afterwards.
func (s *SockAddrStorage) Free() {
	if s.block == nil {
		return
	}
	pool.Default().Free(api.KindSockaddrStorage, s.block)
	s.block = nil
}

func (s *SockAddrStorage) set(ap netip.AddrPort) {
	clear(s.block)
	if !ap.IsValid() {
		return
	}
	if ap.Addr().Is4() {
		putIn4(s.block, ap)
		return
	}
	scope, _ := scopeID(ap.Addr().Zone())
	putIn6(s.block, ap, scope)
}

// newSockAddr allocates the family-specific address for ap.
func newSockAddr(ap netip.AddrPort) SockAddr {
	if ap.Addr().Is4() {
		sa := &SockAddrIn{block: pool.Default().Alloc(api.KindSockaddrIn)}
		putIn4(sa.block, ap)
		return sa
	}
	scope, _ := scopeID(ap.Addr().Zone())
	sa := &SockAddrIn6{block: pool.Default().Alloc(api.KindSockaddrIn6)}
	putIn6(sa.block, ap, scope)
	return sa
}

func putIn4(b []byte, ap netip.AddrPort) {
	binary.NativeEndian.PutUint16(b[0:2], uint16(sysfd.AFInet))
	binary.BigEndian.PutUint16(b[2:4], ap.Port())
	v := ap.Addr().As4()
	copy(b[4:8], v[:])
}

func getIn4(b []byte) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte(b[4:8])), binary.BigEndian.Uint16(b[2:4]))
}

func putIn6(b []byte, ap netip.AddrPort, scope uint32) {
	binary.NativeEndian.PutUint16(b[0:2], uint16(sysfd.AFInet6))
	binary.BigEndian.PutUint16(b[2:4], ap.Port())
	v := ap.Addr().As16()
	copy(b[8:24], v[:])
	binary.NativeEndian.PutUint32(b[24:28], scope)
}

func getIn6(b []byte) netip.AddrPort {
	a := netip.AddrFrom16([16]byte(b[8:24]))
	if scope := binary.NativeEndian.Uint32(b[24:28]); scope != 0 {
		a = a.WithZone(strconv.FormatUint(uint64(scope), 10))
	}
	return netip.AddrPortFrom(a, binary.BigEndian.Uint16(b[2:4]))
}

func scopeID(zone string) (uint32, bool) {
	if zone == "" {
		return 0, true
	}
	if id, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(id), true
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, false
	}
	return uint32(ifi.Index), true
}
