// File: uv/getaddrinfo.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Asynchronous name resolution over the Go resolver.

package uv

import (
	"context"
	"net"
	"net/netip"
	"strconv"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
	"github.com/momentics/hioload-uv/reactor"
)

// Address info flags.
const (
	AIPassive     = 0x1
	AICanonName   = 0x2
	AINumericHost = 0x4
	AINumericServ = 0x400
)

// Protocol numbers reported in AddrInfo.
const (
	IPProtoTCP = 6
	IPProtoUDP = 17
)

// AddrInfo is one resolution result. Results form a list through Next and
// must be released with FreeAddrInfo. As hints only Flags, Family, SockType
// and Protocol are read.
type AddrInfo struct {
	Flags     int
	Family    int
	SockType  int
	Protocol  int
	Addr      SockAddr
	CanonName string
	Next      *AddrInfo
}

// GetAddrInfoCallback receives the result list, or err when resolution
// failed.
type GetAddrInfoCallback func(req *GetAddrInfoReq, err error, res *AddrInfo)

// GetAddrInfoReq is a pending resolution.
type GetAddrInfoReq struct {
	request
	gcb    *reactor.GetAddrInfoCB
	cb     GetAddrInfoCallback
	cancel context.CancelFunc
}

// Count returns the number of entries the last resolution produced.
func (r *GetAddrInfoReq) Count() int {
	if r.gcb == nil {
		return 0
	}
	return int(r.gcb.Count)
}

// Cancel aborts an in-flight resolution; the callback then reports
// EAI_CANCELED.
func (r *GetAddrInfoReq) Cancel() {
	if r.inflight && r.cancel != nil {
		r.cancel()
	}
}

type resolved struct {
	addrs []netip.Addr
	port  uint16
	canon string
	err   error
}

// GetAddrInfo resolves node and service. Either may be empty but not both.
func GetAddrInfo(l *Loop, req *GetAddrInfoReq, cb GetAddrInfoCallback, node, service string, hints *AddrInfo) error {
	if err := checkLoop(l); err != nil {
		return err
	}
	if req == nil || cb == nil || (node == "" && service == "") {
		return api.EINVAL
	}
	var h AddrInfo
	if hints != nil {
		h = *hints
		h.Addr, h.Next, h.CanonName = nil, nil, ""
	}
	switch h.Family {
	case 0, sysfd.AFInet, sysfd.AFInet6:
	default:
		return api.EAI_FAMILY
	}
	switch h.SockType {
	case 0, sysfd.SockStream, sysfd.SockDgram:
	default:
		return api.EAI_SOCKTYPE
	}

	req.submit(l, api.KindGetAddrInfo)
	req.gcb = reactor.View[reactor.GetAddrInfoCB](req.block)
	req.gcb.Family = int32(h.Family)
	req.gcb.SockType = int32(h.SockType)
	req.gcb.Protocol = int32(h.Protocol)
	req.gcb.Flags = int32(h.Flags)
	req.cb = cb
	ctx, cancel := context.WithCancel(context.Background())
	req.cancel = cancel

	go func() {
		res := resolve(ctx, node, service, h)
		cancel()
		l.post(func() { req.complete(res, h) })
	}()
	return nil
}

func resolve(ctx context.Context, node, service string, h AddrInfo) (res resolved) {
	defer func() {
		if ctx.Err() != nil {
			res.err = api.EAI_CANCELED
		}
	}()
	network := "ip"
	switch h.Family {
	case sysfd.AFInet:
		network = "ip4"
	case sysfd.AFInet6:
		network = "ip6"
	}

	switch {
	case node == "":
		if h.Flags&AIPassive != 0 {
			res.addrs = []netip.Addr{netip.IPv4Unspecified(), netip.IPv6Unspecified()}
		} else {
			res.addrs = []netip.Addr{netip.MustParseAddr("127.0.0.1"), netip.IPv6Loopback()}
		}
	default:
		if a, err := netip.ParseAddr(node); err == nil {
			res.addrs = []netip.Addr{a}
		} else if h.Flags&AINumericHost != 0 {
			res.err = api.EAI_NONAME
			return res
		} else {
			res.addrs, res.err = net.DefaultResolver.LookupNetIP(ctx, network, node)
			if res.err != nil {
				return res
			}
		}
		if h.Flags&AICanonName != 0 {
			if cname, err := net.DefaultResolver.LookupCNAME(ctx, node); err == nil {
				res.canon = cname
			} else {
				res.canon = node
			}
		}
	}

	if service != "" {
		if p, err := strconv.ParseUint(service, 10, 16); err == nil {
			res.port = uint16(p)
		} else if h.Flags&AINumericServ != 0 {
			res.err = api.EAI_NONAME
			return res
		} else {
			proto := "tcp"
			if h.SockType == sysfd.SockDgram {
				proto = "udp"
			}
			p, err := net.DefaultResolver.LookupPort(ctx, proto, service)
			if err != nil {
				res.err = api.EAI_SERVICE
				return res
			}
			res.port = uint16(p)
		}
	}
	return res
}

func (r *GetAddrInfoReq) complete(res resolved, h AddrInfo) {
	r.finish()
	r.cancel = nil
	if res.err != nil {
		code := api.FromSys(res.err)
		r.gcb.Status = int32(code)
		r.cb(r, code, nil)
		return
	}
	head := buildAddrInfo(res, h)
	n := 0
	for ai := head; ai != nil; ai = ai.Next {
		n++
	}
	r.gcb.Count = int32(n)
	if head == nil {
		r.gcb.Status = int32(api.EAI_NODATA)
		r.cb(r, api.EAI_NODATA, nil)
		return
	}
	r.cb(r, nil, head)
}

func buildAddrInfo(res resolved, h AddrInfo) *AddrInfo {
	socktypes := []int{sysfd.SockStream, sysfd.SockDgram}
	if h.SockType != 0 {
		socktypes = []int{h.SockType}
	}
	var head, tail *AddrInfo
	for _, a := range res.addrs {
		a = a.Unmap()
		family := sysfd.AFInet6
		if a.Is4() {
			family = sysfd.AFInet
		}
		if h.Family != 0 && h.Family != family {
			continue
		}
		for _, st := range socktypes {
			proto := IPProtoTCP
			if st == sysfd.SockDgram {
				proto = IPProtoUDP
			}
			if h.Protocol != 0 && h.Protocol != proto {
				continue
			}
			ai := &AddrInfo{
				Flags:    h.Flags,
				Family:   family,
				SockType: st,
				Protocol: proto,
				Addr:     newSockAddr(netip.AddrPortFrom(a, res.port)),
			}
			if head == nil {
				ai.CanonName = res.canon
				head = ai
			} else {
				tail.Next = ai
			}
			tail = ai
		}
	}
	return head
}

// FreeAddrInfo releases the addresses of a result list.
func FreeAddrInfo(ai *AddrInfo) {
	for ; ai != nil; ai = ai.Next {
		if ai.Addr != nil {
			ai.Addr.Free()
			ai.Addr = nil
		}
	}
}
