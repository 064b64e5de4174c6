//go:build !unix

// File: internal/sysfd/sysfd_other.go
// Author: momentics <momentics@gmail.com>
//
// Descriptor operations report ENOSYS where no unix backend exists.

package sysfd

import (
	"net/netip"

	"github.com/momentics/hioload-uv/api"
)

const Supported = false

const (
	AFInet     = 2
	AFInet6    = 23
	AFUnix     = 1
	SockStream = 1
	SockDgram  = 2

	O_RDONLY = 0x0
	O_WRONLY = 0x1
	O_RDWR   = 0x2
	O_CREAT  = 0x40
	O_TRUNC  = 0x200
	O_APPEND = 0x400
	O_EXCL   = 0x80
)

type SpawnAttr struct {
	File   string
	Args   []string
	Env    []string
	Dir    string
	Files  []int
	Setsid bool
	UID    *uint32
	GID    *uint32
}

func Family(ap netip.AddrPort) int {
	if ap.Addr().Is4() {
		return AFInet
	}
	return AFInet6
}

func Socket(family, sotype int) (int, error)                        { return -1, api.ENOSYS }
func Socketpair() (int, int, error)                                 { return -1, -1, api.ENOSYS }
func SetNonblock(fd int) error                                      { return api.ENOSYS }
func SetBlocking(fd int) error                                      { return api.ENOSYS }
func Bind(fd int, ap netip.AddrPort) error                          { return api.ENOSYS }
func BindUnix(fd int, path string) error                            { return api.ENOSYS }
func Connect(fd int, ap netip.AddrPort) (bool, error)               { return false, api.ENOSYS }
func ConnectUnix(fd int, path string) (bool, error)                 { return false, api.ENOSYS }
func SocketError(fd int) error                                      { return api.ENOSYS }
func Listen(fd, backlog int) error                                  { return api.ENOSYS }
func Accept(fd int) (int, error)                                    { return -1, api.ENOSYS }
func Read(fd int, p []byte) (int, error)                            { return 0, api.ENOSYS }
func Writev(fd int, bufs [][]byte) (int, error)                     { return 0, api.ENOSYS }
func Recvfrom(fd int, p []byte) (int, netip.AddrPort, bool, error)  { return 0, netip.AddrPort{}, false, api.ENOSYS }
func Sendto(fd int, bufs [][]byte, to netip.AddrPort) (int, error)  { return 0, api.ENOSYS }
func Sockname(fd int) (netip.AddrPort, error)                       { return netip.AddrPort{}, api.ENOSYS }
func Peername(fd int) (netip.AddrPort, error)                       { return netip.AddrPort{}, api.ENOSYS }
func SetReuseAddr(fd int) error                                     { return api.ENOSYS }
func SetV6Only(fd int, on bool) error                               { return api.ENOSYS }
func SetNodelay(fd int, on bool) error                              { return api.ENOSYS }
func SetKeepalive(fd int, on bool, delay int) error                 { return api.ENOSYS }
func SetBroadcast(fd int, on bool) error                            { return api.ENOSYS }
func SetTTL(fd int, v6 bool, ttl int) error                         { return api.ENOSYS }
func SetMulticastTTL(fd int, v6 bool, ttl int) error                { return api.ENOSYS }
func SetMulticastLoop(fd int, v6 bool, on bool) error               { return api.ENOSYS }
func SetMembership(fd int, group, iface netip.Addr, join bool) error { return api.ENOSYS }
func Close(fd int) error                                            { return api.ENOSYS }
func Dup(fd int) (int, error)                                       { return -1, api.ENOSYS }

func Open(path string, flags int, mode uint32) (int, error)   { return -1, api.ENOSYS }
func Pread(fd int, p []byte, offset int64) (int, error)       { return 0, api.ENOSYS }
func Pwrite(fd int, p []byte, offset int64) (int, error)      { return 0, api.ENOSYS }
func Unlink(path string) error                                { return api.ENOSYS }
func Mkdir(path string, mode uint32) error                    { return api.ENOSYS }
func Rmdir(path string) error                                 { return api.ENOSYS }
func Stat(path string) (api.Stat, error)                      { return api.Stat{}, api.ENOSYS }
func Fstat(fd int) (api.Stat, error)                          { return api.Stat{}, api.ENOSYS }
func Readdir(path string) ([]string, error)                   { return nil, api.ENOSYS }
func Spawn(attr *SpawnAttr) (int, error)                      { return 0, api.ENOSYS }
func Wait(pid int) (int64, int, error)                        { return 0, 0, api.ENOSYS }
func Kill(pid, signum int) error                              { return api.ENOSYS }
