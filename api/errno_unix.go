//go:build unix

// Package api
// Author: momentics <momentics@gmail.com>
//
// Unix codes are the negated platform errno values.

package api

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	EACCES        = Errno(-int32(unix.EACCES))
	ECONNREFUSED  = Errno(-int32(unix.ECONNREFUSED))
	ECONNRESET    = Errno(-int32(unix.ECONNRESET))
	ENOTCONN      = Errno(-int32(unix.ENOTCONN))
	EPIPE         = Errno(-int32(unix.EPIPE))
	EAGAIN        = Errno(-int32(unix.EAGAIN))
	EINVAL        = Errno(-int32(unix.EINVAL))
	EBUSY         = Errno(-int32(unix.EBUSY))
	EBADF         = Errno(-int32(unix.EBADF))
	ENOENT        = Errno(-int32(unix.ENOENT))
	EEXIST        = Errno(-int32(unix.EEXIST))
	ENOTDIR       = Errno(-int32(unix.ENOTDIR))
	EISDIR        = Errno(-int32(unix.EISDIR))
	ENOTEMPTY     = Errno(-int32(unix.ENOTEMPTY))
	EADDRINUSE    = Errno(-int32(unix.EADDRINUSE))
	EADDRNOTAVAIL = Errno(-int32(unix.EADDRNOTAVAIL))
	EAFNOSUPPORT  = Errno(-int32(unix.EAFNOSUPPORT))
	EALREADY      = Errno(-int32(unix.EALREADY))
	ECANCELED     = Errno(-int32(unix.ECANCELED))
	ENOSYS        = Errno(-int32(unix.ENOSYS))
	ETIMEDOUT     = Errno(-int32(unix.ETIMEDOUT))
	EPERM         = Errno(-int32(unix.EPERM))
	ESRCH         = Errno(-int32(unix.ESRCH))
	EMFILE        = Errno(-int32(unix.EMFILE))
	ENOMEM        = Errno(-int32(unix.ENOMEM))
	ENOBUFS       = Errno(-int32(unix.ENOBUFS))
)

func fromErrno(e syscall.Errno) Errno {
	if e == 0 {
		return OK
	}
	return Errno(-int32(e))
}

func platformLookup(code Errno) (errInfo, bool) {
	if code >= 0 {
		return errInfo{}, false
	}
	e := unix.Errno(-code)
	name := unix.ErrnoName(e)
	if name == "" {
		return errInfo{}, false
	}
	return errInfo{name: name, msg: e.Error()}, true
}
