//go:build !unix

// Package api
// Author: momentics <momentics@gmail.com>
//
// Fixed codes for platforms without a native negated-errno convention.

package api

import "syscall"

const (
	EACCES        Errno = -4093
	ECONNREFUSED  Errno = -4079
	ECONNRESET    Errno = -4078
	ENOTCONN      Errno = -4054
	EPIPE         Errno = -4048
	EAGAIN        Errno = -4088
	EINVAL        Errno = -4071
	EBUSY         Errno = -4082
	EBADF         Errno = -4083
	ENOENT        Errno = -4058
	EEXIST        Errno = -4075
	ENOTDIR       Errno = -4052
	EISDIR        Errno = -4068
	ENOTEMPTY     Errno = -4051
	EADDRINUSE    Errno = -4091
	EADDRNOTAVAIL Errno = -4090
	EAFNOSUPPORT  Errno = -4089
	EALREADY      Errno = -4084
	ECANCELED     Errno = -4081
	ENOSYS        Errno = -4056
	ETIMEDOUT     Errno = -4039
	EPERM         Errno = -4049
	ESRCH         Errno = -4040
	EMFILE        Errno = -4066
	ENOMEM        Errno = -4057
	ENOBUFS       Errno = -4060
)

var otherTable = map[Errno]errInfo{
	EACCES:        {"EACCES", "permission denied"},
	ECONNREFUSED:  {"ECONNREFUSED", "connection refused"},
	ECONNRESET:    {"ECONNRESET", "connection reset by peer"},
	ENOTCONN:      {"ENOTCONN", "socket is not connected"},
	EPIPE:         {"EPIPE", "broken pipe"},
	EAGAIN:        {"EAGAIN", "resource temporarily unavailable"},
	EINVAL:        {"EINVAL", "invalid argument"},
	EBUSY:         {"EBUSY", "resource busy or locked"},
	EBADF:         {"EBADF", "bad file descriptor"},
	ENOENT:        {"ENOENT", "no such file or directory"},
	EEXIST:        {"EEXIST", "file already exists"},
	ENOTDIR:       {"ENOTDIR", "not a directory"},
	EISDIR:        {"EISDIR", "illegal operation on a directory"},
	ENOTEMPTY:     {"ENOTEMPTY", "directory not empty"},
	EADDRINUSE:    {"EADDRINUSE", "address already in use"},
	EADDRNOTAVAIL: {"EADDRNOTAVAIL", "address not available"},
	EAFNOSUPPORT:  {"EAFNOSUPPORT", "address family not supported"},
	EALREADY:      {"EALREADY", "connection already in progress"},
	ECANCELED:     {"ECANCELED", "operation canceled"},
	ENOSYS:        {"ENOSYS", "function not implemented"},
	ETIMEDOUT:     {"ETIMEDOUT", "connection timed out"},
	EPERM:         {"EPERM", "operation not permitted"},
	ESRCH:         {"ESRCH", "no such process"},
	EMFILE:        {"EMFILE", "too many open files"},
	ENOMEM:        {"ENOMEM", "not enough memory"},
	ENOBUFS:       {"ENOBUFS", "no buffer space available"},
}

var errnoMap = map[syscall.Errno]Errno{
	syscall.EACCES:       EACCES,
	syscall.ECONNREFUSED: ECONNREFUSED,
	syscall.ECONNRESET:   ECONNRESET,
	syscall.ENOTCONN:     ENOTCONN,
	syscall.EPIPE:        EPIPE,
	syscall.EAGAIN:       EAGAIN,
	syscall.EINVAL:       EINVAL,
	syscall.ENOENT:       ENOENT,
	syscall.EEXIST:       EEXIST,
	syscall.ENOTDIR:      ENOTDIR,
	syscall.EISDIR:       EISDIR,
	syscall.ENOTEMPTY:    ENOTEMPTY,
	syscall.EADDRINUSE:   EADDRINUSE,
	syscall.ENOSYS:       ENOSYS,
}

func fromErrno(e syscall.Errno) Errno {
	if e == 0 {
		return OK
	}
	if code, ok := errnoMap[e]; ok {
		return code
	}
	return UNKNOWN
}

func platformLookup(code Errno) (errInfo, bool) {
	info, ok := otherTable[code]
	return info, ok
}
