// Package api
// Author: momentics <momentics@gmail.com>
//
// Raw status codes surfaced across the reactor boundary and their diagnostic text.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Errno is a small negative status code as delivered by the reactor.
// Zero means success. The set of codes beyond the fixed table is backend- and
// platform-dependent, so codes are for logging and errors.Is matching only.
type Errno int32

// Fixed codes shared by every backend.
const (
	OK      Errno = 0
	EOF     Errno = -4095
	UNKNOWN Errno = -4094
)

// Name resolution codes.
const (
	EAI_ADDRFAMILY Errno = -3000
	EAI_AGAIN      Errno = -3001
	EAI_BADFLAGS   Errno = -3002
	EAI_CANCELED   Errno = -3003
	EAI_FAIL       Errno = -3004
	EAI_FAMILY     Errno = -3005
	EAI_MEMORY     Errno = -3006
	EAI_NODATA     Errno = -3007
	EAI_NONAME     Errno = -3008
	EAI_OVERFLOW   Errno = -3009
	EAI_SERVICE    Errno = -3010
	EAI_SOCKTYPE   Errno = -3011
)

type errInfo struct {
	name string
	msg  string
}

var fixedTable = map[Errno]errInfo{
	OK:             {"OK", "success"},
	EOF:            {"EOF", "end of file"},
	UNKNOWN:        {"UNKNOWN", "unknown error"},
	EAI_ADDRFAMILY: {"EAI_ADDRFAMILY", "address family not supported"},
	EAI_AGAIN:      {"EAI_AGAIN", "temporary failure"},
	EAI_BADFLAGS:   {"EAI_BADFLAGS", "bad ai_flags value"},
	EAI_CANCELED:   {"EAI_CANCELED", "request canceled"},
	EAI_FAIL:       {"EAI_FAIL", "permanent failure"},
	EAI_FAMILY:     {"EAI_FAMILY", "ai_family not supported"},
	EAI_MEMORY:     {"EAI_MEMORY", "out of memory"},
	EAI_NODATA:     {"EAI_NODATA", "no address"},
	EAI_NONAME:     {"EAI_NONAME", "unknown node or service"},
	EAI_OVERFLOW:   {"EAI_OVERFLOW", "argument buffer overflow"},
	EAI_SERVICE:    {"EAI_SERVICE", "service not available for socket type"},
	EAI_SOCKTYPE:   {"EAI_SOCKTYPE", "socket type not supported"},
}

// Error implements the error interface.
func (e Errno) Error() string {
	return fmt.Sprintf("%s: %s", ErrName(e), StrError(e))
}

// StrError returns a human-readable message for code.
func StrError(code Errno) string {
	if info, ok := lookup(code); ok {
		return info.msg
	}
	return "unknown error"
}

// ErrName returns the symbolic name of code, e.g. "ECONNREFUSED".
func ErrName(code Errno) string {
	if info, ok := lookup(code); ok {
		return info.name
	}
	return "UNKNOWN"
}

func lookup(code Errno) (errInfo, bool) {
	if info, ok := fixedTable[code]; ok {
		return info, true
	}
	return platformLookup(code)
}

// FromSys converts an error returned by the OS, the os package or the
// resolver into a status code. A nil error maps to OK.
func FromSys(err error) Errno {
	if err == nil {
		return OK
	}
	var code Errno
	if errors.As(err, &code) {
		return code
	}
	if errors.Is(err, io.EOF) {
		return EOF
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return EAI_NONAME
		case dnsErr.IsTimeout, dnsErr.IsTemporary:
			return EAI_AGAIN
		default:
			return EAI_FAIL
		}
	}
	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return EAI_SERVICE
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fromErrno(errno)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ECANCELED
	case errors.Is(err, context.DeadlineExceeded):
		return ETIMEDOUT
	case errors.Is(err, os.ErrNotExist):
		return ENOENT
	case errors.Is(err, os.ErrExist):
		return EEXIST
	case errors.Is(err, os.ErrPermission):
		return EACCES
	}
	return UNKNOWN
}
