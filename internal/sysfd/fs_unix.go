//go:build unix

// File: internal/sysfd/fs_unix.go
// Author: momentics <momentics@gmail.com>
//
// Blocking file-system calls. The loop runs each of them off its own thread
// and posts the outcome back as a request completion.

package sysfd

import (
	"os"
	"sort"
	"syscall"

	"github.com/momentics/hioload-uv/api"
	"golang.org/x/sys/unix"
)

// Open flags re-exported so callers need not import x/sys.
const (
	O_RDONLY = unix.O_RDONLY
	O_WRONLY = unix.O_WRONLY
	O_RDWR   = unix.O_RDWR
	O_CREAT  = unix.O_CREAT
	O_TRUNC  = unix.O_TRUNC
	O_APPEND = unix.O_APPEND
	O_EXCL   = unix.O_EXCL
)

// Open opens path and returns the descriptor.
func Open(path string, flags int, mode uint32) (int, error) {
	syscall.ForkLock.RLock()
	fd, err := unix.Open(path, flags|unix.O_CLOEXEC, mode)
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, errno(err)
	}
	return fd, nil
}

// Pread reads at offset, or at the current position when offset < 0.
func Pread(fd int, p []byte, offset int64) (int, error) {
	var n int
	var err error
	for {
		if offset < 0 {
			n, err = unix.Read(fd, p)
		} else {
			n, err = unix.Pread(fd, p, offset)
		}
		if err != unix.EINTR {
			break
		}
	}
	return n, errno(err)
}

// Pwrite writes at offset, or at the current position when offset < 0.
func Pwrite(fd int, p []byte, offset int64) (int, error) {
	var n int
	var err error
	for {
		if offset < 0 {
			n, err = unix.Write(fd, p)
		} else {
			n, err = unix.Pwrite(fd, p, offset)
		}
		if err != unix.EINTR {
			break
		}
	}
	return n, errno(err)
}

// Unlink removes a file.
func Unlink(path string) error { return errno(unix.Unlink(path)) }

// Mkdir creates a directory.
func Mkdir(path string, mode uint32) error { return errno(unix.Mkdir(path, mode)) }

// Rmdir removes an empty directory.
func Rmdir(path string) error { return errno(unix.Rmdir(path)) }

// Stat reports on path.
func Stat(path string) (api.Stat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return api.Stat{}, errno(err)
	}
	return convertStat(&st), nil
}

// Fstat reports on an open descriptor.
func Fstat(fd int) (api.Stat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return api.Stat{}, errno(err)
	}
	return convertStat(&st), nil
}

// Readdir lists the entry names of path, excluding "." and "..", sorted.
func Readdir(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errno(err)
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, errno(err)
	}
	sort.Strings(names)
	return names, nil
}
