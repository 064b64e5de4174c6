//go:build linux

package sysfd

import "golang.org/x/sys/unix"

// maxIovecs is UIO_MAXIOV.
const maxIovecs = 1024

func writev(fd int, bufs [][]byte) (int, error) { return unix.Writev(fd, bufs) }
