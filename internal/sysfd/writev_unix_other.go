//go:build unix && !linux

package sysfd

import "golang.org/x/sys/unix"

const maxIovecs = 1024

// writev issues one write per buffer and stops at the first short write.
// x/sys/unix exposes writev(2) only on Linux.
func writev(fd int, bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		n, err := unix.Write(fd, b)
		if n > 0 {
			total += n
		}
		if err != nil {
			if total > 0 && err == unix.EAGAIN {
				return total, nil
			}
			return total, err
		}
		if n < len(b) {
			break
		}
	}
	return total, nil
}
