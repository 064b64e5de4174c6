// File: reactor/poller.go
// Author: momentics <momentics@gmail.com>
//
// Shared helpers of the platform pollers.

package reactor

import "time"

// DefaultMaxEvents is the Wait batch size used when none is configured.
const DefaultMaxEvents = 128

// timeoutMillis converts a Wait timeout to the millisecond form the kernel
// expects, rounding sub-millisecond waits up so timers never fire early.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
