// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Thread-to-CPU pinning for loop threads. A loop started with WithCPU locks
// its run goroutine to an OS thread and pins that thread here.

package affinity

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned where the platform cannot pin threads.
var ErrUnsupported = errors.New("affinity: not supported on this platform")

// SetAffinity pins the calling OS thread to cpuID. The caller must hold the
// thread with runtime.LockOSThread, otherwise the pin lands on whatever
// thread the goroutine happens to run on.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return fmt.Errorf("affinity: invalid cpu %d", cpuID)
	}
	return setAffinityPlatform(cpuID)
}
