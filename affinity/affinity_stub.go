//go:build !linux && !windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>

package affinity

import (
	"fmt"
	"runtime"
)

func setAffinityPlatform(cpuID int) error {
	return fmt.Errorf("%w: cpu %d on %s", ErrUnsupported, cpuID, runtime.GOOS)
}
