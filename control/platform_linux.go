//go:build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// RegisterPlatformProbes installs host probes: CPU count, backend name, the
// CPUs the process may run on, and the kernel release.
func RegisterPlatformProbes(dp *DebugProbes) {
	registerCommonProbes(dp, "epoll")
	dp.RegisterProbe("platform.affinity", func() any {
		var set unix.CPUSet
		if err := unix.SchedGetaffinity(0, &set); err != nil {
			return err.Error()
		}
		return set.Count()
	})
	dp.RegisterProbe("platform.kernel", func() any {
		var u unix.Utsname
		if err := unix.Uname(&u); err != nil {
			return err.Error()
		}
		return unix.ByteSliceToString(u.Release[:])
	})
}

func registerCommonProbes(dp *DebugProbes, poller string) {
	dp.RegisterProbe("platform.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterProbe("platform.os", func() any { return runtime.GOOS + "/" + runtime.GOARCH })
	dp.RegisterProbe("platform.poller", func() any { return poller })
}
