//go:build windows

// control/platform_windows.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"
)

// RegisterPlatformProbes installs host probes. Windows has no loop backend;
// the probes still report the host so a failed NewLoop can be diagnosed.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterProbe("platform.os", func() any { return runtime.GOOS + "/" + runtime.GOARCH })
	dp.RegisterProbe("platform.poller", func() any { return "unsupported" })
	dp.RegisterProbe("platform.version", func() any {
		maj, min, build := windows.RtlGetNtVersionNumbers()
		return fmt.Sprintf("%d.%d.%d", maj, min, build)
	})
}
