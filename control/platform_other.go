//go:build !linux && !windows

// control/platform_other.go
// Author: momentics <momentics@gmail.com>

package control

import "runtime"

// RegisterPlatformProbes installs host probes. BSD-family systems run the
// kqueue backend; anything else has no backend.
func RegisterPlatformProbes(dp *DebugProbes) {
	poller := "unsupported"
	switch runtime.GOOS {
	case "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
		poller = "kqueue"
	}
	registerCommonProbes(dp, poller)
}

func registerCommonProbes(dp *DebugProbes, poller string) {
	dp.RegisterProbe("platform.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterProbe("platform.os", func() any { return runtime.GOOS + "/" + runtime.GOARCH })
	dp.RegisterProbe("platform.poller", func() any { return poller })
}
