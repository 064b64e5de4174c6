//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly
// +build !linux,!darwin,!freebsd,!netbsd,!openbsd,!dragonfly

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-uv/api"

// NewPoller returns ENOSYS on unsupported platforms.
func NewPoller(maxEvents int) (api.Poller, error) {
	return nil, api.ENOSYS
}
