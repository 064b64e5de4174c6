// File: pool/default.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync"

	"github.com/momentics/hioload-uv/reactor"
)

var (
	defaultOnce  sync.Once
	defaultAlloc *Allocator
)

// Default returns the process-wide allocator bound to the platform backend's
// block layouts. Socket addresses, which exist outside any loop, come from here.
func Default() *Allocator {
	defaultOnce.Do(func() {
		defaultAlloc = NewAllocator(reactor.BlockSize, 0)
	})
	return defaultAlloc
}
