// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-uv.
// Implements the kind-tagged opaque block allocator behind every handle,
// request and socket address, plus byte-slab recycling for read buffers.
// See alloc.go and bytepool.go.
package pool
