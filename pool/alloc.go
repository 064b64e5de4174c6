// File: pool/alloc.go
// Package pool implements kind-tagged control block allocation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/concurrency"
)

// Block is an opaque native control block. Its layout is known only to the
// backend that sized it.
type Block []byte

// SizeFunc reports the native size of kind, or 0 for kinds the backend does
// not know.
type SizeFunc func(kind api.Kind) uintptr

const defaultCacheCapacity = 1024

// Allocator hands out correctly sized blocks per kind. Sizes are queried from
// the backend on every allocation, never cached. Freed blocks are kept on a
// bounded per-kind free list and zeroed on reuse.
type Allocator struct {
	size  SizeFunc
	free  [api.KindMax]*concurrency.LockFreeQueue[Block]
	alloc [api.KindMax]atomic.Uint64
	freed [api.KindMax]atomic.Uint64
}

// NewAllocator binds an allocator to a backend size query. cacheCap bounds
// every per-kind free list; zero selects the default.
func NewAllocator(size SizeFunc, cacheCap int) *Allocator {
	if size == nil {
		panic("pool: nil size function")
	}
	if cacheCap <= 0 {
		cacheCap = defaultCacheCapacity
	}
	a := &Allocator{size: size}
	for k := range a.free {
		a.free[k] = concurrency.NewLockFreeQueue[Block](cacheCap)
	}
	return a
}

// Alloc returns a zeroed block for kind. A sentinel kind or a backend that
// cannot size kind is a programming error and panics: continuing without a
// control block is never safe.
func (a *Allocator) Alloc(kind api.Kind) Block {
	if !kind.Valid() {
		panic(fmt.Sprintf("pool: alloc of sentinel kind %d", uint8(kind)))
	}
	n := a.size(kind)
	if n == 0 {
		panic(fmt.Sprintf("pool: backend reports no size for kind %s", kind))
	}
	a.alloc[kind].Add(1)
	for {
		b, ok := a.free[kind].Dequeue()
		if !ok {
			break
		}
		if uintptr(len(b)) == n {
			clear(b)
			return b
		}
		// Sized by an earlier backend layout; let the collector have it.
	}
	// Round up so every layout gets word alignment from the size class.
	capacity := (n + 7) &^ 7
	if capacity < 16 {
		capacity = 16
	}
	// make itself aborts the process when memory is exhausted.
	return make(Block, capacity)[:n]
}

// Free returns b to the free list of kind. No validation is performed; a
// double free corrupts the free list and is the caller's bug.
func (a *Allocator) Free(kind api.Kind, b Block) {
	if !kind.Valid() {
		return
	}
	a.freed[kind].Add(1)
	a.free[kind].Enqueue(b)
}

// Stats snapshots allocation counters.
func (a *Allocator) Stats() AllocStats {
	st := AllocStats{PerKind: make(map[api.Kind]int64)}
	for k := api.Kind(1); k < api.KindMax; k++ {
		al := int64(a.alloc[k].Load())
		fr := int64(a.freed[k].Load())
		st.TotalAlloc += al
		st.TotalFree += fr
		if al-fr != 0 {
			st.PerKind[k] = al - fr
		}
	}
	st.InUse = st.TotalAlloc - st.TotalFree
	return st
}

// InUse returns the number of live blocks of kind.
func (a *Allocator) InUse(kind api.Kind) int64 {
	if !kind.Valid() {
		return 0
	}
	return int64(a.alloc[kind].Load()) - int64(a.freed[kind].Load())
}

// AllocStats aggregates block allocation counters.
type AllocStats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
	PerKind    map[api.Kind]int64
}
