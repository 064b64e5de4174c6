// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync"
	"sync/atomic"
)

// BytePool recycles fixed-size read buffers. It backs the default allocation
// callback of stream and datagram reads.
type BytePool struct {
	size   int
	pool   sync.Pool
	misses atomic.Uint64
}

// NewBytePool creates a pool of size-byte buffers. A non-positive size
// selects 64 KiB.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = 64 << 10
	}
	b := &BytePool{size: size}
	b.pool.New = func() any {
		b.misses.Add(1)
		buf := make([]byte, size)
		return &buf
	}
	return b
}

// Size returns the buffer size handed out by the pool.
func (b *BytePool) Size() int { return b.size }

// Misses reports how many buffers had to be freshly allocated.
func (b *BytePool) Misses() uint64 { return b.misses.Load() }

// GetBuffer returns a full-length buffer from the pool.
func (b *BytePool) GetBuffer() []byte {
	return *b.pool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool. Foreign-sized buffers are dropped.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	buf = buf[:b.size]
	b.pool.Put(&buf)
}
