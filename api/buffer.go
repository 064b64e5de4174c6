// Package api
// Author: momentics
//
// Borrowed byte-region descriptors.
//
// A Buf never owns the memory it describes. Buffers handed to a read or
// receive callback are valid only until that callback returns.

package api

import "unsafe"

// Buf describes a (base, length) byte region owned by someone else.
type Buf struct {
	base *byte
	len  int
}

// BufOf builds a view over n bytes starting at base.
func BufOf(base *byte, n int) Buf {
	if base == nil || n <= 0 {
		return Buf{}
	}
	return Buf{base: base, len: n}
}

// BufFrom builds a view over the whole of b.
func BufFrom(b []byte) Buf {
	if len(b) == 0 {
		return Buf{}
	}
	return Buf{base: unsafe.SliceData(b), len: len(b)}
}

// Base returns the first byte of the region, or nil for an empty view.
func (b Buf) Base() *byte { return b.base }

// Len returns the region length in bytes.
func (b Buf) Len() int { return b.len }

// Bytes exposes the region as a slice aliasing the original memory.
func (b Buf) Bytes() []byte {
	if b.base == nil {
		return nil
	}
	return unsafe.Slice(b.base, b.len)
}

// Slice narrows the view to [from, to).
func (b Buf) Slice(from, to int) Buf {
	if from < 0 || to > b.len || from > to {
		panic("api: buf slice out of range")
	}
	if from == to {
		return Buf{}
	}
	return Buf{base: (*byte)(unsafe.Add(unsafe.Pointer(b.base), from)), len: to - from}
}

// Bufs converts a vector of views into slices for vectored syscalls.
func Bufs(bufs []Buf) [][]byte {
	out := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if b.len > 0 {
			out = append(out, b.Bytes())
		}
	}
	return out
}

// TotalLen sums the lengths of bufs.
func TotalLen(bufs []Buf) int {
	n := 0
	for _, b := range bufs {
		n += b.len
	}
	return n
}
