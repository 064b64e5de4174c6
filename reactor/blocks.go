// File: reactor/blocks.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Native control block layouts.
//
// Every handle, request and address owns one opaque block whose size is decided
// here, by the backend, and queried at allocation time. Layouts hold scalars
// only, never Go pointers, so a block is a plain byte slice to the collector.

package reactor

import (
	"unsafe"

	"github.com/momentics/hioload-uv/api"
)

// StreamCB backs TCP, UDP and pipe handles.
type StreamCB struct {
	FD          int32
	Interest    uint32 // api.IOEvents currently registered
	Flags       uint32
	Backlog     int32
	AcceptedFD  int32 // connection accepted but not yet handed to Accept, -1 if none
	IPC         int32
	QueuedBytes uint64
	ReadCount   uint64
	WriteCount  uint64
}

// TimerCB backs timer handles. Times are loop-clock nanoseconds.
type TimerCB struct {
	Timeout int64
	Repeat  int64
	Seq     uint64
}

// IdleCB backs idle handles.
type IdleCB struct {
	Iterations uint64
}

// AsyncCB backs async wakeup handles.
type AsyncCB struct {
	Sends      uint64
	Deliveries uint64
}

// ProcessCB backs process handles.
type ProcessCB struct {
	PID        int32
	TermSignal int32
	ExitStatus int64
	Flags      uint32
	StdioCount int32
}

// ReqCB backs connect, write and udp-send requests.
type ReqCB struct {
	Status  int32
	Family  uint16
	_       uint16
	Total   uint64
	Written uint64
}

// FsCB backs filesystem requests.
type FsCB struct {
	Op     uint32
	Flags  int32
	Mode   uint32
	FD     int32
	Offset int64
	Result int64
}

// GetAddrInfoCB backs name resolution requests.
type GetAddrInfoCB struct {
	Status   int32
	Family   int32
	SockType int32
	Protocol int32
	Flags    int32
	Count    int32
}

// Sockaddr sizes follow the BSD socket ABI.
const (
	SizeofSockaddrIn      = 16
	SizeofSockaddrIn6     = 28
	SizeofSockaddrStorage = 128
)

// BlockSize reports the native control block size of kind for this backend.
// It returns 0 for sentinel or unknown kinds.
func BlockSize(kind api.Kind) uintptr {
	switch kind {
	case api.KindTCP, api.KindUDP, api.KindPipe:
		return unsafe.Sizeof(StreamCB{})
	case api.KindTimer:
		return unsafe.Sizeof(TimerCB{})
	case api.KindIdle:
		return unsafe.Sizeof(IdleCB{})
	case api.KindAsync:
		return unsafe.Sizeof(AsyncCB{})
	case api.KindProcess:
		return unsafe.Sizeof(ProcessCB{})
	case api.KindConnect, api.KindWrite, api.KindUDPSend:
		return unsafe.Sizeof(ReqCB{})
	case api.KindFs:
		return unsafe.Sizeof(FsCB{})
	case api.KindGetAddrInfo:
		return unsafe.Sizeof(GetAddrInfoCB{})
	case api.KindSockaddrIn:
		return SizeofSockaddrIn
	case api.KindSockaddrIn6:
		return SizeofSockaddrIn6
	case api.KindSockaddrStorage:
		return SizeofSockaddrStorage
	}
	return 0
}

// View reinterprets a block as the layout T. The block must have been
// allocated for a kind whose layout is T.
func View[T any](b []byte) *T {
	var zero T
	if uintptr(len(b)) < unsafe.Sizeof(zero) {
		panic("reactor: control block smaller than layout")
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b)))
}
