// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Closed enumeration of allocatable control-block kinds.

package api

// Kind tags a native control block with the object it backs.
type Kind uint8

const (
	KindUnknown Kind = iota

	// Handle kinds.
	KindIdle
	KindTimer
	KindTCP
	KindUDP
	KindPipe
	KindAsync
	KindProcess

	// Request kinds.
	KindConnect
	KindWrite
	KindUDPSend
	KindGetAddrInfo
	KindFs

	// Address kinds.
	KindSockaddrIn
	KindSockaddrIn6
	KindSockaddrStorage

	KindMax
)

var kindNames = [...]string{
	KindUnknown:         "unknown",
	KindIdle:            "idle",
	KindTimer:           "timer",
	KindTCP:             "tcp",
	KindUDP:             "udp",
	KindPipe:            "pipe",
	KindAsync:           "async",
	KindProcess:         "process",
	KindConnect:         "connect",
	KindWrite:           "write",
	KindUDPSend:         "udp_send",
	KindGetAddrInfo:     "getaddrinfo",
	KindFs:              "fs",
	KindSockaddrIn:      "sockaddr_in",
	KindSockaddrIn6:     "sockaddr_in6",
	KindSockaddrStorage: "sockaddr_storage",
	KindMax:             "max",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Valid reports whether k is a real kind rather than a sentinel.
func (k Kind) Valid() bool { return k > KindUnknown && k < KindMax }

// IsHandle reports whether k names a handle kind.
func (k Kind) IsHandle() bool { return k >= KindIdle && k <= KindProcess }

// IsRequest reports whether k names a request kind.
func (k Kind) IsRequest() bool { return k >= KindConnect && k <= KindFs }
