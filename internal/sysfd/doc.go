// Package sysfd wraps the descriptor-level system calls the uv loop issues:
// non-blocking sockets, file operations and process creation. Addresses cross
// this boundary as netip.AddrPort; every error is returned as an api.Errno.
package sysfd
