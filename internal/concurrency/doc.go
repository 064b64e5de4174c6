// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency holds lock-free primitives shared by the memory layer.
// The loop itself is single-threaded; only block free lists are touched from
// several goroutines at once.
package concurrency
