// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package uv is a single-threaded asynchronous I/O reactor.
//
// A Loop multiplexes timers, idle work, cross-thread wakeups, TCP and UDP
// sockets, named pipes, child processes, filesystem operations and name
// resolution through one completion-callback model built on two abstractions:
//
//   - Handles are long-lived objects (Idle, Timer, Async, TCP, UDP, Pipe,
//     Process) with an Init / Start / Stop / Close lifecycle. Close is
//     irreversible and always reports back through exactly one close callback
//     on a later loop iteration.
//   - Requests (ConnectReq, WriteReq, UDPSendReq, GetAddrInfoReq, FsReq) are
//     one-shot operations. A submission that returns nil completes exactly once
//     through its callback; a submission that returns an error never calls back.
//
// All callbacks of a loop run on the goroutine (and locked OS thread) that
// called Run. Async.Send is the only method that may be called from elsewhere.
//
//	loop, _ := uv.NewLoop()
//	var t uv.Timer
//	_ = t.Init(loop)
//	_ = t.Start(func(t *uv.Timer) { t.Close(nil) }, 50*time.Millisecond, 0)
//	_ = loop.Run()
//	_ = loop.Close()
package uv
