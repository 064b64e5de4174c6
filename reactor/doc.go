// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness backends behind the uv loop: epoll
// (Linux) and kqueue (Darwin, BSD). It also owns the layout and size of the
// native control blocks allocated for every handle, request and address kind.
package reactor
