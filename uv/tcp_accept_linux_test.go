//go:build linux

package uv

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// exhaustFDs lowers the descriptor limit and fills the table so the next
// accept fails with EMFILE. src is any open descriptor to duplicate. The returned func releases everything.
func exhaustFDs(t *testing.T, src int) func() {
	t.Helper()
	var orig unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_NOFILE, &orig))
	lowered := orig
	lowered.Cur = 256
	if lowered.Cur > orig.Max {
		t.Skip("descriptor limit too small")
	}
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_NOFILE, &lowered))

	var held []int
	for {
		fd, err := unix.Dup(src)
		if err != nil {
			require.True(t, errors.Is(err, unix.EMFILE), "dup: %v", err)
			break
		}
		held = append(held, fd)
	}
	return func() {
		for _, fd := range held {
			_ = unix.Close(fd)
		}
		held = nil
		_ = unix.Setrlimit(unix.RLIMIT_NOFILE, &orig)
	}
}

func TestTCPAcceptErrorBacksOff(t *testing.T) {
	l := newTestLoop(t)
	var server TCP
	var (
		failures []error
		accepted int
		release  func()
	)
	port := listenTCP(t, l, &server, func(s Stream, err error) {
		if err != nil {
			failures = append(failures, err)
			return
		}
		conn := &TCP{}
		require.NoError(t, conn.Init(l))
		require.NoError(t, s.Accept(conn))
		accepted++
		conn.Close(nil)
		s.Close(nil)
	})

	c, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer c.Close()

	fd, err := server.Fileno()
	require.NoError(t, err)
	release = exhaustFDs(t, fd)
	defer func() {
		if release != nil {
			release()
		}
	}()

	// While the table is full the listener would spin on EMFILE every
	// iteration; it must report once and wait instead.
	var check Timer
	require.NoError(t, check.Init(l))
	require.NoError(t, check.Start(func(tm *Timer) {
		assert.Len(t, failures, 1)
		assert.False(t, server.IsClosing())
		release()
		release = nil
		tm.Close(nil)
	}, 50*time.Millisecond, 0))

	require.NoError(t, l.Run())
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], api.EMFILE)
	assert.Equal(t, 1, accepted, "accepting resumes after the backoff")
	assert.Less(t, l.Iterations(), uint64(50))
}
