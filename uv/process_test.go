//go:build unix

package uv

import (
	"syscall"
	"testing"

	"github.com/momentics/hioload-uv/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessExitStatus(t *testing.T) {
	l := newTestLoop(t)
	var p Process
	status, signal := int64(-1), -1
	require.NoError(t, Spawn(l, &p, &ProcessOptions{
		File: "/bin/sh",
		Args: []string{"sh", "-c", "exit 3"},
		Exit: func(p *Process, exitStatus int64, termSignal int) {
			status, signal = exitStatus, termSignal
			p.Close(nil)
		},
	}))
	assert.Positive(t, p.PID())
	assert.True(t, p.IsActive())

	require.NoError(t, l.Run())
	assert.Equal(t, int64(3), status)
	assert.Zero(t, signal)
}

func TestProcessKill(t *testing.T) {
	l := newTestLoop(t)
	var (
		p      Process
		signal int
	)
	require.NoError(t, Spawn(l, &p, &ProcessOptions{
		File: "sleep",
		Args: []string{"sleep", "30"},
		Exit: func(p *Process, _ int64, termSignal int) {
			signal = termSignal
			assert.ErrorIs(t, p.Kill(int(syscall.SIGTERM)), api.ESRCH)
			p.Close(nil)
		},
	}))
	require.NoError(t, p.Kill(int(syscall.SIGTERM)))

	require.NoError(t, l.Run())
	assert.Equal(t, int(syscall.SIGTERM), signal)
}

func TestProcessStdoutPipe(t *testing.T) {
	l := newTestLoop(t)
	var (
		p      Process
		out    Pipe
		data   []byte
		exited bool
	)
	require.NoError(t, out.Init(l, false))
	require.NoError(t, Spawn(l, &p, &ProcessOptions{
		File: "/bin/sh",
		Args: []string{"sh", "-c", "printf 'hello from child'"},
		Stdio: []StdioContainer{
			{Flags: StdioIgnore},
			{Flags: StdioCreatePipe | StdioWritablePipe, Stream: &out},
			{Flags: StdioInheritFD, FD: 2},
		},
		Exit: func(p *Process, exitStatus int64, _ int) {
			exited = true
			assert.Zero(t, exitStatus)
			p.Close(nil)
		},
	}))

	require.NoError(t, out.ReadStart(nil, func(s Stream, n int, buf api.Buf, err error) {
		if err != nil {
			assert.ErrorIs(t, err, api.EOF)
			s.Close(nil)
			return
		}
		data = append(data, buf.Bytes()[:n]...)
	}))

	require.NoError(t, l.Run())
	assert.True(t, exited)
	assert.Equal(t, "hello from child", string(data))
}

func TestSpawnFailureLeavesHandleInitialized(t *testing.T) {
	l := newTestLoop(t)
	var p Process
	err := Spawn(l, &p, &ProcessOptions{
		File: "/nonexistent/definitely-not-here",
		Exit: func(*Process, int64, int) { t.Fatal("exit callback after failed spawn") },
	})
	require.ErrorIs(t, err, api.ENOENT)
	assert.Equal(t, StateInitialized, p.State())
	assert.Zero(t, p.PID())
	assert.ErrorIs(t, p.Kill(int(syscall.SIGTERM)), api.ESRCH)

	closed := false
	p.Close(func(Handle) { closed = true })
	require.NoError(t, l.Run())
	assert.True(t, closed)
}

func TestSpawnArgumentErrors(t *testing.T) {
	l := newTestLoop(t)
	var p Process
	assert.ErrorIs(t, Spawn(l, &p, nil), api.EINVAL)
	assert.ErrorIs(t, Spawn(l, &p, &ProcessOptions{}), api.EINVAL)
	assert.Equal(t, StateAllocated, p.State())

	var notPipe TCP
	require.NoError(t, notPipe.Init(l))
	err := Spawn(l, &p, &ProcessOptions{
		File:  "/bin/true",
		Stdio: []StdioContainer{{Flags: StdioCreatePipe, Stream: &notPipe}},
	})
	assert.ErrorIs(t, err, api.EINVAL)
	p.Close(nil)
}

func TestClosedProcessSuppressesExitCallback(t *testing.T) {
	l := newTestLoop(t)
	var p Process
	require.NoError(t, Spawn(l, &p, &ProcessOptions{
		File: "/bin/sh",
		Args: []string{"sh", "-c", "exit 0"},
		Exit: func(*Process, int64, int) { t.Fatal("exit callback on closed handle") },
	}))
	p.Close(nil)
	require.NoError(t, l.Run())
	assert.Equal(t, StateClosed, p.State())
}
