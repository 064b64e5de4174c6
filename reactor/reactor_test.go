//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestPoller(t *testing.T) api.Poller {
	t.Helper()
	p, err := NewPoller(0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPollerWaitTimesOut(t *testing.T) {
	p := newTestPoller(t)
	start := time.Now()
	woken, err := p.Wait(20*time.Millisecond, func(uintptr, api.IOEvents) {
		t.Fatal("no descriptor is registered")
	})
	require.NoError(t, err)
	assert.False(t, woken)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPollerWakeFromGoroutine(t *testing.T) {
	p := newTestPoller(t)
	go func() {
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, p.Wake())
		assert.NoError(t, p.Wake(), "coalesced wakeups are not an error")
	}()
	woken, err := p.Wait(-1, func(uintptr, api.IOEvents) {})
	require.NoError(t, err)
	assert.True(t, woken)

	woken, err = p.Wait(0, func(uintptr, api.IOEvents) {})
	require.NoError(t, err)
	assert.False(t, woken, "wakeup is drained by the first Wait")
}

func TestPollerReadinessTokens(t *testing.T) {
	p := newTestPoller(t)
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	require.NoError(t, p.Add(fds[0], api.EventRead, 7))
	require.NoError(t, p.Add(fds[1], api.EventWrite, 9))

	ready := map[uintptr]api.IOEvents{}
	collect := func(token uintptr, ev api.IOEvents) { ready[token] |= ev }
	_, err := p.Wait(0, collect)
	require.NoError(t, err)
	assert.Equal(t, map[uintptr]api.IOEvents{9: api.EventWrite}, ready)

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)
	require.NoError(t, p.Remove(fds[1]))
	clear(ready)
	_, err = p.Wait(time.Second, collect)
	require.NoError(t, err)
	assert.NotZero(t, ready[7]&api.EventRead)
	assert.NotContains(t, ready, uintptr(9))

	require.NoError(t, p.Modify(fds[0], api.EventRead, 11))
	clear(ready)
	_, err = p.Wait(time.Second, collect)
	require.NoError(t, err)
	assert.Contains(t, ready, uintptr(11))
}
