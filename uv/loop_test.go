package uv

import (
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newTestLoop creates a loop that is drained and destroyed when the test ends.
func newTestLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l, err := NewLoop(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		l.Walk(func(h Handle) {
			if !h.IsClosing() {
				h.Close(nil)
			}
		})
		require.NoError(t, l.Run())
		assert.NoError(t, l.Close())
	})
	return l
}

func TestRunWithoutHandlesReturnsImmediately(t *testing.T) {
	l := newTestLoop(t)
	assert.False(t, l.Alive())
	require.NoError(t, l.Run())
	assert.Zero(t, l.Iterations())
	assert.NotEmpty(t, l.ID())
}

func TestCloseCallbackRunsOnceOnLaterIteration(t *testing.T) {
	l := newTestLoop(t)
	var h Idle
	require.NoError(t, h.Init(l))
	assert.Equal(t, StateInitialized, h.State())

	calls := 0
	h.Close(func(got Handle) {
		calls++
		assert.Same(t, &h, got)
	})
	assert.Zero(t, calls, "close callback must not run synchronously")
	assert.True(t, h.IsClosing())
	assert.Equal(t, StateClosing, h.State())

	require.NoError(t, l.Run())
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, h.State())
	assert.Panics(t, func() { h.Close(nil) })
}

func TestCloseBeforeInitPanics(t *testing.T) {
	var tm Timer
	assert.Panics(t, func() { tm.Close(nil) })
}

func TestHandleReinitFromCloseCallback(t *testing.T) {
	l := newTestLoop(t)
	var h Idle
	require.NoError(t, h.Init(l))
	h.Close(func(Handle) {
		require.NoError(t, h.Init(l))
	})
	require.NoError(t, l.Run())
	assert.Equal(t, StateInitialized, h.State())
	assert.NotNil(t, h.block)
}

func TestOperationsOnClosingHandleFail(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))
	tm.Close(nil)
	assert.ErrorIs(t, tm.Start(func(*Timer) {}, time.Millisecond, 0), api.EINVAL)
	assert.ErrorIs(t, tm.Stop(), api.EINVAL)
}

func TestLoopCloseBusy(t *testing.T) {
	l, err := NewLoop(WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	var tm Timer
	require.NoError(t, tm.Init(l))
	assert.ErrorIs(t, l.Close(), api.EBUSY)

	tm.Close(nil)
	assert.ErrorIs(t, l.Close(), api.EBUSY, "close callback still pending")
	require.NoError(t, l.Run())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Close(), api.EINVAL)
	assert.ErrorIs(t, l.Run(), api.EINVAL)

	var late Idle
	assert.ErrorIs(t, late.Init(l), api.EINVAL)
}

func TestStopAndResume(t *testing.T) {
	l := newTestLoop(t)
	var h Idle
	require.NoError(t, h.Init(l))
	count := 0
	require.NoError(t, h.Start(func(h *Idle) {
		count++
		switch count {
		case 3:
			l.Stop()
		case 6:
			h.Close(nil)
		}
	}))

	require.NoError(t, l.Run())
	assert.Equal(t, 3, count)
	assert.True(t, l.Alive())

	require.NoError(t, l.Run())
	assert.Equal(t, 6, count)
	assert.False(t, l.Alive())
}

func TestRunFromCallbackPanics(t *testing.T) {
	l := newTestLoop(t)
	var h Idle
	require.NoError(t, h.Init(l))
	require.NoError(t, h.Start(func(h *Idle) {
		assert.Panics(t, func() { _ = l.Run() })
		h.Close(nil)
	}))
	require.NoError(t, l.Run())
}

func TestUnrefHandleDoesNotKeepLoopAlive(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))
	require.NoError(t, tm.Start(func(*Timer) { t.Fatal("unref timer fired") }, time.Hour, 0))
	assert.True(t, l.Alive())

	tm.Unref()
	tm.Unref()
	assert.False(t, tm.HasRef())
	assert.False(t, l.Alive())
	require.NoError(t, l.Run())
	assert.True(t, tm.IsActive())

	tm.Ref()
	assert.True(t, tm.HasRef())
	assert.True(t, l.Alive())
	require.NoError(t, tm.Stop())
	assert.False(t, l.Alive())
}

func TestWalkAndData(t *testing.T) {
	l := newTestLoop(t)
	l.SetData("loop-state")
	assert.Equal(t, "loop-state", l.Data())

	var (
		idle  Idle
		timer Timer
	)
	require.NoError(t, idle.Init(l))
	require.NoError(t, timer.Init(l))
	timer.SetData(42)
	assert.Equal(t, 42, timer.Data())
	assert.Same(t, l, timer.Loop())

	var kinds []api.Kind
	l.Walk(func(h Handle) {
		kinds = append(kinds, h.Kind())
		h.Close(nil)
	})
	assert.Equal(t, []api.Kind{api.KindIdle, api.KindTimer}, kinds)

	require.NoError(t, l.Run())
	visited := 0
	l.Walk(func(Handle) { visited++ })
	assert.Zero(t, visited)
}

func TestNowAdvances(t *testing.T) {
	l := newTestLoop(t)
	before := l.Now()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, before, l.Now(), "cached time only moves on UpdateTime")
	l.UpdateTime()
	assert.True(t, l.Now().After(before))
}

func TestMetricsAndDebugState(t *testing.T) {
	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()
	l, err := NewLoop(WithLogger(zaptest.NewLogger(t)), WithMetrics(metrics), WithDebugProbes(probes))
	require.NoError(t, err)

	var h Idle
	require.NoError(t, h.Init(l))
	require.NoError(t, h.Start(func(h *Idle) {
		if h.Iterations() == 2 {
			h.Close(nil)
		}
	}))
	require.NoError(t, l.Run())

	v, ok := metrics.Get("uv." + l.ID() + ".iterations")
	require.True(t, ok)
	assert.Equal(t, uint64(2), v)
	v, ok = metrics.Get("uv." + l.ID() + ".handles")
	require.True(t, ok)
	assert.Equal(t, 0, v)

	state := probes.DumpState()
	assert.Contains(t, state, "uv."+l.ID()+".handles")
	assert.Contains(t, state, "platform.cpus")

	require.NoError(t, l.Close())
	closed, ok := metrics.Get("uv." + l.ID() + ".closed")
	require.True(t, ok)
	assert.Equal(t, true, closed)
	assert.NotContains(t, probes.DumpState(), "uv."+l.ID()+".handles")
}

func TestDebugStateReportsHandleStates(t *testing.T) {
	probes := control.NewDebugProbes()
	l := newTestLoop(t, WithDebugProbes(probes))

	var (
		timer Timer
		idle  Idle
	)
	require.NoError(t, timer.Init(l))
	require.NoError(t, timer.Start(func(*Timer) {}, time.Hour, 0))
	timer.Unref()
	require.NoError(t, idle.Init(l))
	require.NoError(t, idle.Start(func(h *Idle) { h.Close(nil) }))
	require.NoError(t, l.Run())

	infos, ok := probes.DumpState()["uv."+l.ID()+".handles"].([]HandleInfo)
	require.True(t, ok)
	require.Len(t, infos, 1)
	assert.Equal(t, HandleInfo{Kind: "timer", State: "started", Active: true, Ref: false}, infos[0])
}

func TestConfigSeedsAndReloadsReadBufferSize(t *testing.T) {
	store := control.NewConfigStore()
	store.SetConfig(map[string]any{ConfigReadBufferSize: 1024, ConfigMaxEvents: "64"})
	l := newTestLoop(t, WithConfig(store))
	assert.Equal(t, 1024, l.bufs.Size())
	assert.Equal(t, 64, l.cfg.maxEvents)

	store.SetConfig(map[string]any{ConfigReadBufferSize: 2048})

	var tm Timer
	require.NoError(t, tm.Init(l))
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, tm.Start(func(tm *Timer) {
		if l.bufs.Size() == 2048 || time.Now().After(deadline) {
			tm.Close(nil)
		}
	}, time.Millisecond, 5*time.Millisecond))
	require.NoError(t, l.Run())
	assert.Equal(t, 2048, l.bufs.Size())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "invalid", State(99).String())
}
