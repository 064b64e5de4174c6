package uv

import (
	"testing"
	"time"

	"github.com/momentics/hioload-uv/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerOneShotNeverFiresEarly(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))

	start := time.Now()
	var fired []time.Duration
	require.NoError(t, tm.Start(func(*Timer) {
		fired = append(fired, time.Since(start))
	}, 50*time.Millisecond, 0))
	assert.True(t, tm.IsActive())

	require.NoError(t, l.Run())
	require.Len(t, fired, 1)
	assert.GreaterOrEqual(t, fired[0], 50*time.Millisecond)
	assert.False(t, tm.IsActive())
	assert.Equal(t, StateStopped, tm.State())
}

func TestTimerRepeatsUntilStopped(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))

	count := 0
	require.NoError(t, tm.Start(func(tm *Timer) {
		count++
		assert.True(t, tm.IsActive(), "repeating timer is rearmed before its callback")
		if count == 3 {
			require.NoError(t, tm.Stop())
		}
	}, time.Millisecond, 5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, tm.Repeat())

	require.NoError(t, l.Run())
	assert.Equal(t, 3, count)
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	l := newTestLoop(t)
	var order []string
	start := func(tm *Timer, name string, after time.Duration) {
		require.NoError(t, tm.Init(l))
		require.NoError(t, tm.Start(func(*Timer) { order = append(order, name) }, after, 0))
	}
	var a, b, c, d Timer
	start(&a, "30ms", 30*time.Millisecond)
	start(&b, "10ms", 10*time.Millisecond)
	start(&c, "20ms-first", 20*time.Millisecond)
	start(&d, "20ms-second", 20*time.Millisecond)

	require.NoError(t, l.Run())
	assert.Equal(t, []string{"10ms", "20ms-first", "20ms-second", "30ms"}, order)
}

func TestTimerStartedFromCallbackWaitsForNextIteration(t *testing.T) {
	l := newTestLoop(t)
	var outer, inner Timer
	require.NoError(t, outer.Init(l))
	require.NoError(t, inner.Init(l))

	var iterAtOuter, iterAtInner uint64
	require.NoError(t, outer.Start(func(*Timer) {
		iterAtOuter = l.Iterations()
		require.NoError(t, inner.Start(func(*Timer) { iterAtInner = l.Iterations() }, 0, 0))
	}, 0, 0))

	require.NoError(t, l.Run())
	assert.Greater(t, iterAtInner, iterAtOuter)
}

func TestTimerRestartReplacesDeadline(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))

	calls := 0
	cb := func(*Timer) { calls++ }
	require.NoError(t, tm.Start(cb, time.Hour, 0))
	assert.Greater(t, tm.DueIn(), 59*time.Minute)
	require.NoError(t, tm.Start(cb, time.Millisecond, 0))
	assert.LessOrEqual(t, tm.DueIn(), time.Millisecond)

	require.NoError(t, l.Run())
	assert.Equal(t, 1, calls)
	assert.Zero(t, tm.DueIn())
}

func TestTimerAgain(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))
	assert.ErrorIs(t, tm.Again(), api.EINVAL, "never started")

	calls := 0
	require.NoError(t, tm.Start(func(tm *Timer) {
		calls++
		require.NoError(t, tm.Stop())
	}, time.Hour, 0))
	require.NoError(t, tm.Again(), "no repeat leaves the timer untouched")
	assert.Greater(t, tm.DueIn(), 59*time.Minute)

	tm.SetRepeat(2 * time.Millisecond)
	require.NoError(t, tm.Again())
	assert.LessOrEqual(t, tm.DueIn(), 2*time.Millisecond)

	require.NoError(t, l.Run())
	assert.Equal(t, 1, calls)
}

func TestTimerArgumentValidation(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))
	assert.ErrorIs(t, tm.Start(nil, time.Second, 0), api.EINVAL)
	assert.ErrorIs(t, tm.Start(func(*Timer) {}, -time.Second, 0), api.EINVAL)
	assert.ErrorIs(t, tm.Start(func(*Timer) {}, time.Second, -1), api.EINVAL)
	require.NoError(t, tm.Stop())
	require.NoError(t, tm.Stop())
	assert.False(t, l.Alive())
}

func TestTimerHeapOrdering(t *testing.T) {
	l := newTestLoop(t)
	timers := make([]Timer, 8)
	for i := range timers {
		require.NoError(t, timers[i].Init(l))
		require.NoError(t, timers[i].Start(func(*Timer) {}, time.Duration(8-i)*time.Hour, 0))
	}
	require.NoError(t, timers[3].Stop())
	assert.Len(t, l.timers, 7)
	assert.Same(t, &timers[7], l.timers[0])
	for i, tm := range l.timers {
		assert.Equal(t, i, tm.index)
	}
}

func TestTimerRepeatSpacing(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))

	const repeat = 20 * time.Millisecond
	var fires []time.Time
	require.NoError(t, tm.Start(func(tm *Timer) {
		fires = append(fires, l.Now())
		if len(fires) == 4 {
			require.NoError(t, tm.Stop())
		}
	}, repeat, repeat))

	require.NoError(t, l.Run())
	require.Len(t, fires, 4)
	for i := 1; i < len(fires); i++ {
		gap := fires[i].Sub(fires[i-1])
		assert.GreaterOrEqual(t, gap, repeat, "fire %d", i)
		assert.Less(t, gap, 10*repeat, "fire %d", i)
	}
}

func TestTimerRestartAfterStop(t *testing.T) {
	l := newTestLoop(t)
	var tm Timer
	require.NoError(t, tm.Init(l))

	fired := 0
	cb := func(*Timer) { fired++ }
	require.NoError(t, tm.Start(cb, time.Millisecond, 0))
	require.NoError(t, tm.Stop())
	assert.Equal(t, StateStopped, tm.State())
	require.NoError(t, tm.Start(cb, time.Millisecond, 0))
	assert.Equal(t, StateStarted, tm.State())

	require.NoError(t, l.Run())
	assert.Equal(t, 1, fired)

	// A timer that already fired starts again without Init.
	require.NoError(t, tm.Start(cb, time.Millisecond, 0))
	require.NoError(t, l.Run())
	assert.Equal(t, 2, fired)
}
