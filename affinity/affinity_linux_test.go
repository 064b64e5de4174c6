//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSetAffinityPinsCallingThread(t *testing.T) {
	var allowed unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &allowed))
	cpu := -1
	for i := 0; i < runtime.NumCPU()*2 && cpu < 0; i++ {
		if allowed.IsSet(i) {
			cpu = i
		}
	}
	require.GreaterOrEqual(t, cpu, 0)

	type result struct {
		err   error
		count int
		isSet bool
	}
	done := make(chan result)
	go func() {
		// The thread keeps its mask; it exits with the goroutine.
		runtime.LockOSThread()
		var r result
		r.err = SetAffinity(cpu)
		var set unix.CPUSet
		if err := unix.SchedGetaffinity(0, &set); err == nil {
			r.count, r.isSet = set.Count(), set.IsSet(cpu)
		}
		done <- r
	}()
	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.count)
	assert.True(t, r.isSet)
}

func TestSetAffinityOutOfRange(t *testing.T) {
	done := make(chan error)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		done <- SetAffinity(1 << 20)
	}()
	assert.Error(t, <-done)
}
