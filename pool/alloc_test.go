package pool_test

import (
	"testing"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/pool"
	"github.com/momentics/hioload-uv/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorSizesFromBackend(t *testing.T) {
	a := pool.NewAllocator(reactor.BlockSize, 0)
	for k := api.KindIdle; k < api.KindMax; k++ {
		b := a.Alloc(k)
		assert.Equal(t, int(reactor.BlockSize(k)), len(b), "kind %s", k)
		a.Free(k, b)
	}
	assert.Equal(t, int64(0), a.Stats().InUse)
}

func TestAllocatorQueriesSizeOnEveryCall(t *testing.T) {
	size := uintptr(24)
	calls := 0
	a := pool.NewAllocator(func(api.Kind) uintptr {
		calls++
		return size
	}, 4)

	b := a.Alloc(api.KindTimer)
	require.Len(t, b, 24)
	a.Free(api.KindTimer, b)

	size = 40
	b = a.Alloc(api.KindTimer)
	assert.Len(t, b, 40, "stale cached block must not be reused after a layout change")
	assert.Equal(t, 2, calls)
}

func TestAllocatorReuseIsZeroed(t *testing.T) {
	a := pool.NewAllocator(reactor.BlockSize, 0)
	b := a.Alloc(api.KindFs)
	for i := range b {
		b[i] = 0xAB
	}
	a.Free(api.KindFs, b)

	b2 := a.Alloc(api.KindFs)
	for i := range b2 {
		require.Zero(t, b2[i])
	}
	st := a.Stats()
	assert.Equal(t, int64(2), st.TotalAlloc)
	assert.Equal(t, int64(1), st.InUse)
	assert.Equal(t, int64(1), st.PerKind[api.KindFs])
	assert.Equal(t, int64(1), a.InUse(api.KindFs))
}

func TestAllocatorAbortsOnSentinelKinds(t *testing.T) {
	a := pool.NewAllocator(reactor.BlockSize, 0)
	assert.Panics(t, func() { a.Alloc(api.KindUnknown) })
	assert.Panics(t, func() { a.Alloc(api.KindMax) })

	unsized := pool.NewAllocator(func(api.Kind) uintptr { return 0 }, 0)
	assert.Panics(t, func() { unsized.Alloc(api.KindIdle) })
}

func TestBytePoolRoundTrip(t *testing.T) {
	bp := pool.NewBytePool(512)
	b := bp.GetBuffer()
	require.Len(t, b, 512)
	bp.PutBuffer(b[:10])
	b2 := bp.GetBuffer()
	assert.Len(t, b2, 512)

	bp.PutBuffer(make([]byte, 3))
	assert.Equal(t, 512, bp.Size())
}

func TestBytePoolCountsMisses(t *testing.T) {
	bp := pool.NewBytePool(0)
	assert.Equal(t, 64<<10, bp.Size())
	assert.Zero(t, bp.Misses())
	b := bp.GetBuffer()
	assert.Equal(t, uint64(1), bp.Misses())
	bp.PutBuffer(b)
}
