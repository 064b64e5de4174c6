//go:build unix

package sysfd

import (
	"testing"

	"github.com/momentics/hioload-uv/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritevGathersBuffers(t *testing.T) {
	a, b, err := Socketpair()
	require.NoError(t, err)
	defer Close(a)
	defer Close(b)

	n, err := Writev(a, [][]byte{[]byte("gather"), nil, []byte("-"), []byte("write")})
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	buf := make([]byte, 32)
	got, err := Read(b, buf)
	require.NoError(t, err)
	assert.Equal(t, "gather-write", string(buf[:got]))
}

func TestWritevReportsFullSocket(t *testing.T) {
	a, b, err := Socketpair()
	require.NoError(t, err)
	defer Close(a)
	defer Close(b)
	require.NoError(t, SetNonblock(a))

	chunk := make([]byte, 64<<10)
	var total int
	for i := 0; i < 1024; i++ {
		n, err := Writev(a, [][]byte{chunk, chunk})
		total += n
		if err != nil {
			assert.ErrorIs(t, err, api.EAGAIN)
			assert.Positive(t, total)
			return
		}
	}
	t.Fatal("socket buffer never filled")
}

func TestWritevCapsIovecCount(t *testing.T) {
	a, b, err := Socketpair()
	require.NoError(t, err)
	defer Close(a)
	defer Close(b)

	bufs := make([][]byte, maxIovecs+10)
	for i := range bufs {
		bufs[i] = []byte{'x'}
	}
	n, err := Writev(a, bufs)
	require.NoError(t, err)
	assert.Equal(t, maxIovecs, n)
}
