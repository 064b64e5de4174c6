package api_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/momentics/hioload-uv/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSys(t *testing.T) {
	assert.Equal(t, api.OK, api.FromSys(nil))
	assert.Equal(t, api.EOF, api.FromSys(io.EOF))
	assert.Equal(t, api.EINVAL, api.FromSys(fmt.Errorf("wrapped: %w", api.EINVAL)))
	assert.Equal(t, api.ECANCELED, api.FromSys(context.Canceled))
	assert.Equal(t, api.ETIMEDOUT, api.FromSys(context.DeadlineExceeded))
	assert.Equal(t, api.UNKNOWN, api.FromSys(fmt.Errorf("opaque")))

	_, err := os.Open("/definitely/not/here")
	require.Error(t, err)
	assert.Equal(t, api.ENOENT, api.FromSys(err))
}

func TestErrnoText(t *testing.T) {
	assert.Equal(t, "EOF", api.ErrName(api.EOF))
	assert.Equal(t, "end of file", api.StrError(api.EOF))
	assert.Equal(t, "EAI_NONAME", api.ErrName(api.EAI_NONAME))
	assert.Equal(t, "ECONNREFUSED", api.ErrName(api.ECONNREFUSED))
	assert.NotEqual(t, "unknown error", api.StrError(api.ECONNREFUSED))
	assert.Equal(t, "UNKNOWN", api.ErrName(api.Errno(-99999)))
	assert.Equal(t, "unknown error", api.StrError(api.Errno(-99999)))
	assert.Equal(t, "EOF: end of file", api.EOF.Error())
	assert.ErrorIs(t, fmt.Errorf("ctx: %w", api.EBUSY), api.EBUSY)
}

func TestBuf(t *testing.T) {
	raw := []byte("0123456789")
	b := api.BufFrom(raw)
	require.Equal(t, 10, b.Len())

	s := b.Slice(2, 5)
	assert.Equal(t, []byte("234"), s.Bytes())
	s.Bytes()[0] = 'x'
	assert.Equal(t, byte('x'), raw[2], "views alias the original memory")

	assert.Zero(t, b.Slice(3, 3).Len())
	assert.Panics(t, func() { b.Slice(4, 11) })
	assert.Nil(t, api.BufFrom(nil).Bytes())
	assert.Zero(t, api.BufOf(nil, 5).Len())

	bufs := []api.Buf{b.Slice(0, 2), {}, b.Slice(8, 10)}
	assert.Equal(t, 4, api.TotalLen(bufs))
	assert.Equal(t, [][]byte{[]byte("01"), []byte("89")}, api.Bufs(bufs))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "tcp", api.KindTCP.String())
	assert.True(t, api.KindProcess.IsHandle())
	assert.False(t, api.KindFs.IsHandle())
	assert.True(t, api.KindFs.IsRequest())
	assert.False(t, api.KindSockaddrIn.IsRequest())
	assert.True(t, api.KindSockaddrStorage.Valid())
	assert.False(t, api.KindMax.Valid())
}
