package uv

import (
	"testing"

	"github.com/momentics/hioload-uv/api"
	"github.com/momentics/hioload-uv/internal/sysfd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveSync(t *testing.T, l *Loop, node, service string, hints *AddrInfo) (*GetAddrInfoReq, *AddrInfo, error) {
	t.Helper()
	var (
		req    GetAddrInfoReq
		gotErr error
		gotRes *AddrInfo
	)
	calls := 0
	require.NoError(t, GetAddrInfo(l, &req, func(r *GetAddrInfoReq, err error, res *AddrInfo) {
		calls++
		gotErr, gotRes = err, res
	}, node, service, hints))
	require.NoError(t, l.Run())
	require.Equal(t, 1, calls)
	return &req, gotRes, gotErr
}

func TestGetAddrInfoNumericHost(t *testing.T) {
	l := newTestLoop(t)
	req, res, err := resolveSync(t, l, "127.0.0.1", "8080", &AddrInfo{SockType: sysfd.SockStream})
	require.NoError(t, err)
	require.NotNil(t, res)
	defer FreeAddrInfo(res)

	assert.Equal(t, 1, req.Count())
	assert.Nil(t, res.Next)
	assert.Equal(t, sysfd.AFInet, res.Family)
	assert.Equal(t, IPProtoTCP, res.Protocol)
	assert.Equal(t, "127.0.0.1", res.Addr.Name())
	assert.Equal(t, 8080, res.Addr.Port())
}

func TestGetAddrInfoLocalhost(t *testing.T) {
	l := newTestLoop(t)
	_, res, err := resolveSync(t, l, "localhost", "", &AddrInfo{Family: sysfd.AFInet})
	if err != nil {
		t.Skipf("resolver unavailable: %v", err)
	}
	defer FreeAddrInfo(res)
	for ai := res; ai != nil; ai = ai.Next {
		assert.Equal(t, sysfd.AFInet, ai.Family)
		assert.True(t, IsIP4(ai.Addr))
	}
}

func TestGetAddrInfoPassiveWildcard(t *testing.T) {
	l := newTestLoop(t)
	req, res, err := resolveSync(t, l, "", "53", &AddrInfo{Flags: AIPassive, SockType: sysfd.SockDgram})
	require.NoError(t, err)
	defer FreeAddrInfo(res)
	assert.Equal(t, 2, req.Count())
	assert.Equal(t, "0.0.0.0", res.Addr.Name())
	assert.Equal(t, "::", res.Next.Addr.Name())
	assert.Equal(t, IPProtoUDP, res.Protocol)
}

func TestGetAddrInfoErrors(t *testing.T) {
	l := newTestLoop(t)
	cb := func(*GetAddrInfoReq, error, *AddrInfo) { t.Fatal("callback after failed submission") }
	var req GetAddrInfoReq
	assert.ErrorIs(t, GetAddrInfo(l, &req, cb, "", "", nil), api.EINVAL)
	assert.ErrorIs(t, GetAddrInfo(l, &req, nil, "localhost", "", nil), api.EINVAL)
	assert.ErrorIs(t, GetAddrInfo(l, &req, cb, "localhost", "", &AddrInfo{Family: 99}), api.EAI_FAMILY)
	assert.ErrorIs(t, GetAddrInfo(l, &req, cb, "localhost", "", &AddrInfo{SockType: 99}), api.EAI_SOCKTYPE)
	assert.False(t, l.Alive())

	_, res, err := resolveSync(t, l, "not-an-ip", "", &AddrInfo{Flags: AINumericHost})
	assert.ErrorIs(t, err, api.EAI_NONAME)
	assert.Nil(t, res)

	_, _, err = resolveSync(t, l, "127.0.0.1", "no-such-service-x", &AddrInfo{Flags: AINumericServ})
	assert.ErrorIs(t, err, api.EAI_NONAME)

	_, _, err = resolveSync(t, l, "::1", "", &AddrInfo{Family: sysfd.AFInet})
	assert.ErrorIs(t, err, api.EAI_NODATA)
}

func TestGetAddrInfoCancel(t *testing.T) {
	l := newTestLoop(t)
	var (
		req GetAddrInfoReq
		got error
	)
	require.NoError(t, GetAddrInfo(l, &req, func(_ *GetAddrInfoReq, err error, res *AddrInfo) {
		got = err
		FreeAddrInfo(res)
	}, "cancel.invalid", "", nil))
	req.Cancel()
	require.NoError(t, l.Run())
	// The lookup may finish before the cancel is observed.
	if got != nil {
		assert.Contains(t, []error{api.EAI_CANCELED, api.EAI_NONAME, api.EAI_AGAIN, api.EAI_FAIL}, got)
	}
	assert.False(t, req.InFlight())
}
