package uv

import (
	"net/netip"
	"testing"

	"github.com/momentics/hioload-uv/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIP4Addr(t *testing.T) {
	sa, err := IP4Addr("192.168.10.3", 7000)
	require.NoError(t, err)
	defer sa.Free()

	assert.True(t, IsIP4(sa))
	assert.False(t, IsIP6(sa))
	assert.Equal(t, "192.168.10.3", sa.Name())
	assert.Equal(t, 7000, sa.Port())
	assert.Equal(t, netip.MustParseAddrPort("192.168.10.3:7000"), sa.AddrPort())
	// Port is stored in network byte order.
	assert.Equal(t, []byte{0x1b, 0x58}, []byte(sa.block[2:4]))
}

func TestIP6Addr(t *testing.T) {
	sa, err := IP6Addr("2001:db8::1", 443)
	require.NoError(t, err)
	defer sa.Free()
	assert.True(t, IsIP6(sa))
	assert.Equal(t, "2001:db8::1", sa.Name())
	assert.Equal(t, 443, sa.Port())
	assert.Zero(t, sa.ScopeID())

	scoped, err := IP6Addr("fe80::1%7", 0)
	require.NoError(t, err)
	defer scoped.Free()
	assert.Equal(t, uint32(7), scoped.ScopeID())
}

func TestAddrParseErrors(t *testing.T) {
	for _, text := range []string{"", "256.1.1.1", "::1", "localhost", "1.2.3"} {
		_, err := IP4Addr(text, 80)
		assert.ErrorIs(t, err, api.EINVAL, "%q", text)
	}
	_, err := IP4Addr("127.0.0.1", 70000)
	assert.ErrorIs(t, err, api.EINVAL)
	_, err = IP4Addr("127.0.0.1", -1)
	assert.ErrorIs(t, err, api.EINVAL)

	for _, text := range []string{"", "127.0.0.1", "::g", "fe80::1%no-such-interface-x"} {
		_, err := IP6Addr(text, 80)
		assert.ErrorIs(t, err, api.EINVAL, "%q", text)
	}
}

func TestSockAddrStorage(t *testing.T) {
	s := NewSockAddrStorage()
	defer s.Free()
	assert.Zero(t, s.Family())
	assert.Nil(t, s.Addr())
	assert.Empty(t, s.Name())
	assert.False(t, IsIP4(s))

	s.set(netip.MustParseAddrPort("10.0.0.9:53"))
	assert.True(t, IsIP4(s))
	view := s.Addr()
	require.NotNil(t, view)
	assert.Equal(t, "10.0.0.9", view.Name())
	assert.Equal(t, 53, view.Port())
	view.Free() // views share the storage block
	assert.Equal(t, 53, s.Port())

	s.set(netip.MustParseAddrPort("[::ffff:10.0.0.9]:53"))
	assert.True(t, IsIP6(s), "mapped addresses keep the family they were reported with")
	assert.Equal(t, "::ffff:10.0.0.9", s.Name())

	s.set(netip.MustParseAddrPort("[2001:db8::2]:8080"))
	assert.True(t, IsIP6(s))
	assert.Equal(t, "2001:db8::2", s.Name())
	assert.Equal(t, 8080, s.Addr().Port())
}

func TestAddrFreeIsIdempotent(t *testing.T) {
	sa, err := IP4Addr("127.0.0.1", 1)
	require.NoError(t, err)
	sa.Free()
	sa.Free()
	assert.Nil(t, sa.block)
	assert.False(t, IsIP4(nil))
}
