//go:build unix

package uv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryKindClosesExactlyOnce(t *testing.T) {
	cases := []struct {
		name  string
		start func(t *testing.T, l *Loop) Handle
	}{
		{"idle", func(t *testing.T, l *Loop) Handle {
			h := &Idle{}
			require.NoError(t, h.Init(l))
			require.NoError(t, h.Start(func(*Idle) {}))
			return h
		}},
		{"timer", func(t *testing.T, l *Loop) Handle {
			h := &Timer{}
			require.NoError(t, h.Init(l))
			require.NoError(t, h.Start(func(*Timer) { t.Error("timer fired after close") }, 0, 0))
			return h
		}},
		{"tcp", func(t *testing.T, l *Loop) Handle {
			h := &TCP{}
			listenTCP(t, l, h, func(Stream, error) {})
			return h
		}},
		{"udp", func(t *testing.T, l *Loop) Handle {
			h := &UDP{}
			require.NoError(t, h.Init(l))
			addr, err := IP4Addr("127.0.0.1", 0)
			require.NoError(t, err)
			defer addr.Free()
			require.NoError(t, h.Bind4(addr, 0))
			return h
		}},
		{"pipe", func(t *testing.T, l *Loop) Handle {
			h := &Pipe{}
			require.NoError(t, h.Init(l, false))
			return h
		}},
		{"async", func(t *testing.T, l *Loop) Handle {
			h := &Async{}
			require.NoError(t, h.Init(l, func(*Async) {}))
			require.NoError(t, h.Send())
			return h
		}},
		{"process", func(t *testing.T, l *Loop) Handle {
			h := &Process{}
			require.NoError(t, Spawn(l, h, &ProcessOptions{
				File: "/bin/sh",
				Args: []string{"sh", "-c", "exit 0"},
			}))
			return h
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLoop(t)
			h := tc.start(t, l)

			calls := 0
			h.Close(func(got Handle) {
				calls++
				assert.Same(t, h, got)
				assert.Equal(t, StateClosed, got.State())
			})
			assert.Zero(t, calls, "close callback never runs synchronously")
			assert.Equal(t, StateClosing, h.State())
			assert.Panics(t, func() { h.Close(nil) })

			require.NoError(t, l.Run())
			assert.Equal(t, 1, calls)
			assert.Equal(t, StateClosed, h.State())
			assert.False(t, l.Alive())
		})
	}
}
