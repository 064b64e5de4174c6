// File: uv/options.go
// Package uv defines functional options for NewLoop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package uv

import (
	"github.com/momentics/hioload-uv/control"
	"github.com/momentics/hioload-uv/pool"
	"go.uber.org/zap"
)

// Config keys understood by WithConfig.
const (
	ConfigMaxEvents      = "uv.max_events"
	ConfigCPU            = "uv.cpu"
	ConfigReadBufferSize = "uv.read_buffer_size"
)

const defaultReadBufferSize = 64 << 10

type loopConfig struct {
	logger         *zap.Logger
	alloc          *pool.Allocator
	metrics        *control.MetricsRegistry
	probes         *control.DebugProbes
	store          *control.ConfigStore
	maxEvents      int
	cpu            int
	readBufferSize int
}

func defaultLoopConfig() loopConfig {
	return loopConfig{
		cpu:            -1,
		readBufferSize: defaultReadBufferSize,
	}
}

// Option customizes loop creation.
type Option func(*loopConfig)

// WithLogger sets the loop logger. The loop ID is attached to every entry.
func WithLogger(l *zap.Logger) Option {
	return func(c *loopConfig) { c.logger = l }
}

// WithAllocator overrides the control block allocator of handles and requests.
func WithAllocator(a *pool.Allocator) Option {
	return func(c *loopConfig) { c.alloc = a }
}

// WithMetrics publishes per-iteration loop counters into r.
func WithMetrics(r *control.MetricsRegistry) Option {
	return func(c *loopConfig) { c.metrics = r }
}

// WithDebugProbes registers a handle dump probe in p.
func WithDebugProbes(p *control.DebugProbes) Option {
	return func(c *loopConfig) { c.probes = p }
}

// WithMaxEvents bounds how many ready descriptors one poll returns.
func WithMaxEvents(n int) Option {
	return func(c *loopConfig) { c.maxEvents = n }
}

// WithCPU pins the thread running the loop to cpu. Negative disables pinning.
func WithCPU(cpu int) Option {
	return func(c *loopConfig) { c.cpu = cpu }
}

// WithReadBufferSize sets the size of buffers handed to reads when no
// allocation callback is given.
func WithReadBufferSize(n int) Option {
	return func(c *loopConfig) { c.readBufferSize = n }
}

// WithConfig seeds the options from store and re-reads ConfigReadBufferSize
// whenever store reloads.
func WithConfig(store *control.ConfigStore) Option {
	return func(c *loopConfig) {
		c.store = store
		if store == nil {
			return
		}
		if v, ok := store.Int(ConfigMaxEvents); ok {
			c.maxEvents = v
		}
		if v, ok := store.Int(ConfigCPU); ok {
			c.cpu = v
		}
		if v, ok := store.Int(ConfigReadBufferSize); ok {
			c.readBufferSize = v
		}
	}
}
