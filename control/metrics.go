// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Metrics sink written by loops after every iteration and read from any
// goroutine. Keys are dotted paths such as "uv.<loop-id>.iterations".

package control

import (
	"strings"
	"sync"
	"time"
)

// MetricsRegistry is a concurrent map of named values.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{metrics: make(map[string]any)}
}

// Set stores value under key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// SetMany stores every entry of values under one lock, so readers never see
// half of a loop's iteration.
func (mr *MetricsRegistry) SetMany(values map[string]any) {
	mr.mu.Lock()
	for k, v := range values {
		mr.metrics[k] = v
	}
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns a single metric.
func (mr *MetricsRegistry) Get(key string) (any, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, ok := mr.metrics[key]
	return v, ok
}

// Updated returns the time of the last write.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot copies every metric.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	return mr.WithPrefix("")
}

// WithPrefix copies the metrics whose key starts with prefix.
func (mr *MetricsRegistry) WithPrefix(prefix string) map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any)
	for k, v := range mr.metrics {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}
