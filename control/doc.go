// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration, metrics and debug introspection for reactor loops.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads with reload listeners
//   - Metrics published by loops after every iteration
//   - Probe registration for on-demand state dumps
//
// This package is cross-platform and build-tag-partitioned as needed.
package control
