// Package sim drives trace-driven cache simulations and miss-ratio-curve
// profiling.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - simulation.go: one (reader, sampler, policy, capacity) replay unit
//   - profiler.go: combination fan-out, worker pool, and MRC aggregation
//   - spec.go: the YAML profile configuration
//
// # Architecture
//
// The sim package orchestrates; the moving parts live in sub-packages:
//   - sim/trace/: versioned binary trace container, mmap and compressed
//     readers, the stat-carrying header, and a trace writer
//   - sim/sampler/: deterministic hash-based and spatial sub-sampling
//   - sim/policy/: pluggable cache replacement policies (lru, fifo, clock,
//     infinite)
//
// Every (policy, capacity) combination owns an independent reader clone over
// a shared read-only mapping, an independent sampler clone, and a private
// stats slot. Workers never share mutable state, so collecting the MRC after
// the pool drains requires no locking.
package sim
