// Package graph holds the authoritative audio graph topology and compiles
// it into immutable execution plans.
//
// The Store is mutated only from the non-real-time control context. Every
// mutation is validated synchronously: connections that would create a
// cycle are rejected with ErrCycleDetected, removals of still-connected
// nodes with ErrNodeInUse. The audio context never sees the Store; it only
// ever receives fully-built Plans.
//
// Compile turns one topology snapshot into a Plan: a topologically ordered
// list of schedule entries with block buffers assigned so that the peak
// buffer count matches the graph's maximum concurrently-live width. Nodes
// with no path to the graph output are orphans and are excluded from the
// plan without error.
package graph
