// Package node defines the processing contract every audio node in the
// graph must satisfy.
//
// A node is a unit of DSP work with a fixed set of input and output ports.
// The engine calls Process once per audio callback, on the real-time audio
// goroutine, with the node's input and output buffers already resolved to
// shared block buffers. Implementations must therefore obey the real-time
// rules:
//
//   - Process must not allocate, block, take locks, or perform I/O.
//   - Process must run in bounded time for the given frame count.
//   - Process must tolerate being skipped for entire callbacks (the engine
//     skips silence-transparent nodes whose inputs are all silent) without
//     corrupting internal state.
//
// Nodes may hold private state (filter history, oscillator phase) mutated
// only inside Process. Everything else about a node — creation, connection,
// parameter curves — happens on the non-real-time control context and is
// handled by the graph and audiograph packages.
package node
